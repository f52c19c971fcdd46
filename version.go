package go_loco

import (
	"strconv"
	"strings"
)

// Version represents an application version string as carried in CHECKIN and
// LOGINLIST bodies ("major.minor.micro[.qualifier]").
type Version struct {
	major, minor, micro, qualifier uint16
	version                        string
}

// parseVersion parses a version string into its components.
// Invalid or missing segments default to 0 with a logged warning, so a
// malformed configured app version degrades instead of panicking.
func parseVersion(str string) Version {
	v := Version{version: str}
	segments := strings.Split(str, ".")
	n := len(segments)

	if n > 0 {
		v.major = parseVersionSegment(segments[0], "major", str)
	}
	if n > 1 {
		v.minor = parseVersionSegment(segments[1], "minor", str)
	}
	if n > 2 {
		v.micro = parseVersionSegment(segments[2], "micro", str)
	}
	if n > 3 {
		v.qualifier = parseVersionSegment(segments[3], "qualifier", str)
	}
	return v
}

// parseVersionSegment parses a single version segment string into a uint16.
// Returns 0 and logs a warning if parsing fails.
func parseVersionSegment(segment, segmentName, fullVersion string) uint16 {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 {
		Warning("Invalid %s version '%s' in app version '%s', defaulting to 0", segmentName, segment, fullVersion)
		return 0
	}
	return uint16(i)
}

func (v *Version) compare(other Version) int {
	if v.major != other.major {
		if v.major > other.major {
			return 1
		}
		return -1
	}
	if v.minor != other.minor {
		if v.minor > other.minor {
			return 1
		}
		return -1
	}
	if v.micro != other.micro {
		if v.micro > other.micro {
			return 1
		}
		return -1
	}
	if v.qualifier != other.qualifier {
		if v.qualifier > other.qualifier {
			return 1
		}
		return -1
	}
	return 0
}

// String returns the original version string.
func (v *Version) String() string {
	return v.version
}
