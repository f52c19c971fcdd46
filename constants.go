package go_loco

// LOCO Protocol Constants
//
// This file contains constants reconstructed from reverse engineering of the
// LOCO protocol used by the KakaoTalk desktop client. None of these values are
// negotiated on the wire; they were observed in captured traffic and extracted
// from the client binary, and the server silently drops connections that use
// anything else.
//
// Note: This library focuses solely on the LOCO transport/session layer
// (booking, checkin, login and the secure channel). Higher-level chat commands
// are built on top of the session and are intentionally NOT defined here.

// LOCO Client Constants
const (
	LOCO_CLIENT_VERSION = "0.2.0"

	// Header layout (22 bytes, little-endian):
	//   0   4  packetId (u32)
	//   4   2  statusCode (i16)
	//   6  11  command (ASCII, null-padded)
	//  17   1  bodyType
	//  18   4  bodyLength (u32)
	LOCO_HEADER_SIZE  = 22
	LOCO_COMMAND_SIZE = 11

	// Upper bound on a single packet body. Bodies larger than this indicate a
	// desynchronized stream, not a legitimate packet.
	LOCO_MAX_BODY_SIZE = 1 << 24

	LOCO_KEY_SIZE = 16
	LOCO_IV_SIZE  = 16
)

// Body type constants. The low bits select the body encoding; the high bit
// marks a body that has been encrypted by the connection's CryptoContext.
const (
	LOCO_BODY_TYPE_DOCUMENT uint8 = 0x00
	LOCO_BODY_TYPE_RAW      uint8 = 0x01
	LOCO_BODY_ENCRYPTED     uint8 = 0x80
)

// LOCO Command Constants
//
// Commands are 11-byte ASCII identifiers carried in the packet header.
const (
	LOCO_CMD_GETCONF   = "GETCONF"
	LOCO_CMD_CHECKIN   = "CHECKIN"
	LOCO_CMD_LOGINLIST = "LOGINLIST"
	LOCO_CMD_PING      = "PING"
)

// Handshake Constants
//
// The legacy (non-TLS) stages open with a raw handshake blob:
//
//	[wrappedKeySize u32][handshakeKeyType u32][bodyCipherType u32][RSA ciphertext]
//
// LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1 is the single value the server accepts.
// It identifies RSA-OAEP with a SHA-1 digest (kSecPaddingOAEPKey). Any other
// value causes the server to close the socket without sending an error packet,
// so it must be treated as fixed configuration, never inferred or negotiated.
const (
	LOCO_HANDSHAKE_WRAPPED_KEY_SIZE   uint32 = 256 // 2048-bit RSA output
	LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1 uint32 = 16
	LOCO_HANDSHAKE_CIPHER_AES_CFB     uint32 = 2
)

// Server Status Codes
//
// statusCode in a response header (and the "status" body field) is zero on
// success; negative values are protocol-level error codes. Only the codes
// actually observed against live servers are named here. All others pass
// through as an opaque StatusError.
const (
	LOCO_STATUS_OK             int16 = 0
	LOCO_STATUS_AUTH_FAILED    int16 = -203
	LOCO_STATUS_INVALID_DEVICE int16 = -300
	LOCO_STATUS_TOKEN_EXPIRED  int16 = -950
)

// Default Endpoints
//
// The booking stage is the only endpoint the client knows up front; it is
// fixed configuration. Checkin and chat hosts are returned by the previous
// stage.
const (
	LOCO_DEFAULT_BOOKING_HOST = "booking-loco.kakao.com"
	LOCO_DEFAULT_BOOKING_PORT = 443
	LOCO_DEFAULT_PORT         = 5223
)

// Client identity defaults carried in request bodies. These mirror the
// desktop client the protocol was captured from.
const (
	LOCO_DEFAULT_OS          = "mac"
	LOCO_DEFAULT_MCCMNC      = "99999"
	LOCO_DEFAULT_LANG        = "ko"
	LOCO_DEFAULT_COUNTRY_ISO = "KR"
	LOCO_DEFAULT_APP_VERSION = "4.5.0"

	// dtype 2 identifies a PC client in LOGINLIST.
	LOCO_DEVICE_TYPE_PC int32 = 2
)

// Log level constants for LogInit.
const (
	DEBUG = iota
	INFO
	WARNING
	ERROR
	FATAL
)
