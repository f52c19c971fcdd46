package go_loco

import (
	"crypto/cipher"
	"io"
)

// Crypto holds the randomness source used for key generation and OAEP
// padding. Production code uses crypto/rand; tests substitute a fixed reader
// to make handshake output deterministic.
type Crypto struct {
	rng io.Reader
}

// CryptoContext is the per-connection symmetric state established by one
// handshake. Contexts are generated fresh at the start of each legacy
// connection attempt, never reused across connections, and released when the
// connection closes.
type CryptoContext struct {
	key     []byte // 16-byte AES key
	iv      []byte // 16-byte CFB initialization vector
	keyType uint32 // handshake key type tag sent in the clear prefix
	rng     io.Reader

	enc cipher.Stream // client -> server keystream
	dec cipher.Stream // server -> client keystream
}

// KeyType returns the handshake tag the context was created with.
func (ctx *CryptoContext) KeyType() uint32 {
	return ctx.keyType
}
