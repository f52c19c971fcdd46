// Package go_loco: crypto handshake for the legacy LOCO transport.
//
// The legacy (non-TLS) stages secure the connection with a symmetric key the
// client generates locally and wraps under the server's RSA public key. The
// wrap uses RSA-OAEP with a SHA-1 digest. That padding/digest pairing is a
// hard compatibility requirement of the remote server, not a design
// preference: SHA-256 or PKCS#1 v1.5 padding makes the server drop the
// connection without any error packet. The same is true of the
// handshakeKeyType tag in the clear prefix of the handshake blob.
//
// Once the handshake is sent, all packet bodies on the connection are
// AES-128-CFB with persistent per-direction stream state; the IV is not
// re-randomized per packet.
package go_loco

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"go.step.sm/crypto/pemutil"
)

// NewCrypto creates a Crypto instance backed by the system CSPRNG.
func NewCrypto() *Crypto {
	return &Crypto{rng: rand.Reader}
}

// NewCryptoWithReader creates a Crypto instance with a caller-supplied
// randomness source. For tests only.
func NewCryptoWithReader(rng io.Reader) *Crypto {
	return &Crypto{rng: rng}
}

// NewContext generates a fresh 128-bit key and 128-bit IV and initializes
// the CFB streams for both directions. keyType is the fixed handshake tag
// from configuration. Fails only if the randomness source does.
func (c *Crypto) NewContext(keyType uint32) (*CryptoContext, error) {
	material := make([]byte, LOCO_KEY_SIZE+LOCO_IV_SIZE)
	if _, err := io.ReadFull(c.rng, material); err != nil {
		return nil, fmt.Errorf("loco: generating key material: %w", err)
	}
	return newContext(material[:LOCO_KEY_SIZE], material[LOCO_KEY_SIZE:], keyType, c.rng)
}

func newContext(key, iv []byte, keyType uint32, rng io.Reader) (*CryptoContext, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CryptoContext{
		key:     key,
		iv:      iv,
		keyType: keyType,
		rng:     rng,
		enc:     cipher.NewCFBEncrypter(block, iv),
		dec:     cipher.NewCFBDecrypter(block, iv),
	}, nil
}

// WrapForTransport builds the handshake blob sent as the first bytes on a
// legacy connection:
//
//	[wrappedKeySize u32][handshakeKeyType u32][bodyCipherType u32][RSA(key||iv)]
//
// key||iv is encrypted under serverKey with OAEP/SHA-1. Returns ErrKeyFormat
// if serverKey is nil (the configured key material failed to parse upstream).
func (ctx *CryptoContext) WrapForTransport(serverKey *rsa.PublicKey) ([]byte, error) {
	if serverKey == nil {
		return nil, ErrKeyFormat
	}

	plaintext := make([]byte, 0, LOCO_KEY_SIZE+LOCO_IV_SIZE)
	plaintext = append(plaintext, ctx.key...)
	plaintext = append(plaintext, ctx.iv...)

	wrapped, err := rsa.EncryptOAEP(sha1.New(), ctx.rng, serverKey, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}

	s := NewStream(make([]byte, 0, 12+len(wrapped)))
	s.WriteUint32(uint32(len(wrapped)))
	s.WriteUint32(ctx.keyType)
	s.WriteUint32(LOCO_HANDSHAKE_CIPHER_AES_CFB)
	s.Write(wrapped)
	return s.Bytes(), nil
}

// EncryptBody encrypts a plaintext packet body. CFB is length-preserving, so
// the header's bodyLength is the same before and after encryption.
func (ctx *CryptoContext) EncryptBody(plaintext []byte) []byte {
	ciphertext := make([]byte, len(plaintext))
	ctx.enc.XORKeyStream(ciphertext, plaintext)
	return ciphertext
}

// DecryptBody decrypts a received packet body.
func (ctx *CryptoContext) DecryptBody(ciphertext []byte) []byte {
	plaintext := make([]byte, len(ciphertext))
	ctx.dec.XORKeyStream(plaintext, ciphertext)
	return plaintext
}

// Release zeroes the key material. The context is unusable afterwards.
func (ctx *CryptoContext) Release() {
	for i := range ctx.key {
		ctx.key[i] = 0
	}
	for i := range ctx.iv {
		ctx.iv[i] = 0
	}
	ctx.enc = nil
	ctx.dec = nil
}

// ParsePublicKey parses the server's RSA public key from configuration
// material: either a PEM block or base64-encoded DER (PKCS#1 or PKIX). The
// key is fixed configuration extracted from the desktop client binary; it is
// never discovered over the network.
func ParsePublicKey(material string) (*rsa.PublicKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("%w: empty key material", ErrKeyFormat)
	}

	if strings.Contains(material, "-----BEGIN") {
		key, err := pemutil.Parse([]byte(material))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: PEM holds %T, want RSA public key", ErrKeyFormat, key)
		}
		return rsaKey, nil
	}

	der, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: DER holds %T, want RSA public key", ErrKeyFormat, key)
	}
	return rsaKey, nil
}
