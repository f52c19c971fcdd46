package go_loco

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"sync"
	"testing"
)

var (
	testKeyOnce sync.Once
	testRSAKey  *rsa.PrivateKey
)

// testServerKey returns a process-wide 2048-bit RSA key for handshake tests.
func testServerKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testRSAKey = key
	})
	return testRSAKey
}

// countingReader emits a deterministic byte sequence, standing in for the
// CSPRNG so key material is predictable.
type countingReader struct {
	next byte
}

func (r *countingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

func TestNewContextFreshMaterial(t *testing.T) {
	c := NewCrypto()
	a, err := c.NewContext(LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	b, err := c.NewContext(LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	if bytes.Equal(a.key, b.key) || bytes.Equal(a.iv, b.iv) {
		t.Error("two contexts share key material")
	}
	if len(a.key) != LOCO_KEY_SIZE || len(a.iv) != LOCO_IV_SIZE {
		t.Errorf("material sizes key=%d iv=%d", len(a.key), len(a.iv))
	}
	if a.KeyType() != LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1 {
		t.Errorf("KeyType = %d", a.KeyType())
	}
}

func TestEncryptDecryptAcrossPeers(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, LOCO_KEY_SIZE)
	iv := bytes.Repeat([]byte{0x22}, LOCO_IV_SIZE)

	client, err := newContext(append([]byte(nil), key...), append([]byte(nil), iv...),
		LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1, rand.Reader)
	if err != nil {
		t.Fatalf("newContext failed: %v", err)
	}
	server, err := newContext(append([]byte(nil), key...), append([]byte(nil), iv...),
		LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1, rand.Reader)
	if err != nil {
		t.Fatalf("newContext failed: %v", err)
	}

	// The CFB streams are persistent: several bodies in sequence must
	// decrypt correctly without any per-packet IV reset.
	messages := [][]byte{
		[]byte("first request body"),
		[]byte(""),
		bytes.Repeat([]byte{0xAB}, 4096),
		[]byte("final"),
	}
	for i, msg := range messages {
		ct := client.EncryptBody(msg)
		if len(msg) > 0 && bytes.Equal(ct, msg) {
			t.Errorf("message %d not encrypted", i)
		}
		if len(ct) != len(msg) {
			t.Errorf("message %d: ciphertext %d bytes, plaintext %d", i, len(ct), len(msg))
		}
		pt := server.DecryptBody(ct)
		if !bytes.Equal(pt, msg) {
			t.Errorf("message %d did not round trip", i)
		}
	}
}

func TestWrapForTransportBlobLayout(t *testing.T) {
	serverKey := testServerKey(t)

	c := NewCryptoWithReader(&countingReader{})
	ctx, err := c.NewContext(LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}

	blob, err := ctx.WrapForTransport(&serverKey.PublicKey)
	if err != nil {
		t.Fatalf("WrapForTransport failed: %v", err)
	}

	s := NewStream(blob)
	wrappedLen, _ := s.ReadUint32()
	keyType, _ := s.ReadUint32()
	cipherType, _ := s.ReadUint32()
	if wrappedLen != LOCO_HANDSHAKE_WRAPPED_KEY_SIZE {
		t.Errorf("wrappedKeySize = %d, want %d", wrappedLen, LOCO_HANDSHAKE_WRAPPED_KEY_SIZE)
	}
	if keyType != LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1 {
		t.Errorf("handshakeKeyType = %d, want %d", keyType, LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	}
	if cipherType != LOCO_HANDSHAKE_CIPHER_AES_CFB {
		t.Errorf("bodyCipherType = %d, want %d", cipherType, LOCO_HANDSHAKE_CIPHER_AES_CFB)
	}

	wrapped, err := s.ReadExact(int(wrappedLen))
	if err != nil {
		t.Fatalf("blob shorter than declared: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("%d trailing bytes after wrapped key", s.Len())
	}

	plaintext, err := rsa.DecryptOAEP(sha1.New(), nil, serverKey, wrapped, nil)
	if err != nil {
		t.Fatalf("DecryptOAEP failed: %v", err)
	}
	// The counting reader makes key||iv the bytes 0..31.
	want := make([]byte, LOCO_KEY_SIZE+LOCO_IV_SIZE)
	for i := range want {
		want[i] = byte(i)
	}
	if !bytes.Equal(plaintext, want) {
		t.Errorf("unwrapped material = %x, want %x", plaintext, want)
	}
}

func TestWrapForTransportNilKey(t *testing.T) {
	ctx, err := NewCrypto().NewContext(LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	if _, err := ctx.WrapForTransport(nil); !errors.Is(err, ErrKeyFormat) {
		t.Errorf("WrapForTransport(nil) = %v, want ErrKeyFormat", err)
	}
}

func TestReleaseZeroesMaterial(t *testing.T) {
	ctx, err := NewCrypto().NewContext(LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	ctx.Release()
	if !bytes.Equal(ctx.key, make([]byte, LOCO_KEY_SIZE)) {
		t.Error("key not zeroed after Release")
	}
	if !bytes.Equal(ctx.iv, make([]byte, LOCO_IV_SIZE)) {
		t.Error("iv not zeroed after Release")
	}
}

func TestParsePublicKey(t *testing.T) {
	serverKey := testServerKey(t)

	der, err := x509.MarshalPKIXPublicKey(&serverKey.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	pemBlock := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	pkcs1B64 := base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PublicKey(&serverKey.PublicKey))

	tests := []struct {
		name     string
		material string
		wantErr  bool
	}{
		{"pem pkix", string(pemBlock), false},
		{"base64 pkix der", base64.StdEncoding.EncodeToString(der), false},
		{"base64 pkcs1 der", pkcs1B64, false},
		{"builtin default key", defaultPublicKeyB64, false},
		{"empty", "", true},
		{"garbage", "not a key at all!!", true},
		{"base64 of garbage", base64.StdEncoding.EncodeToString([]byte("garbage")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePublicKey(tt.material)
			if tt.wantErr {
				if !errors.Is(err, ErrKeyFormat) {
					t.Errorf("ParsePublicKey = %v, want ErrKeyFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePublicKey failed: %v", err)
			}
			if key == nil || key.N.Sign() == 0 {
				t.Error("parsed key is empty")
			}
		})
	}
}
