package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Kind tags how a stored value was interpreted at read time.
type Kind int

const (
	// KindSealed marks a value that decrypted successfully.
	KindSealed Kind = iota
	// KindLegacy marks a stored value that was never sealed. Historical rows
	// may hold plaintext in the same columns; they are tolerated, not errors.
	KindLegacy
)

// Value is the result of decoding one stored scalar.
type Value struct {
	Kind      Kind
	Plaintext string
}

// Cipher performs authenticated field-level encryption with the keyring's key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds an AES-GCM cipher from the keyring.
func NewCipher(k *Keyring) (*Cipher, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, &KeyError{Path: k.path, Reason: fmt.Sprintf("create cipher: %v", err)}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &KeyError{Path: k.path, Reason: fmt.Sprintf("create GCM: %v", err)}
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts one plaintext scalar to a base64 token. The nonce is random,
// so sealing the same plaintext twice yields different ciphertexts; equality
// over sealed columns therefore lives in the pii package, not in SQL.
func (c *Cipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce generation failed: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// SealPtr seals an optional scalar, mapping nil to nil.
func (c *Cipher) SealPtr(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	token, err := c.Seal(*plaintext)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Decode interprets one stored value. A token this cipher produced decodes to
// its exact original plaintext; anything that fails base64 decoding or GCM
// authentication is reported as legacy plaintext, unchanged.
func (c *Cipher) Decode(stored string) Value {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return Value{Kind: KindLegacy, Plaintext: stored}
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Value{Kind: KindLegacy, Plaintext: stored}
	}
	return Value{Kind: KindSealed, Plaintext: string(plaintext)}
}

// Unseal returns the plaintext for a stored value, falling back to the value
// itself for legacy rows. It never fails once the cipher exists.
func (c *Cipher) Unseal(stored string) string {
	return c.Decode(stored).Plaintext
}

// UnsealPtr unseals an optional stored value, mapping nil to nil.
func (c *Cipher) UnsealPtr(stored *string) *string {
	if stored == nil {
		return nil
	}
	plaintext := c.Unseal(*stored)
	return &plaintext
}
