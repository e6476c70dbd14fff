// Package crypto seals and unseals the confidential scalar fields that are
// stored encrypted at rest (national ids, emails, phones, addresses,
// emergency contacts).
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

const keySize = 32 // AES-256

// KeyError reports unusable key material. It aborts startup: a present but
// corrupt key file must never be silently replaced.
type KeyError struct {
	Path   string
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("encryption key at %s unusable: %s", e.Path, e.Reason)
}

// Keyring owns the symmetric key lifecycle: generated once on first run,
// persisted to a protected file, loaded and validated on every start.
type Keyring struct {
	key  []byte
	path string
}

// LoadOrCreate loads the key file at path, generating and persisting a fresh
// key when none exists. An existing valid key is never overwritten.
func LoadOrCreate(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, decodeErr := hex.DecodeString(string(raw))
		if decodeErr != nil {
			return nil, &KeyError{Path: path, Reason: "not valid hex"}
		}
		if len(key) != keySize {
			return nil, &KeyError{Path: path, Reason: fmt.Sprintf("expected %d bytes, got %d", keySize, len(key))}
		}
		return &Keyring{key: key, path: path}, nil
	case errors.Is(err, os.ErrNotExist):
		return generate(path)
	default:
		return nil, &KeyError{Path: path, Reason: err.Error()}
	}
}

func generate(path string) (*Keyring, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, &KeyError{Path: path, Reason: fmt.Sprintf("generate: %v", err)}
	}
	// O_EXCL so a concurrent first run cannot clobber a key written between
	// the read above and this create.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrCreate(path)
		}
		return nil, &KeyError{Path: path, Reason: fmt.Sprintf("persist: %v", err)}
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(key)); err != nil {
		return nil, &KeyError{Path: path, Reason: fmt.Sprintf("persist: %v", err)}
	}
	return &Keyring{key: key, path: path}, nil
}

// Path returns the location of the persisted key file.
func (k *Keyring) Path() string {
	return k.path
}
