// Package verify checks OpenPGP detached signatures on downloaded manifests.
//
// Signature checking is optional. When a launcher is configured with a
// release keyring, a remote descriptor is only adopted if the signature
// published next to it verifies against that keyring.
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// DefaultSignatureSuffix is appended to a manifest location to find its signature
const DefaultSignatureSuffix = ".sig"

// ErrSignature is returned when a signature does not verify
var ErrSignature = errors.New("signature verification failed")

// Verifier checks detached signatures against a fixed keyring
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier for keyring
func NewVerifier(keyring openpgp.EntityList) (*Verifier, error) {
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return &Verifier{keyring: keyring}, nil
}

// NewVerifierFromFile loads a keyring file and creates a verifier for it
func NewVerifierFromFile(path string) (*Verifier, error) {
	keyring, err := LoadKeyring(path)
	if err != nil {
		return nil, err
	}
	return NewVerifier(keyring)
}

// LoadKeyring reads an armored or binary public keyring from disk
func LoadKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ReadKeyring(data)
}

// ReadKeyring parses an armored or binary public keyring
func ReadKeyring(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try reading as non-armored keyring
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// Verify checks signature over data. Armored signatures are tried first.
func (v *Verifier) Verify(data, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		// Try non-armored signature
		_, err = openpgp.CheckDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	return nil
}
