package testutil

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// Signer is a throwaway OpenPGP identity for signing test manifests
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner generates a fresh ed25519 signing identity
func NewSigner(t *testing.T) *Signer {
	t.Helper()

	entity, err := openpgp.NewEntity("Launcher Test", "", "release@example.org", &packet.Config{
		Algorithm: packet.PubKeyAlgoEdDSA,
	})
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	return &Signer{entity: entity}
}

// ArmoredKeyring returns the public key as an armored keyring
func (s *Signer) ArmoredKeyring(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("failed to create armor writer: %v", err)
	}
	if err := s.entity.Serialize(w); err != nil {
		t.Fatalf("failed to serialize public key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close armor writer: %v", err)
	}

	return buf.Bytes()
}

// Keyring returns the public key as an entity list
func (s *Signer) Keyring() openpgp.EntityList {
	return openpgp.EntityList{s.entity}
}

// SignArmored returns an armored detached signature over data
func (s *Signer) SignArmored(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return buf.Bytes()
}

// SignBinary returns a binary detached signature over data
func (s *Signer) SignBinary(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := openpgp.DetachSign(&buf, s.entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return buf.Bytes()
}
