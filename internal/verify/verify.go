// Package verify checks detached OpenPGP signatures on configuration inputs
// such as the component registry and hardware profiles.
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

// SignatureSuffixes are tried in order when looking for a file's signature.
var SignatureSuffixes = []string{".asc", ".sig"}

// ErrNoSignature is returned when no signature file exists next to the data.
var ErrNoSignature = errors.New("signature file not found")

// Keyring is a parsed set of trusted public keys.
type Keyring struct {
	entities openpgp.EntityList
}

// ParseKeyring accepts armored or binary public keys.
func ParseKeyring(data []byte) (*Keyring, error) {
	log := logger.Logger()

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		log.Debugf("Keyring is not armored, trying binary format: %v", err)
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key (tried both armored and binary formats): %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, errors.New("keyring holds no keys")
	}
	return &Keyring{entities: entities}, nil
}

// LoadKeyring reads a keyring file.
func LoadKeyring(path string) (*Keyring, error) {
	data, err := security.SafeReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring %s: %w", path, err)
	}
	return ParseKeyring(data)
}

// Len is the number of keys in the ring.
func (k *Keyring) Len() int {
	return len(k.entities)
}

// Check verifies signature over data, trying the armored form first. It
// returns the key id of the signer.
func (k *Keyring) Check(data, signature []byte) (uint64, error) {
	signer, err := openpgp.CheckArmoredDetachedSignature(k.entities, bytes.NewReader(data), bytes.NewReader(signature), &packet.Config{})
	if err != nil {
		var binErr error
		signer, binErr = openpgp.CheckDetachedSignature(k.entities, bytes.NewReader(data), bytes.NewReader(signature), &packet.Config{})
		if binErr != nil {
			return 0, fmt.Errorf("signature verification failed (tried both armored and binary): %w", errors.Join(err, binErr))
		}
	}
	return signer.PrimaryKey.KeyId, nil
}

// FindSignature returns the first existing signature file for path.
func FindSignature(path string) (string, error) {
	for _, suffix := range SignatureSuffixes {
		candidate := path + suffix
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrNoSignature, path)
}

// VerifyFile checks path against its detached signature file.
func (k *Keyring) VerifyFile(path string) error {
	log := logger.Logger()

	sigPath, err := FindSignature(path)
	if err != nil {
		return err
	}
	data, err := security.SafeReadFile(path, security.RejectSymlinks)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	sig, err := security.SafeReadFile(sigPath, security.RejectSymlinks)
	if err != nil {
		return fmt.Errorf("failed to read signature %s: %w", sigPath, err)
	}
	keyID, err := k.Check(data, sig)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("Verified %s (key %016X)", path, keyID)
	return nil
}
