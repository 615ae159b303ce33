package main

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pali-coin/node/internal/primitives"
)

const identityFileName = "identity.key"
const identityFileMode = 0600

// loadOrCreateIdentity reads the node's long-lived secure-channel key from
// dataDir, generating and persisting a new one on first run.
func loadOrCreateIdentity(dataDir string) (*primitives.PrivateKey, error) {
	path := filepath.Join(dataDir, identityFileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		return primitives.PrivateKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "identity: read key file")
	}

	priv, _, err := primitives.NewKeyPair(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "identity: generate key")
	}
	if err := os.WriteFile(path, priv.Bytes(), identityFileMode); err != nil {
		return nil, errors.Wrap(err, "identity: persist key file")
	}
	return priv, nil
}
