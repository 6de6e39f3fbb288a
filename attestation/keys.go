package attestation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	privateKeyFile = "private_key.pem"
	publicKeyFile  = "public_key.pem"
)

// KeyPair is the loaded (or freshly generated) ECDSA P-256 signing
// identity, per spec §4.5 step 5 / §6 "Key files".
type KeyPair struct {
	Private       *ecdsa.PrivateKey
	PublicKeyPEM  string
}

// loadOrGenerateKeyPair loads private_key.pem/public_key.pem from keyDir,
// generating and persisting a fresh P-256 pair on first use. Concurrent
// first-use across processes is serialized via an exclusive create of the
// private key file (spec §5 shared-resource policy): the creator wins and
// persists both halves; every other racer's O_EXCL create fails, and it
// falls back to loading what the winner wrote.
//
// No ECDSA-P256 signing library appears anywhere in the retrieved example
// corpus (the original_source Python uses pycryptodome's ECC/DSS, which has
// no Go-ecosystem analog present in the pack), so stdlib crypto/ecdsa,
// crypto/x509, and encoding/pem are used directly — the one deliberately
// stdlib-only component in this package, as recorded in the dependency
// ledger.
func loadOrGenerateKeyPair(keyDir string, log *zap.SugaredLogger) (*KeyPair, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: mkdir key dir: %v", ErrKeyMissingOrCorrupt, err)
	}

	privPath := filepath.Join(keyDir, privateKeyFile)
	pubPath := filepath.Join(keyDir, publicKeyFile)

	if _, err := os.Stat(privPath); err == nil {
		return loadKeyPair(privPath, pubPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: stat private key: %v", ErrKeyMissingOrCorrupt, err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	f, err := os.OpenFile(privPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			// Another process won the race; use what it persisted.
			return loadKeyPair(privPath, pubPath)
		}
		return nil, fmt.Errorf("%w: create private key: %v", ErrKeyMissingOrCorrupt, err)
	}
	if _, err := f.Write(privPEM); err != nil {
		f.Close()
		return nil, fmt.Errorf("write private key: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close private key: %w", err)
	}

	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}

	log.Infow("generated new attestation signing key", "dir", keyDir)

	return &KeyPair{Private: key, PublicKeyPEM: string(pubPEM)}, nil
}

func loadKeyPair(privPath, pubPath string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %v", ErrKeyMissingOrCorrupt, err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: private key not PEM", ErrKeyMissingOrCorrupt)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrKeyMissingOrCorrupt, err)
	}

	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read public key: %v", ErrKeyMissingOrCorrupt, err)
	}

	return &KeyPair{Private: key, PublicKeyPEM: string(pubPEM)}, nil
}
