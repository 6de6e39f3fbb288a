package attestation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists signed certificates to a directory, per spec §4.5 step 7
// and §5's shared-resource policy: the certificate directory is
// appended-to only, and readers must tolerate new files appearing
// concurrently but need not synchronize with the writer.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attestation: create cert dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes sc to <dir>/<cert_id> as the canonical (sorted-key,
// no-whitespace) text produced by canonicalizeSigned, per spec §4.5 step 7
// ("a canonical representation named <cert_id>") and §6 ("serialized as
// canonical UTF-8 text"). The file name is the bare cert_id, with no
// extension.
func (s *Store) Save(sc SignedCertificate) (string, error) {
	b, err := canonicalizeSigned(sc)
	if err != nil {
		return "", fmt.Errorf("canonicalize certificate: %w", err)
	}

	path := filepath.Join(s.dir, sc.CertID)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write certificate: %w", err)
	}
	return path, nil
}

// Load reads a previously stored certificate back for verification or
// display. The canonical encoding Save writes is still plain JSON (sorted
// keys, no insignificant whitespace), so the standard decoder parses it
// directly.
func (s *Store) Load(certID string) (*SignedCertificate, error) {
	path := filepath.Join(s.dir, certID)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	var sc SignedCertificate
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &sc, nil
}

// List returns every stored cert_id in dir.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cert dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "CERT-") {
			ids = append(ids, name)
		}
	}
	return ids, nil
}
