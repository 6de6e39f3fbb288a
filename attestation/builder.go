package attestation

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blockwipe/wipeattest/wipe"
)

// Builder is the Attestation Builder (C5): consumes a terminal wipe.Result
// and produces a SignedCertificate, per spec §4.5.
type Builder struct {
	keyDir string
	log    *zap.SugaredLogger
	keys   *KeyPair
}

// NewBuilder constructs a Builder whose signing key lives under keyDir,
// loading it lazily (and generating it on first use) the first time Build
// is called.
func NewBuilder(keyDir string, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{keyDir: keyDir, log: log}
}

// Build assembles, canonicalizes, and signs a certificate from result and
// operator, per spec §4.5 steps 1-6. It refuses any result whose status is
// not Completed. It does not persist the certificate; Store.Save does that.
func (b *Builder) Build(result wipe.Result, operator OperatorIdentity) (*SignedCertificate, error) {
	if result.Status != wipe.StatusCompleted {
		return nil, ErrBuildRefusedNonTerminal
	}

	if b.keys == nil {
		keys, err := loadOrGenerateKeyPair(b.keyDir, b.log)
		if err != nil {
			return nil, err
		}
		b.keys = keys
	}

	ds := result.DeviceSnapshot
	generatedAt := result.End.UTC()
	deviceID := ds.Path
	if ds.Serial != "" {
		deviceID = ds.Path + ":" + ds.Serial
	}

	ch := completionHash(ds.Path, ds.Serial, result.Method.CanonicalName(), result.End)

	cert := Certificate{
		CertID:      certID(deviceID, generatedAt),
		Version:     "1.0",
		GeneratedAt: generatedAt,
		DeviceID:    deviceID,
		Device:      ds.Name,
		DeviceInfo: DeviceInfo{
			Model:    ds.Model,
			Serial:   ds.Serial,
			Capacity: ds.SizeBytes,
			Type:     ds.Class,
		},
		MethodUsed:      result.Method.CanonicalName(),
		PassesCompleted: result.PassesCompleted,
		Start:           result.Start.UTC(),
		End:             result.End.UTC(),
		Status:          result.Status.String(),
		Verification: Verification{
			CompletionHash: ch,
			Method:         "SHA-256",
			Verified:       true,
		},
		Operator: operator,
	}

	vHash, err := verificationHash(cert)
	if err != nil {
		return nil, fmt.Errorf("canonicalize certificate: %w", err)
	}

	sig, err := sign(b.keys.Private, vHash)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}

	return &SignedCertificate{
		Certificate: cert,
		Signature: SignatureEnvelope{
			Algorithm:        "ECDSA-SHA256",
			SignatureB64:     base64.StdEncoding.EncodeToString(sig),
			PublicKeyPEM:     b.keys.PublicKeyPEM,
			SignedAt:         time.Now().UTC(),
			VerificationHash: vHash,
		},
	}, nil
}

// sign computes ECDSA over SHA256(verificationHash as UTF-8 bytes), per
// spec §4.5 step 6.
func sign(key *ecdsa.PrivateKey, verificationHash string) ([]byte, error) {
	digest := sha256.Sum256([]byte(verificationHash))
	return ecdsa.SignASN1(rand.Reader, key, digest[:])
}
