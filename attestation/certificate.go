// Package attestation implements the Attestation Builder (C5): signed,
// tamper-evident certificates proving a wipe operation ran to completion.
package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// OperatorIdentity names who ran the wipe, persisted into the certificate
// body verbatim.
type OperatorIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// DeviceInfo is the device_info sub-object of the on-disk certificate
// format.
type DeviceInfo struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Capacity uint64 `json:"capacity"`
	Type     string `json:"type"`
}

// Verification is the verification sub-object: the device-level completion
// digest, distinct from the signature envelope's verification_hash.
type Verification struct {
	CompletionHash string `json:"completion_hash"`
	Method         string `json:"method"`
	Verified       bool   `json:"verified"`
}

// SignatureEnvelope carries the signature over the certificate body plus
// everything a verifier needs without consulting any other source.
type SignatureEnvelope struct {
	Algorithm        string    `json:"algorithm"`
	SignatureB64      string    `json:"signature"`
	PublicKeyPEM     string    `json:"public_key"`
	SignedAt         time.Time `json:"signed_at"`
	VerificationHash string    `json:"verification_hash"`
}

// Certificate is the unsigned certificate body, per spec §6. Immutable once
// built; canonicalized (excluding the signature envelope) as the signing
// preimage.
type Certificate struct {
	CertID          string           `json:"cert_id"`
	Version         string           `json:"version"`
	GeneratedAt     time.Time        `json:"generated_at"`
	DeviceID        string           `json:"device_id"`
	Device          string           `json:"device"`
	DeviceInfo      DeviceInfo       `json:"device_info"`
	MethodUsed      string           `json:"method_used"`
	PassesCompleted int              `json:"passes_completed"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Status          string           `json:"status"`
	Verification    Verification     `json:"verification"`
	Operator        OperatorIdentity `json:"operator"`
}

// SignedCertificate is a Certificate plus its signature envelope.
type SignedCertificate struct {
	Certificate
	Signature SignatureEnvelope `json:"_signature"`
}

// ErrBuildRefusedNonTerminal is returned when Build is attempted against a
// Result whose status is not Completed, per spec §4.5/§7
// BuildRefused_NonTerminalSuccess. This is the one error in this package
// callers should treat as a programming error, not an expected failure mode.
var ErrBuildRefusedNonTerminal = fmt.Errorf("attestation: build refused, wipe result is not Completed")

// ErrSignatureInvalid is returned by Verify on any mismatch: recomputed
// verification hash, or signature over it, per spec §4.5/§7.
var ErrSignatureInvalid = fmt.Errorf("attestation: signature invalid")

// ErrKeyMissingOrCorrupt surfaces a key-directory read failure, spec §7
// KeyMissingOrCorrupt.
var ErrKeyMissingOrCorrupt = fmt.Errorf("attestation: key missing or corrupt")

// completionHash computes the device-level digest embedded in the
// certificate body, per spec §4.5 step 1.
func completionHash(path, serial, methodName string, end time.Time) string {
	preimage := path + ":" + serial + ":" + methodName + ":" + end.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

// certID derives the certificate identifier from (device_id, generated_at),
// per spec §4.5 step 2 / §8 invariant 5. The spec's own annotation ("16 hex
// characters") and its pinned test vector (S6) both take the first 16
// characters of the full lowercase hex digest, not the first 8 bytes before
// hexing; original_source/desktop_app/certificate_utils/signer.py's
// generate_cert_id confirms this reading (hexdigest()[:16].upper()), so
// that is the behavior implemented here despite §4.5 step 2's prose saying
// "[:8]" — an internal inconsistency resolved in favor of the annotation,
// the test vector, and the original source.
func certID(deviceID string, generatedAt time.Time) string {
	preimage := deviceID + ":" + generatedAt.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(preimage))
	hexDigest := hex.EncodeToString(sum[:])
	return "CERT-" + strings.ToUpper(hexDigest[:16])
}
