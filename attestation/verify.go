package attestation

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// Verify is the dual of Build, per spec §4.5 "Verification operation": it
// strips the envelope, recomputes canonical bytes and verification hash,
// compares against the envelope's recorded value, and verifies the
// signature against the envelope's embedded public key. A mismatch at
// either stage returns ErrSignatureInvalid.
func Verify(sc SignedCertificate) error {
	recomputed, err := verificationHash(sc.Certificate)
	if err != nil {
		return fmt.Errorf("%w: canonicalize: %v", ErrSignatureInvalid, err)
	}
	if recomputed != sc.Signature.VerificationHash {
		return ErrSignatureInvalid
	}

	block, _ := pem.Decode([]byte(sc.Signature.PublicKeyPEM))
	if block == nil {
		return fmt.Errorf("%w: embedded public key not PEM", ErrSignatureInvalid)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: parse public key: %v", ErrSignatureInvalid, err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: embedded key is not ECDSA", ErrSignatureInvalid)
	}

	sig, err := base64.StdEncoding.DecodeString(sc.Signature.SignatureB64)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrSignatureInvalid, err)
	}

	digest := sha256.Sum256([]byte(sc.Signature.VerificationHash))
	if !ecdsa.VerifyASN1(ecPub, digest[:], sig) {
		return ErrSignatureInvalid
	}

	return nil
}
