package types

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	JupyterSignatureScheme = "hmac-sha256"
)

// ValidateSignatureScheme checks that messages can be signed with the given scheme.
// The empty scheme is accepted only when the key is empty, which disables signing.
func ValidateSignatureScheme(scheme string, key []byte) error {
	if scheme == JupyterSignatureScheme || (scheme == "" && len(key) == 0) {
		return nil
	}
	return fmt.Errorf("%w: \"%s\"", ErrNotSupportedSignatureScheme, scheme)
}

// Sign computes the lowercase hex HMAC-SHA256 of the given parts in order.
// Signing is disabled when the key is empty, in which case the empty string is returned.
func Sign(key []byte, parts ...[]byte) string {
	if len(key) == 0 {
		return ""
	}

	mac := hmac.New(sha256.New, key)
	for _, part := range parts {
		mac.Write(part)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the signature of parts under key.
// Any signature is accepted when the key is empty. The comparison runs in constant time.
func VerifySignature(key []byte, signature string, parts ...[]byte) bool {
	if len(key) == 0 {
		return true
	}

	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, key)
	for _, part := range parts {
		mac.Write(part)
	}
	return hmac.Equal(claimed, mac.Sum(nil))
}
