package handoff

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sealAudience scopes sealed tokens to handoff transport. A token minted
// for any other purpose fails verification here even under the same key.
const sealAudience = "shikko-handoff"

const sealIssuer = "shikko"

// sealClaims carries the package through an Ed25519-signed JWS. The content
// hash is signed separately from the payload so a receiver can detect a
// substituted package body even if the JSON still parses.
type sealClaims struct {
	jwt.RegisteredClaims
	Package     json.RawMessage `json:"package"`
	ContentHash string          `json:"content_hash"`
}

// Sealer signs handoff packages for transit across untrusted channels and
// verifies them on receipt. This is tamper evidence, not authentication:
// Open proves the package is intact and was sealed by the key holder,
// nothing about who may act on it.
type Sealer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSealer builds a Sealer from PEM-encoded Ed25519 keys (PKCS#8 private,
// PKIX public). The pair is cross-checked so a mismatched deployment fails
// at construction instead of at the first Open.
func NewSealer(privPEM, pubPEM []byte) (*Sealer, error) {
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("handoff: decode private key PEM")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("handoff: parse private key: %w", err)
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("handoff: private key is not Ed25519")
	}

	pubBlock, _ := pem.Decode(pubPEM)
	if pubBlock == nil {
		return nil, fmt.Errorf("handoff: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("handoff: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("handoff: public key is not Ed25519")
	}

	derivedPub := edPriv.Public().(ed25519.PublicKey)
	if !bytes.Equal(derivedPub, edPub) {
		return nil, fmt.Errorf("handoff: public key does not match private key")
	}

	return &Sealer{privateKey: edPriv, publicKey: edPub}, nil
}

// NewEphemeralSealer generates a throwaway key pair. Useful for tests and
// single-process setups where packages never leave the process.
func NewEphemeralSealer() (*Sealer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("handoff: generate key pair: %w", err)
	}
	return &Sealer{privateKey: priv, publicKey: pub}, nil
}

// Seal wraps the package in a signed token. The token expires with the
// package when the package has an expiry, otherwise it does not expire.
func (s *Sealer) Seal(pkg *Package) (string, error) {
	if pkg == nil {
		return "", fmt.Errorf("handoff: seal: nil package")
	}
	payload, err := pkg.JSON()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := sealClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  pkg.ID.String(),
			Issuer:   sealIssuer,
			Audience: jwt.ClaimStrings{sealAudience},
			IssuedAt: jwt.NewNumericDate(now),
		},
		Package:     payload,
		ContentHash: pkg.ContentHash(),
	}
	if pkg.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*pkg.ExpiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("handoff: sign package: %w", err)
	}
	return signed, nil
}

// Open verifies a sealed token and re-hydrates the package inside it. It
// rejects bad signatures, wrong audiences, expired seals, and payloads whose
// content hash no longer matches the signed digest, then runs the payload
// through Parse for the usual schema-version gate.
func (s *Sealer) Open(tokenStr string) (*Package, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sealClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("handoff: unexpected signing method: %v", token.Header["alg"])
			}
			return s.publicKey, nil
		},
		jwt.WithAudience(sealAudience),
		jwt.WithIssuer(sealIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("handoff: open sealed package: %w", err)
	}

	claims, ok := token.Claims.(*sealClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("handoff: invalid seal claims")
	}

	pkg, err := Parse([]byte(claims.Package))
	if err != nil {
		return nil, err
	}
	if pkg.ContentHash() != claims.ContentHash {
		return nil, fmt.Errorf("handoff: open sealed package: content hash mismatch")
	}
	return pkg, nil
}
