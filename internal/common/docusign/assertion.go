// Package docusign talks to the DocuSign OAuth and eSignature REST APIs using
// the JWT bearer grant.
package docusign

import (
	"crypto/rsa"
	"time"

	apperrors "esign-workers/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAudience   = "account.docusign.com"
	DefaultScope      = "signature impersonation"
	assertionLifetime = time.Hour
)

// Credentials identify the integration and the user it impersonates.
type Credentials struct {
	IntegrationKey string // iss
	UserID         string // sub
	PrivateKeyPEM  []byte
}

type AssertionOptions struct {
	Audience string
	Scope    string
}

// AssertionBuilder signs short-lived RS256 assertions for the JWT bearer grant.
type AssertionBuilder struct {
	issuer   string
	subject  string
	audience string
	scope    string
	key      *rsa.PrivateKey
	now      func() time.Time
}

func NewAssertionBuilder(creds Credentials, opts AssertionOptions) (*AssertionBuilder, error) {
	if creds.IntegrationKey == "" || creds.UserID == "" {
		return nil, apperrors.NewConfigurationError("DocuSign credentials are incomplete", "integration key and user id are required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(creds.PrivateKeyPEM)
	if err != nil {
		return nil, apperrors.NewConfigurationError("DocuSign private key is malformed", err.Error())
	}

	if opts.Audience == "" {
		opts.Audience = DefaultAudience
	}
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}

	return &AssertionBuilder{
		issuer:   creds.IntegrationKey,
		subject:  creds.UserID,
		audience: opts.Audience,
		scope:    opts.Scope,
		key:      key,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source.
func (b *AssertionBuilder) WithClock(now func() time.Time) *AssertionBuilder {
	b.now = now
	return b
}

// Build returns a compact signed JWT valid for one hour from now.
func (b *AssertionBuilder) Build() (string, error) {
	iat := b.now().Unix()

	// MapClaims keeps aud a plain string; RegisteredClaims would encode an array.
	claims := jwt.MapClaims{
		"iss":   b.issuer,
		"sub":   b.subject,
		"iat":   iat,
		"exp":   iat + int64(assertionLifetime/time.Second),
		"aud":   b.audience,
		"scope": b.scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.key)
	if err != nil {
		return "", apperrors.NewConfigurationError("failed to sign DocuSign assertion", err.Error())
	}
	return signed, nil
}
