package approval

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// ticketEnv holds raw env values before post-parse validation.
type ticketEnv struct {
	Issuer     string        `env:"CONCORDIA_TICKET_ISSUER"`
	Audience   string        `env:"CONCORDIA_TICKET_AUDIENCE"`
	PrivateKey string        `env:"CONCORDIA_TICKET_PRIVATE_KEY"`
	TTL        time.Duration `env:"CONCORDIA_TICKET_TTL"         envDefault:"0"`
}

// TicketIssuer mints and verifies signed grant tickets bound to approval
// requests. A ticket proves the signal refers to a request this process
// created, even when the prompt surface is outside our control.
type TicketIssuer struct {
	issuer   string
	audience string
	key      ed25519.PrivateKey
	// ttl of zero means tickets never expire, matching requests that stay
	// open indefinitely.
	ttl   time.Duration
	clock func() time.Time
}

// ticketClaims is the claims type used for JWT encoding and parsing.
type ticketClaims struct {
	jwt.RegisteredClaims
	Kind        string `json:"kind"`
	RequesterID string `json:"requester_id"`
	TargetID    string `json:"target_id"`
}

// LoadTicketIssuerFromEnv reads ticket signing configuration. It returns
// (nil, nil) when no private key is configured: ticket checks are disabled.
func LoadTicketIssuerFromEnv(now func() time.Time) (*TicketIssuer, error) {
	var raw ticketEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse ticket env: %w", err)
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return nil, nil
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	if issuer == "" {
		return nil, fmt.Errorf("CONCORDIA_TICKET_ISSUER is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("CONCORDIA_TICKET_AUDIENCE is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decode ticket private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ticket private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL < 0 {
		return nil, fmt.Errorf("ticket ttl must not be negative")
	}
	if now == nil {
		now = time.Now
	}
	return &TicketIssuer{
		issuer:   issuer,
		audience: audience,
		key:      ed25519.PrivateKey(keyBytes),
		ttl:      raw.TTL,
		clock:    now,
	}, nil
}

// NewTicketIssuer creates an issuer from explicit values, for tests and
// embedders that do not use env configuration.
func NewTicketIssuer(issuer, audience string, key ed25519.PrivateKey, ttl time.Duration, now func() time.Time) (*TicketIssuer, error) {
	if strings.TrimSpace(issuer) == "" || strings.TrimSpace(audience) == "" {
		return nil, errors.New("ticket issuer and audience are required")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ticket private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return &TicketIssuer{
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		key:      key,
		ttl:      ttl,
		clock:    now,
	}, nil
}

// Mint signs a grant ticket for a pending request.
func (ti *TicketIssuer) Mint(pending Pending) (string, error) {
	now := ti.clock().UTC()
	claims := ticketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       pending.ID,
			Issuer:   ti.issuer,
			Audience: jwt.ClaimStrings{ti.audience},
			IssuedAt: jwt.NewNumericDate(now),
		},
		Kind:        pending.Kind.String(),
		RequesterID: pending.RequesterID,
		TargetID:    pending.TargetID,
	}
	if ti.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ti.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return signed, nil
}

// Verify checks a grant ticket against the pending request it should be
// bound to. Claim validation is manual so expiry honors the issuer's clock.
func (ti *TicketIssuer) Verify(ticket string, pending Pending) error {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return apperrors.New(apperrors.CodeTicketInvalid, "approval ticket is required")
	}

	var parsed ticketClaims
	_, err := jwt.ParseWithClaims(ticket, &parsed, func(token *jwt.Token) (any, error) {
		return ti.key.Public(), nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != ti.issuer {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !audienceContains(parsed.Audience, ti.audience) {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket audience mismatch", map[string]string{"Field": "audience"})
	}
	if parsed.ExpiresAt != nil {
		now := ti.clock().UTC()
		if !parsed.ExpiresAt.Time.UTC().After(now) {
			return apperrors.New(apperrors.CodeTicketExpired, "approval ticket is expired")
		}
	}
	if parsed.ID == "" || parsed.ID != pending.ID {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket request mismatch", map[string]string{"Field": "jti"})
	}
	if parsed.Kind != pending.Kind.String() {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket kind mismatch", map[string]string{"Field": "kind"})
	}
	if parsed.RequesterID != pending.RequesterID {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket requester mismatch", map[string]string{"Field": "requester_id"})
	}
	if parsed.TargetID != pending.TargetID {
		return apperrors.WithMetadata(apperrors.CodeTicketMismatch,
			"ticket target mismatch", map[string]string{"Field": "target_id"})
	}
	return nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTicketInvalid, "approval ticket signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTicketInvalid, "approval ticket alg is invalid")
	}
	return apperrors.New(apperrors.CodeTicketInvalid, "approval ticket is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
