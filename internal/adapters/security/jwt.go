package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

const (
	tokenIssuer   = "evdealer-auth"
	tokenAudience = "evdealer-platform"

	typAccess  = "access"
	typRefresh = "refresh"
	typReset   = "reset"
)

// JWTCodec signs and verifies the three token families with HS256 under
// independent secrets. A token minted under one secret can never verify
// under another, so a refresh token is useless at an access-token boundary
// even before the typ claim is checked.
type JWTCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	resetSecret   []byte
}

// NewJWTCodec validates the secret set up front. Sharing a secret between the
// access and refresh families would collapse their lifetimes into one, so
// equal secrets are a configuration error.
func NewJWTCodec(accessSecret, refreshSecret, resetSecret string) (*JWTCodec, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 || len(resetSecret) < 32 {
		return nil, errors.New("jwt secrets must be at least 32 bytes")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &JWTCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		resetSecret:   []byte(resetSecret),
	}, nil
}

type accessJWTClaims struct {
	Role           string  `json:"role"`
	SessionID      string  `json:"sid"`
	DealerID       *string `json:"dealer_id,omitempty"`
	ManufacturerID *string `json:"manufacturer_id,omitempty"`
	TokenType      string  `json:"typ"`
	jwt.RegisteredClaims
}

type refreshJWTClaims struct {
	SessionID string `json:"sid"`
	Version   int64  `json:"ver"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type resetJWTClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *JWTCodec) IssueAccess(claims ports.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessJWTClaims{
		Role:           string(claims.Role),
		SessionID:      claims.SessionID.String(),
		DealerID:       uuidString(claims.DealerID),
		ManufacturerID: uuidString(claims.ManufacturerID),
		TokenType:      typAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(c.accessSecret)
}

func (c *JWTCodec) IssueRefresh(claims ports.RefreshClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshJWTClaims{
		SessionID: claims.SessionID.String(),
		Version:   claims.Version,
		TokenType: typRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(c.refreshSecret)
}

func (c *JWTCodec) IssueReset(claims ports.ResetClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, resetJWTClaims{
		TokenType: typReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			ID:        claims.TokenID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(c.resetSecret)
}

func (c *JWTCodec) VerifyAccess(raw string) (ports.AccessClaims, error) {
	var claims accessJWTClaims
	if err := c.parse(raw, &claims, c.accessSecret); err != nil {
		return ports.AccessClaims{}, err
	}
	if claims.TokenType != typAccess {
		return ports.AccessClaims{}, domain.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: malformed subject", domain.ErrUnauthorized)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: malformed session id", domain.ErrUnauthorized)
	}
	dealerID, err := parseOptionalUUID(claims.DealerID)
	if err != nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: malformed dealer id", domain.ErrUnauthorized)
	}
	manufacturerID, err := parseOptionalUUID(claims.ManufacturerID)
	if err != nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: malformed manufacturer id", domain.ErrUnauthorized)
	}

	return ports.AccessClaims{
		UserID:         userID,
		Role:           domain.Role(claims.Role),
		SessionID:      sessionID,
		DealerID:       dealerID,
		ManufacturerID: manufacturerID,
		IssuedAt:       claims.IssuedAt.Time.UTC(),
		ExpiresAt:      claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *JWTCodec) VerifyRefresh(raw string) (ports.RefreshClaims, error) {
	var claims refreshJWTClaims
	if err := c.parse(raw, &claims, c.refreshSecret); err != nil {
		return ports.RefreshClaims{}, err
	}
	if claims.TokenType != typRefresh {
		return ports.RefreshClaims{}, domain.ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.RefreshClaims{}, domain.ErrInvalidRefreshToken
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.RefreshClaims{}, domain.ErrInvalidRefreshToken
	}

	return ports.RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		Version:   claims.Version,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *JWTCodec) VerifyReset(raw string) (ports.ResetClaims, error) {
	var claims resetJWTClaims
	if err := c.parse(raw, &claims, c.resetSecret); err != nil {
		return ports.ResetClaims{}, err
	}
	if claims.TokenType != typReset || claims.ID == "" {
		return ports.ResetClaims{}, domain.ErrInvalidResetToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.ResetClaims{}, domain.ErrInvalidResetToken
	}

	return ports.ResetClaims{
		UserID:    userID,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *JWTCodec) parse(raw string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return domain.ErrUnauthorized
	}
	return nil
}

// ExtractBearer pulls the token out of an Authorization header, reporting
// false for any absent or malformed value.
func ExtractBearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
