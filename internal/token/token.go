// Package token mints and verifies the two JWT kinds the realtime layer
// accepts: long-lived access credentials checked by the connection gate, and
// short-lived join tokens binding {booking, user, role} for a single session
// entry. Verification is pure; no storage is consulted here.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// The typ claim keeps the two kinds from standing in for each other: a join
// token is single-purpose and must never pass as a gate credential, nor the
// reverse.
const (
	typeJoin   = "join"
	typeAccess = "access"
)

// JoinClaims binds a single user to a single booking in a single role.
type JoinClaims struct {
	jwt.RegisteredClaims

	TokenType string `json:"typ"`
	BookingID string `json:"bookingId"`
	Role      string `json:"role"`
}

// AccessClaims is the gate credential payload. Subject carries the user id;
// ID (jti) is what the revocation list is keyed on.
type AccessClaims struct {
	jwt.RegisteredClaims

	TokenType string `json:"typ"`
}

// Identity is the verified result of an access credential.
type Identity struct {
	UserID  domain.UserID
	TokenID string
}

type Service struct {
	secret   []byte
	issuer   string
	audience string
	joinTTL  time.Duration

	// now is swappable in tests.
	now func() time.Time
}

func NewService(cfg config.JWTConfig) *Service {
	ttl := cfg.JoinTokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		joinTTL:  ttl,
		now:      time.Now,
	}
}

// MintJoinToken issues a short-lived token permitting one session entry.
func (s *Service) MintJoinToken(bookingID domain.BookingID, userID domain.UserID, role domain.Role) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidToken
	}
	now := s.now()
	claims := JoinClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.joinTTL)),
			ID:        uuid.NewString(),
		},
		TokenType: typeJoin,
		BookingID: string(bookingID),
		Role:      string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyJoinToken checks signature, expiry, issuer/audience and the required
// booking claims. It does not consult storage and does not check the session
// window; that is the state machine's job.
func (s *Service) VerifyJoinToken(raw string) (*JoinClaims, error) {
	var claims JoinClaims
	if err := s.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeJoin {
		return nil, ErrInvalidToken
	}
	if claims.BookingID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if !domain.Role(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// MintAccessToken issues a gate credential for the user. TTL is caller-chosen
// since credential lifetime policy belongs to the auth boundary, not here.
func (s *Service) MintAccessToken(userID domain.UserID, ttl time.Duration) (string, error) {
	now := s.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		TokenType: typeAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyAccessToken checks a gate credential and returns the identity it
// carries. Revocation and account status are checked by the gate.
func (s *Service) VerifyAccessToken(raw string) (*Identity, error) {
	var claims AccessClaims
	if err := s.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeAccess {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: domain.UserID(claims.Subject), TokenID: claims.ID}, nil
}

func (s *Service) parse(raw string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
