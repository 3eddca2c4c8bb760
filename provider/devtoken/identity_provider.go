package devtoken

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	brokerauth "github.com/goliatone/broker-auth"
)

const (
	issuerName = "brokerauth-devtoken"

	audienceIdentity = "identity"
	audienceSession  = "session"

	// DefaultIDTokenTTL bounds the short-lived identity tokens minted by
	// MintIDToken; the provider never mints longer ones.
	DefaultIDTokenTTL = 5 * time.Minute
)

type devClaims struct {
	jwt.RegisteredClaims
	PhoneNumber string `json:"phone_number,omitempty"`
	Epoch       int64  `json:"epoch,omitempty"`
}

// IdentityProvider implements brokerauth.IdentityProvider with HS256 tokens
// signed by a shared secret. Revocation is per-uid: RevokeSessions bumps the
// user's epoch and any session cookie minted under an older epoch fails
// verification.
type IdentityProvider struct {
	secret []byte
	now    func() time.Time

	mu     sync.RWMutex
	epochs map[string]int64
}

var _ brokerauth.IdentityProvider = (*IdentityProvider)(nil)

// Option customizes provider construction.
type Option func(*IdentityProvider)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(p *IdentityProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewIdentityProvider creates a dev provider signing with the given secret.
func NewIdentityProvider(secret string, opts ...Option) (*IdentityProvider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("devtoken: signing secret is required")
	}

	p := &IdentityProvider{
		secret: []byte(secret),
		now:    time.Now,
		epochs: map[string]int64{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// MintIDToken issues a short-lived identity token for the given uid and
// phone, standing in for the OTP verification a real provider performs.
func (p *IdentityProvider) MintIDToken(uid, phoneNumber string) (string, error) {
	now := p.now()
	claims := devClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   uid,
			Audience:  jwt.ClaimStrings{audienceIdentity},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(DefaultIDTokenTTL)),
		},
		PhoneNumber: phoneNumber,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// VerifyIDToken implements brokerauth.IdentityProvider.
func (p *IdentityProvider) VerifyIDToken(ctx context.Context, idToken string) (*brokerauth.IdentityToken, error) {
	claims, err := p.parse(idToken, audienceIdentity)
	if err != nil {
		return nil, err
	}

	return &brokerauth.IdentityToken{
		UID:         claims.Subject,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}

// SessionCookie implements brokerauth.IdentityProvider. The cookie is a
// fresh JWT carrying the uid, phone, and the uid's current epoch.
func (p *IdentityProvider) SessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	claims, err := p.parse(idToken, audienceIdentity)
	if err != nil {
		return "", err
	}

	if ttl <= 0 {
		ttl = brokerauth.DefaultSessionTTL
	}

	now := p.now()
	sessionClaims := devClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{audienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PhoneNumber: claims.PhoneNumber,
		Epoch:       p.epoch(claims.Subject),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims).SignedString(p.secret)
}

// VerifySessionCookie implements brokerauth.IdentityProvider.
func (p *IdentityProvider) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*brokerauth.IdentityToken, error) {
	claims, err := p.parse(cookie, audienceSession)
	if err != nil {
		return nil, err
	}

	if checkRevoked && claims.Epoch < p.epoch(claims.Subject) {
		return nil, fmt.Errorf("devtoken: session revoked for uid %s", claims.Subject)
	}

	return &brokerauth.IdentityToken{
		UID:         claims.Subject,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}

// RevokeSessions implements brokerauth.IdentityProvider.
func (p *IdentityProvider) RevokeSessions(ctx context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epochs[uid]++
	return nil
}

func (p *IdentityProvider) epoch(uid string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epochs[uid]
}

func (p *IdentityProvider) parse(tokenString, audience string) (*devClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &devClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("devtoken: unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithIssuer(issuerName),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("devtoken: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*devClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("devtoken: malformed claims")
	}

	return claims, nil
}
