package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig describes the HS256 tokens minted by JWTAuth.
type JWTConfig struct {
	Issuer   string
	Subject  string
	Audience []string
	Secret   []byte
	// TTL defaults to five minutes.
	TTL time.Duration
	// Header defaults to Authorization, sent with the Bearer scheme.
	Header string
}

// JWTAuth signs short-lived tokens with a shared secret and reuses each
// token until it is close to expiry.
type JWTAuth struct {
	cfg JWTConfig
	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// JWT returns an authenticator minting tokens from cfg.
func JWT(cfg JWTConfig) (*JWTAuth, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Header == "" {
		cfg.Header = "Authorization"
	}
	return &JWTAuth{cfg: cfg, now: time.Now}, nil
}

// Authenticate attaches a valid token to req.
func (a *JWTAuth) Authenticate(req *http.Request) error {
	tok, err := a.currentToken()
	if err != nil {
		return err
	}
	if a.cfg.Header == "Authorization" {
		tok = "Bearer " + tok
	}
	req.Header.Set(a.cfg.Header, tok)
	return nil
}

func (a *JWTAuth) currentToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	// Renew once less than a tenth of the lifetime remains.
	if a.token != "" && now.Add(a.cfg.TTL/10).Before(a.expires) {
		return a.token, nil
	}

	expires := now.Add(a.cfg.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    a.cfg.Issuer,
		Subject:   a.cfg.Subject,
		Audience:  a.cfg.Audience,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	a.token = signed
	a.expires = expires
	return signed, nil
}
