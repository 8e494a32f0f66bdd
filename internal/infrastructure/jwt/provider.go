package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-user-service/internal/config"
	"github.com/go-user-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the identity the token was issued for.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{UserID: c.UserID, Username: c.Username, Role: c.Role}
}

type verifyKey struct {
	key      *rsa.PublicKey
	retireAt time.Time // zero while the key is the active signing key
}

// Options tunes token lifetime and key rotation.
type Options struct {
	Expiry time.Duration
	// Grace is how long a rotated-out key still verifies tokens. Set it to at
	// least Expiry so tokens issued just before a rotation live out their TTL.
	Grace  time.Duration
	Issuer string
	Now    func() time.Time
}

// Provider signs and verifies RS256 JWTs. Each token carries a kid header
// naming the key that signed it; Rotate swaps the signing key at runtime.
type Provider struct {
	mu      sync.RWMutex
	signKID string
	signKey *rsa.PrivateKey
	keys    map[string]verifyKey

	expiry time.Duration
	grace  time.Duration
	issuer string
	now    func() time.Time
}

// NewProvider loads the PEM key pair named in cfg.
func NewProvider(cfg *config.Config) (*Provider, error) {
	privKey, err := LoadPrivateKey(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, err
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	if !privKey.PublicKey.Equal(pubKey) {
		return nil, errors.New("public key does not match private key")
	}

	return New(cfg.JWTKeyID, privKey, Options{
		Expiry: cfg.JWTExpiry,
		Grace:  cfg.JWTRotationGrace,
		Issuer: cfg.JWTIssuer,
	})
}

// LoadPrivateKey reads a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// New builds a provider around an in-memory signing key.
func New(kid string, key *rsa.PrivateKey, opts Options) (*Provider, error) {
	if kid == "" || key == nil {
		return nil, errors.New("signing key and kid are required")
	}
	if opts.Expiry <= 0 {
		return nil, errors.New("token expiry must be positive")
	}
	if opts.Grace < 0 {
		return nil, errors.New("rotation grace must not be negative")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		signKID: kid,
		signKey: key,
		keys:    map[string]verifyKey{kid: {key: &key.PublicKey}},
		expiry:  opts.Expiry,
		grace:   opts.Grace,
		issuer:  opts.Issuer,
		now:     opts.Now,
	}, nil
}

func (p *Provider) Sign(principal domain.Principal) (string, error) {
	p.mu.RLock()
	kid, key := p.signKID, p.signKey
	p.mu.RUnlock()

	now := p.now()
	claims := Claims{
		UserID:   principal.UserID,
		Username: principal.Username,
		Role:     principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

// Verify checks signature and expiry. It returns domain.ErrSessionExpired for
// a well-signed token past its expiry and domain.ErrSignatureInvalid for
// everything else (bad signature, unknown or retired kid, malformed input).
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, &Claims{}, p.keyFor)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrSignatureInvalid)
	}
	return claims, nil
}

// Rotate makes key the signing key under kid. The previous signing key keeps
// verifying for the configured grace window, then stops.
func (p *Provider) Rotate(kid string, key *rsa.PrivateKey) error {
	if kid == "" || key == nil {
		return errors.New("signing key and kid are required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.keys[kid]; exists {
		return fmt.Errorf("kid %q already in use", kid)
	}
	now := p.now()
	prev := p.keys[p.signKID]
	prev.retireAt = now.Add(p.grace)
	p.keys[p.signKID] = prev
	p.keys[kid] = verifyKey{key: &key.PublicKey}
	p.signKID, p.signKey = kid, key

	for id, k := range p.keys {
		if !k.retireAt.IsZero() && now.After(k.retireAt) {
			delete(p.keys, id)
		}
	}
	return nil
}

// KeyID returns the kid currently used for signing.
func (p *Provider) KeyID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signKID
}

func (p *Provider) keyFor(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.New("unexpected signing method")
	}
	kid, _ := t.Header["kid"].(string)
	p.mu.RLock()
	k, ok := p.keys[kid]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	if !k.retireAt.IsZero() && p.now().After(k.retireAt) {
		return nil, fmt.Errorf("kid %q retired", kid)
	}
	return k.key, nil
}
