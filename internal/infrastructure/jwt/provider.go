package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/domain"
)

const issuer = "unifiro-api"

// Claims holds the JWT payload fields. The account id travels as "sub".
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Provider signs and verifies session JWTs, RS256 when a key pair is
// configured and HS256 otherwise.
type Provider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewProvider loads the RSA key pair from cfg. When the files cannot be read
// and a shared secret is configured, it falls back to HS256.
func NewProvider(cfg config.JWT) (*Provider, error) {
	p, err := loadRSA(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err == nil {
		return p, nil
	}
	if cfg.Secret != "" {
		return NewHMACProvider([]byte(cfg.Secret)), nil
	}
	return nil, err
}

func loadRSA(privPath, pubPath string) (*Provider, error) {
	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return NewRSAProvider(privKey, pubKey), nil
}

func NewRSAProvider(priv *rsa.PrivateKey, pub *rsa.PublicKey) *Provider {
	return &Provider{method: jwt.SigningMethodRS256, signKey: priv, verifyKey: pub}
}

func NewHMACProvider(secret []byte) *Provider {
	return &Provider{method: jwt.SigningMethodHS256, signKey: secret, verifyKey: secret}
}

// Algorithm names the signing method in use.
func (p *Provider) Algorithm() string { return p.method.Alg() }

func (p *Provider) Sign(c domain.SessionClaims) (string, error) {
	claims := Claims{
		Kind: string(c.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.AccountID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(p.method, claims)
	return token.SignedString(p.signKey)
}

func (p *Provider) Parse(tokenStr string) (*domain.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	out := &domain.SessionClaims{
		AccountID: claims.Subject,
		Kind:      domain.AccountKind(claims.Kind),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
