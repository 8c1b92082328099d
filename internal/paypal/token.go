package paypal

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgstore "github.com/wondertwin-ai/twin-paypal/pkg/store"
)

const (
	defaultAppID     = "APP-80W284485P519543T"
	defaultTokenTTL  = 32400 * time.Second
	tokenIssuerClaim = "https://api.sandbox.paypal.com"
	defaultScope     = "https://uri.paypal.com/services/invoicing " +
		"https://uri.paypal.com/services/subscriptions " +
		"https://api.paypal.com/v1/payments/.* " +
		"https://uri.paypal.com/services/applications/webhooks " +
		"openid"
)

// Token is the OAuth2 client-credentials response body.
type Token struct {
	Scope       string `json:"scope"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AppID       string `json:"app_id"`
	ExpiresIn   int    `json:"expires_in"`
	Nonce       string `json:"nonce"`
}

// TokenClaims are the claims carried by issued access tokens.
type TokenClaims struct {
	AppID string `json:"app_id"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenIssuer mints HS256-signed access tokens.
type TokenIssuer struct {
	key   []byte
	appID string
	scope string
	ttl   time.Duration
}

// NewTokenIssuer creates an issuer signing with key.
func NewTokenIssuer(key []byte) *TokenIssuer {
	return &TokenIssuer{
		key:   key,
		appID: defaultAppID,
		scope: defaultScope,
		ttl:   defaultTokenTTL,
	}
}

// Issue mints a token for clientID at the given time.
func (ti *TokenIssuer) Issue(clientID string, now time.Time) (Token, error) {
	claims := TokenClaims{
		AppID: ti.appID,
		Scope: ti.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuerClaim,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			ID:        pkgstore.RandomHex(16),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}

	return Token{
		Scope:       ti.scope,
		AccessToken: signed,
		TokenType:   "Bearer",
		AppID:       ti.appID,
		ExpiresIn:   int(ti.ttl / time.Second),
		Nonce:       now.UTC().Format(time.RFC3339) + pkgstore.RandomHex(43),
	}, nil
}

func (m *Mock) issueToken() reply {
	tok, err := m.tokens.Issue(m.creds.ClientID, m.clock.Now())
	if err != nil {
		m.logger.Error("token issue failed", "err", err)
		return empty(http.StatusInternalServerError)
	}
	return jsonReply(http.StatusOK, tok)
}
