package domain

import "time"

// TokenType discriminates which verification policy applies to a token.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the verified payload of an access or refresh token.
type TokenClaims struct {
	Subject   string
	Phone     string
	TokenType TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
