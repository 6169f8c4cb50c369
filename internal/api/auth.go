package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenExpiration = 24 * time.Hour
	tokenIssuer            = "go-whiteboard"
)

var ErrInvalidToken = errors.New("invalid connection token")

// createConnectionToken signs a token that lets a reconnecting client
// resume connId.
func (s *WhiteboardApp) createConnectionToken(connId string, exp time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   connId,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
	})

	return token.SignedString(s.signingKey)
}

func (s *WhiteboardApp) verifyConnectionToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// connectionId resumes the identity carried by tokenString unless the token
// is invalid or that identity is already connected.
func (s *WhiteboardApp) connectionId(tokenString string) string {
	if tokenString == "" {
		return s.newConnId()
	}

	id, err := s.verifyConnectionToken(tokenString)
	switch {
	case err != nil:
		s.log.Printf("ignoring connection token: %v", err)
	case s.bs.IsLive(id):
		s.log.Printf("connection %q is already live, assigning a new id", id)
	default:
		return id
	}

	return s.newConnId()
}
