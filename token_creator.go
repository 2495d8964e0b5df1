package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenCreator mints and checks the verification tokens that tie a face
// check to an earlier ID verification.
type TokenCreator interface {
	CreateVerificationToken(idType string) (string, error)
	ParseVerificationToken(token string) (*VerificationClaims, error)
}

// VerificationClaims is the payload of a verification token.
type VerificationClaims struct {
	IDType string `json:"idType"`
	jwt.RegisteredClaims
}

// HmacTokenCreator signs verification tokens with a shared HMAC secret. The
// token validity matches the ID-verification freshness window.
type HmacTokenCreator struct {
	secret   []byte
	issuer   string
	validity time.Duration
}

func NewHmacTokenCreator(secret string, issuer string, validity time.Duration) *HmacTokenCreator {
	return &HmacTokenCreator{
		secret:   []byte(secret),
		issuer:   issuer,
		validity: validity,
	}
}

func (tc *HmacTokenCreator) CreateVerificationToken(idType string) (string, error) {
	now := time.Now()
	claims := VerificationClaims{
		IDType: idType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tc.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}
	return signed, nil
}

func (tc *HmacTokenCreator) ParseVerificationToken(tokenString string) (*VerificationClaims, error) {
	claims := &VerificationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tc.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("verification token is not valid")
	}
	return claims, nil
}
