package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

const tokenIssuerName = "quizmaster"

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (i *tokenIssuer) issue(p domain.Principal) (string, error) {
	now := time.Now()
	c := &claims{
		Email: p.Email,
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuerName,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (i *tokenIssuer) parse(token string) (domain.Principal, error) {
	t, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuerName))
	if err != nil || !t.Valid {
		return domain.Principal{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid token"),
			errors.WithCause(err))
	}

	c, ok := t.Claims.(*claims)
	if !ok {
		return domain.Principal{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid token claims"))
	}

	return domain.Principal{
		UserID: c.Subject,
		Email:  c.Email,
		Role:   domain.Role(c.Role),
	}, nil
}
