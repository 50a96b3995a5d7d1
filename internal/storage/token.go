package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const uploadTokenIssuer = "rushroster-storage"

type uploadClaims struct {
	Key         string `json:"key"`
	ContentType string `json:"ct"`
	jwt.RegisteredClaims
}

func (s *LocalStorage) signUploadToken(key, contentType string, expiresIn time.Duration) (string, error) {
	now := s.now()
	claims := uploadClaims{
		Key:         key,
		ContentType: contentType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    uploadTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyUploadToken checks that token authorizes an upload of key and
// returns the content type it was issued for.
func (s *LocalStorage) VerifyUploadToken(key, token string) (string, error) {
	if token == "" {
		return "", ErrUploadToken
	}

	claims := &uploadClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(uploadTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", ErrUploadToken)
		}
		return "", ErrUploadToken
	}
	if claims.Key != key {
		return "", fmt.Errorf("%w: key mismatch", ErrUploadToken)
	}

	return claims.ContentType, nil
}
