package lib

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/theleywin/Backend-Social-Feed/src/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the identity provider signs into the bearer token.
type Claims struct {
	Handle   string `json:"handle"`
	ImageURL string `json:"imageUrl"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for user. Tokens are normally issued by the
// identity provider; this is for tooling and tests that share its secret.
func GenerateJWT(user models.User, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		Handle:   user.Handle,
		ImageURL: user.ImageURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Handle,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyJWT checks the HMAC signature and expiry and returns the identity.
func VerifyJWT(tokenString, secret string) (models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.User{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Handle == "" {
		return models.User{}, ErrInvalidToken
	}
	return models.User{Handle: claims.Handle, ImageURL: claims.ImageURL}, nil
}
