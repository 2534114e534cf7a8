package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("missing or invalid bearer token")

// Claims is the verified identity attached to a request.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"` // user, charity, admin
	CharityID string `json:"charity_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth issues and verifies the platform's bearer tokens.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// IssueToken signs a token for the given identity, valid for 24 hours.
func (a *Auth) IssueToken(userID, role, charityID string) (string, error) {
	claims := Claims{
		UserID:    userID,
		Role:      role,
		CharityID: charityID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate verifies the request's bearer token and returns its claims.
func (a *Auth) Authenticate(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errUnauthorized
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	return &claims, nil
}
