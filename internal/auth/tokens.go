package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

const TokenTTL = 24 * time.Hour

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer carries a Principal across requests as a signed JWT. The claims
// snapshot (user id, role) at sign-in; a later role change does not reach
// tokens minted before it.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue creates a new JWT token for a principal.
func (t *TokenIssuer) Issue(p models.Principal) (string, error) {
	claims := &Claims{
		UserID: p.UserID.Hex(),
		Role:   string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", trace.Wrap(err)
	}
	return signed, nil
}

// Validate parses and validates a token and restores the principal it carries.
func (t *TokenIssuer) Validate(tokenString string) (models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, trace.AccessDenied("invalid token")
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || !models.ValidRole(claims.Role) {
		return models.Principal{}, trace.AccessDenied("invalid token")
	}
	return models.Principal{UserID: userID, Role: models.Role(claims.Role)}, nil
}
