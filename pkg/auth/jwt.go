// Package auth turns bearer tokens issued by the authentication service
// into actors.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fulfillment/pkg/models"
)

const issuer = "fulfillment"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	ActorID      int64       `json:"actor_id"`
	Role         models.Role `json:"role"`
	RestaurantID int64       `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() models.Actor {
	return models.Actor{Role: c.Role, ID: c.ActorID, RestaurantID: c.RestaurantID}
}

type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) GenerateToken(actor models.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID:      actor.ID,
		Role:         actor.Role,
		RestaurantID: actor.RestaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken checks signature and expiry and that the claims name a known role.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() || claims.ActorID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
