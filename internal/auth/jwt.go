package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DeviceClaims are the claims carried by tokens the agent issues to paired
// client apps. The subject is the device id; scopes gate which API groups a
// client may call.
type DeviceClaims struct {
	jwt.RegisteredClaims
	DeviceID string   `json:"device_id,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token grants the given scope.
func (c *DeviceClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenManager signs and validates device tokens with a shared HMAC secret.
type TokenManager struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
}

// NewTokenManager creates a token manager.
func NewTokenManager(secretKey string, issuer string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}
}

// Generate mints a token for a paired device.
func (m *TokenManager) Generate(deviceID string, scopes []string) (string, error) {
	now := time.Now()
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   deviceID,
		},
		DeviceID: deviceID,
		Scopes:   scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Validate parses and verifies a device token.
func (m *TokenManager) Validate(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
