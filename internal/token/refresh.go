package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// RefreshTokenTTL is the fixed lifetime of a refresh token.
const RefreshTokenTTL = 7 * 24 * time.Hour

const refreshTokenBytes = 64

// NewRefreshToken returns an opaque 64-byte value from crypto/rand, base64
// encoded. It carries no information about the user.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
