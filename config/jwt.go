package config

import (
	"os"
	"time"
)

var JWTSecret []byte
var JWTExpiration time.Duration

func init() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "thesis-portal-dev-secret-change-me"
	}
	JWTSecret = []byte(secret)

	JWTExpiration = 24 * time.Hour
	if raw := os.Getenv("JWT_EXPIRATION"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			JWTExpiration = d
		}
	}
}
