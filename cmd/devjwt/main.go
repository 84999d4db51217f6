package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/platform/auth/jwtverifier"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/config"
)

// Dev-only token minter. It signs an HS256 staff token with the configured
// auth.jwt_secret so local requests pass the API's bearer check.
func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	sub := flag.String("sub", "dev|staff", "token subject")
	ttl := flag.Duration("ttl", 30*time.Minute, "token lifetime")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set (CARNET_AUTH_JWT_SECRET)")
		os.Exit(1)
	}

	v := jwtverifier.New(jwtverifier.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAud,
	})
	token, err := v.Issue(*sub, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
