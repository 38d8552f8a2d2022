// Command issuetoken mints bearer tokens for the device issue API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/config"
	"github.com/spec-kit/device-issue-service/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var subject, roleFlag, secret string
	var ttl int

	flagSet := pflag.NewFlagSet("issuetoken", pflag.ContinueOnError)
	flagSet.StringVarP(&subject, "subject", "s", "", "subject id written to the sub claim")
	flagSet.StringVarP(&roleFlag, "role", "r", "", "role: clerk, dc, superuser, superadmin or root")
	flagSet.StringVar(&secret, "secret", cfg.Auth.JWTSecret, "HS256 signing secret (default from AUTH_JWT_SECRET)")
	flagSet.IntVar(&ttl, "ttl", cfg.Auth.AccessTokenTTLMinutes, "token lifetime in minutes")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if subject == "" {
		return errors.New("--subject is required")
	}
	role, ok := domain.ParseRole(roleFlag)
	if !ok {
		return fmt.Errorf("unknown role %q", roleFlag)
	}

	token, expires, err := auth.NewTokenManager(secret, ttl).GenerateToken(subject, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "role=%s subject=%s expires=%s\n", role, subject, expires.Format(time.RFC3339))
	return nil
}
