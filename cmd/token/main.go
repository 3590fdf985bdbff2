// Command token issues a session token for the room broker, signed with the
// SESSION_SECRET the server uses.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/roombroker/internal/session"
)

type config struct {
	SessionSecret string `env:"SESSION_SECRET,required=true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	user := flag.String("user", "", "username the token is issued for")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	tokens, err := session.NewTokens(cfg.SessionSecret)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(*user, *ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
