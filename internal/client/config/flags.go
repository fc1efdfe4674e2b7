package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string      base URL of the chatterbox API (default from Config)
//	-token string  session token
//	-t int         request timeout in seconds (default from Config)
//
// Only these flags are picked out of os.Args, so subcommand arguments pass
// through untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-token", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the chatterbox API")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "session token")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
