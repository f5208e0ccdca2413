package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/gatherhall/doorsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   staff token HMAC secret key
//	-t int      staff token validity, minutes
//	-w int      per-action reconciliation timeout, seconds
//	-l int      dashboard activity feed length
//	-o string   comma-separated CORS origins
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-w", "-l", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token validity duration (in minutes)")
	actionTimeout := fs.Int("w", int(config.ActionTimeout.Seconds()), "per-action timeout (in seconds)")
	fs.IntVar(&config.ActivityLimit, "l", config.ActivityLimit, "dashboard activity feed length")
	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "comma-separated CORS origins")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.ActionTimeout = time.Duration(*actionTimeout) * time.Second
	if *origins != "" {
		config.AllowedOrigins = strings.Split(*origins, ",")
	}
}
