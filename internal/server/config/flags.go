package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":5001")
//	-g string   gRPC health bind address; "" disables it
//	-t string   database driver: sqlite | postgres
//	-d string   database DSN
//	-l string   log level
//	-s string   anti-forgery token store: memory | redis
//	-r string   Redis address
//	-o string   comma separated CORS origins
//	-e string   OTLP tracing endpoint
//	-seed       seed demo data
//	-server-side-roles  take roles from stored users instead of requests
//
// Only the flags listed here are picked out of args (see flagx.FilterArgs),
// so -c/-config and unknown flags do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-g", "-t", "-d", "-l", "-s", "-r", "-o", "-e", "-seed", "-server-side-roles",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address")
	fs.StringVar(&config.DatabaseDriver, "t", config.DatabaseDriver, "database driver (sqlite|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.TokenStore, "s", config.TokenStore, "token store (memory|redis)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	origins := fs.String("o", strings.Join(config.CORSAllowedOrigins, ","), "CORS allowed origins, comma separated")
	fs.StringVar(&config.TracingEndpoint, "e", config.TracingEndpoint, "OTLP tracing endpoint")
	fs.BoolVar(&config.SeedDemoData, "seed", config.SeedDemoData, "seed demo users")
	fs.BoolVar(&config.ServerSideRoles, "server-side-roles", config.ServerSideRoles, "derive roles from stored users")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.CORSAllowedOrigins = splitList(*origins)
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
