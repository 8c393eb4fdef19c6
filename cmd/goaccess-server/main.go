// Command goaccess-server exposes the goAccess engine over HTTP.
//
// With no flags it runs fully in-process: an embedded Redis, an in-memory
// SQLite database and seeded admin, manager and user accounts sharing the
// seed password. One-time codes are written to the log.
//
//	go run ./cmd/goaccess-server --log-level=DEBUG
//
//	curl -s -X POST localhost:8080/api/auth/login \
//	  -d '{"username":"user","password":"Password123!"}'
//	curl -s -c jar.txt -X POST localhost:8080/api/auth/verify-2fa \
//	  -d '{"username":"user","code":"<code from log>"}'
//	curl -s -b jar.txt -X POST localhost:8080/api/access/request \
//	  -d '{"resourceId":"doc1","resourceType":"DOCUMENT","reason":"audit"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/loggo"
	"github.com/spf13/pflag"
)

var logger = loggo.GetLogger("goaccess.server")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "goaccess-server: %v\n", err)
		os.Exit(1)
	}
}

type flagValues struct {
	configPath   string
	listen       string
	database     string
	redisAddr    string
	seedPassword string
	logLevel     string
}

// parseFlags loads the config file named by --config and applies any flag
// the caller set explicitly on top of it.
func parseFlags(args []string, stderr io.Writer) (serverConfig, error) {
	var v flagValues
	fs := pflag.NewFlagSet("goaccess-server", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&v.configPath, "config", "", "YAML config file")
	fs.StringVar(&v.listen, "listen", "", "HTTP listen address")
	fs.StringVar(&v.database, "database", "", `database URL (postgres://..., sqlite:..., or "memory")`)
	fs.StringVar(&v.redisAddr, "redis-addr", "", "Redis address; empty starts an in-process server")
	fs.StringVar(&v.seedPassword, "seed-password", "", "password for the seeded accounts; empty disables seeding")
	fs.StringVar(&v.logLevel, "log-level", "", "root log level (TRACE, DEBUG, INFO, WARNING, ERROR)")

	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}

	cfg, err := loadConfig(v.configPath)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("listen") {
		cfg.Listen = v.listen
	}
	if fs.Changed("database") {
		cfg.Database = v.database
	}
	if fs.Changed("redis-addr") {
		cfg.Redis.Addr = v.redisAddr
	}
	if fs.Changed("seed-password") {
		cfg.SeedPassword = v.seedPassword
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = v.logLevel
	}
	return cfg, cfg.validate()
}

func run(args []string, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", cfg.LogLevel)); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := appDeps{}
	if cfg.AuditJSON {
		deps.audit = os.Stdout
	}
	a, err := newApp(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
