// Package cli provides CLI commands for the safebridge application.
package cli

import (
	gocontext "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/safebridge/internal/config"
	"github.com/example/safebridge/internal/ctxutil"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/metrics"
	"github.com/example/safebridge/internal/wire"
)

// globalActorID stores the operator ID for the current CLI invocation.
// Set once at startup by DetectAndStoreActor().
var globalActorID string

// DetectAndStoreActor resolves the operator identity: the --actor flag,
// then $SAFEBRIDGE_OPERATOR, then the OS user.
func DetectAndStoreActor(flag string) {
	switch {
	case flag != "":
		globalActorID = flag
	case os.Getenv("SAFEBRIDGE_OPERATOR") != "":
		globalActorID = os.Getenv("SAFEBRIDGE_OPERATOR")
	default:
		if u, err := user.Current(); err == nil && u.Username != "" {
			globalActorID = "OPERATOR-" + u.Username
			return
		}
		globalActorID = "OPERATOR"
	}
}

// GetActorID returns the stored actor ID from CLI startup.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// globalFlags are the persistent root flags.
type globalFlags struct {
	dir         string
	dbPath      string
	backendURL  string
	logLevel    string
	metricsAddr string
	actor       string
}

var flags globalFlags

// BindGlobalFlags registers the persistent flags and the bootstrap hook on root.
func BindGlobalFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&flags.dir, "dir", ".", "Directory holding .safebridge/config.yaml")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides storage.path)")
	pf.StringVar(&flags.backendURL, "backend", "", "Dispatch backend URL (overrides backend.url)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	pf.StringVar(&flags.actor, "actor", "", "Operator ID recorded with manual decisions")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return Bootstrap()
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		wire.Close()
	}
}

// Bootstrap loads the config, applies flag overrides and configures wire.
func Bootstrap() error {
	DetectAndStoreActor(flags.actor)

	cfg, err := config.LoadConfig(flags.dir)
	if err != nil {
		return err
	}
	applyOverrides(cfg, flags)

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	wire.Configure(cfg, logger)
	return nil
}

func applyOverrides(cfg *config.Config, f globalFlags) {
	if f.dbPath != "" {
		cfg.Storage.Path = f.dbPath
	}
	if f.backendURL != "" {
		cfg.Backend.URL = f.backendURL
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

// serveMetrics exposes /metrics until ctx is done. No-op without an address.
func serveMetrics(ctx gocontext.Context) {
	addr := wire.Config().Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(wire.Registry()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wire.Logger().Warn("metrics endpoint stopped", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := gocontext.WithTimeout(gocontext.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	wire.Logger().Info("serving metrics", "addr", addr)
}
