package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reqtrap/reqtrap/pkg/admin"
	"github.com/reqtrap/reqtrap/pkg/config"
	"github.com/reqtrap/reqtrap/pkg/engine"
	"github.com/reqtrap/reqtrap/pkg/logging"
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	port      int
	adminPort int
	rulesPath string
	logLevel  string
	logFormat string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interception server and admin API",
	Long: `Start the interception server. Mocked traffic is served on --port; rule
management and request inspection live on --admin-port.

Rules can be provisioned at startup with --rules (YAML or JSON, same shape
the admin API accepts) and managed live via POST/DELETE on /rules.`,
	Example: `  # Start with an empty rule set
  reqtrap serve

  # Provision rules from a file
  reqtrap serve --rules rules.yaml

  # JSON logs for CI parsing
  reqtrap serve --log-format json --log-level debug`,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals

	serveCmd.Flags().IntVarP(&f.port, "port", "p", 8080, "Mocked traffic port")
	serveCmd.Flags().IntVar(&f.adminPort, "admin-port", 9090, "Admin API port")
	serveCmd.Flags().StringVarP(&f.rulesPath, "rules", "r", "", "Path to a rules file (YAML or JSON)")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	f := &serveFlagVals

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
	})

	eng := engine.New()
	eng.SetLogger(log.With("component", "engine"))

	if f.rulesPath != "" {
		configs, err := config.LoadRules(f.rulesPath)
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
		for _, cfg := range configs {
			if _, err := eng.AddRuleConfig(*cfg); err != nil {
				return fmt.Errorf("building rule: %w", err)
			}
		}
		log.Info("rules loaded", "count", len(configs), "path", f.rulesPath)
	}

	trafficSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", f.port),
		Handler:           eng,
		ReadHeaderTimeout: 10 * time.Second,
	}

	adminAPI := admin.New(eng, f.adminPort)
	adminAPI.SetLogger(log.With("component", "admin"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("serving mocked traffic", "port", f.port)
		if err := trafficSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("traffic server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return adminAPI.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := trafficSrv.Shutdown(shutdownCtx)
		if stopErr := adminAPI.Stop(shutdownCtx); err == nil {
			err = stopErr
		}
		return err
	})

	return g.Wait()
}
