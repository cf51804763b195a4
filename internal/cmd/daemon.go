// Package cmd hosts the cobra commands for both termrtd (the daemon) and
// termrtctl (the operator CLI): one newXCmd() constructor per subcommand,
// wired onto a shared root.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"termrt/internal/api"
	"termrt/internal/config"
	"termrt/internal/editor"
	"termrt/internal/facade"
	"termrt/internal/registry"
	"termrt/internal/version"
)

// NewDaemonRootCmd builds the termrtd root command: it loads config, wires
// the registry, façade, and editor store together, and serves the HTTP +
// WebSocket surface until interrupted.
func NewDaemonRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "termrtd",
		Short: "Terminal session runtime daemon",
		Long:  "termrtd owns a pool of PTY-backed shell sessions and an editor buffer store, exposed over HTTP and WebSocket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newDaemonVersionCmd())
	return root
}

func newDaemonVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.DisplayVersion())
			return nil
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	reg := registry.New(cfg, log)
	fac := facade.New(reg, cfg.ExecWaitDefault)
	store := editor.NewStore()
	srv := api.NewServer(fac, store, log)

	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go runIdleSweep(sweepCtx, reg, cfg.IdleSweepPeriod, cfg.SessionIdleAfter)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr()).Info("termrtd listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// runIdleSweep periodically reaps stopped sessions with no subscribers and
// flips long-quiet running sessions to idle status.
func runIdleSweep(ctx context.Context, reg *registry.Registry, period, idleAfter time.Duration) {
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.SweepIdle(idleAfter)
		}
	}
}
