// Command triage-fakeserver serves a scripted analysis service for demos.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fwojciec/triage/fakeserver"
	"github.com/fwojciec/triage/logging"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
		level    string
	)
	cmd := &cobra.Command{
		Use:           "triage-fakeserver",
		Short:         "Serve scripted analysis runs for local demos",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}
			srv := fakeserver.New(
				fakeserver.WithLogger(logger),
				fakeserver.WithInterval(interval),
			)

			errc := make(chan error, 1)
			go func() {
				errc <- srv.Start(addr)
			}()
			logger.Info("listening", "addr", addr, "interval", interval)

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	cmd.Flags().DurationVar(&interval, "interval", 700*time.Millisecond, "pause between pushed events")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level: debug, info, warn or error")
	return cmd
}
