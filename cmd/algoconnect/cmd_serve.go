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

	"github.com/spf13/cobra"

	"github.com/sipeed/algoconnect/pkg/config"
	"github.com/sipeed/algoconnect/pkg/gateway"
	"github.com/sipeed/algoconnect/pkg/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSession(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.Close()

			if cfg.Session.Strategy == config.StrategyEager {
				if err := s.Initialize(ctx); err != nil {
					return err
				}
			} else {
				s.Start(ctx)
			}

			srv := gateway.NewServer(cfg, s)
			errCh := make(chan error, 1)
			go func() {
				logger.InfoCF("gateway", "Gateway listening", map[string]any{
					"addr":     srv.Addr,
					"strategy": cfg.Session.Strategy,
				})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "%s Gateway started on http://%s\n", logo, srv.Addr)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("gateway server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WarnCF("gateway", "Shutdown did not complete", map[string]any{"error": err.Error()})
			}
			logger.InfoC("gateway", "Gateway stopped")
			return nil
		},
	}
}
