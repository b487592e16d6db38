package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"allocation/api"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the allocation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gin.SetMode(viper.GetString("gin-mode"))
			srv := &http.Server{
				Addr:              viper.GetString("http-addr"),
				Handler:           api.NewRouter(allocator, slog.Default()),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("http server listening", "addr", srv.Addr)
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

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			slog.Info("shutting down http server")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("http-addr", ":8080", "listen address")
	cmd.Flags().String("gin-mode", gin.ReleaseMode, "gin mode: debug|release|test")
	viper.BindPFlag("http-addr", cmd.Flags().Lookup("http-addr"))
	viper.BindPFlag("gin-mode", cmd.Flags().Lookup("gin-mode"))
	return cmd
}
