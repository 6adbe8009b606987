package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"firecheck/internal/httpapi"
	"firecheck/internal/report"
)

func reportCommand(a *app) *cobra.Command {
	var (
		format string
		export bool
	)
	cmd := &cobra.Command{
		Use:   "report <inspection-id>",
		Short: "Build the report of an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.svc.Report(args[0])
			if err != nil {
				return err
			}
			if export {
				archive, err := a.archive(cmd)
				if err != nil {
					return err
				}
				info, err := archive.Save(cmd.Context(), rep)
				if err != nil {
					return err
				}
				a.logger.Info("report exported", zap.String("key", info.Key), zap.Int64("size", info.Size))
				return a.print(info)
			}
			switch format {
			case "json":
				return a.print(rep)
			case "text":
				loc, err := a.cfg.Location()
				if err != nil {
					return err
				}
				_, err = io.WriteString(a.out, report.RenderText(rep, loc))
				return err
			default:
				return fmt.Errorf("unknown format %q (want json or text)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: json or text")
	cmd.Flags().BoolVar(&export, "export", false, "store the text report in the blob archive")
	return cmd
}

func historyCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show autocomplete history",
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", 10, "entries to show (0 for all)")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "descriptions",
			Short: "Most frequently used issue descriptions",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.print(a.svc.TopIssueDescriptions(limit))
			},
		},
		&cobra.Command{
			Use:   "locations",
			Short: "Most recently used issue locations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.print(a.svc.TopLocations(limit))
			},
		},
	)
	return cmd
}

func serveCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			archive, err := a.archive(cmd)
			if err != nil {
				return err
			}
			handler := httpapi.NewServer(a.svc,
				httpapi.WithLogger(a.logger.Named("http")),
				httpapi.WithArchive(archive),
				httpapi.WithLocation(loc),
				httpapi.WithGatherer(a.registry),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, handler, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// serve runs the server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("http server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
