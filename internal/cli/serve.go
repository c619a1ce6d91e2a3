package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/internal/web"
	otelexport "github.com/MrEthical07/carebook/metrics/export/otel"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portal",
		Long: `Serve the appointment portal over HTTP.

The server drains in-flight requests on SIGINT or SIGTERM, waiting at most
server.shutdown_timeout.

Example:
  # Serve against a local stub API
  CAREBOOK_API_BASE_URL=http://localhost:4000/api/v1 carebook serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			b := carebook.New().WithConfig(cfg).WithLogger(log)
			if cfg.Audit.Enabled {
				b = b.WithAuditSink(carebook.NewLogrusSink(log.WithField("component", "audit")))
			}
			portal, err := b.Build()
			if err != nil {
				return err
			}
			defer portal.Close()

			if cfg.Metrics.Enabled && cfg.Metrics.OTel.Enabled {
				shutdown, err := otelexport.Install(portal, log.WithField("component", "otel"), cfg.Metrics.OTel.Interval)
				if err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
					defer cancel()
					if err := shutdown(ctx); err != nil {
						log.WithError(err).Warn("otel meter provider shutdown")
					}
				}()
			}

			rt, err := web.New(portal, log)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      rt.SetUpRouter(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}
			log.WithField("api", cfg.API.BaseURL).WithField("session_backend", cfg.Session.Backend).Info("portal ready")
			return runServer(cmd.Context(), srv, cfg.Server.ShutdownTimeout, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
