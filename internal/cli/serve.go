package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcltools/netscope/pkg/rpc"
	"github.com/dcltools/netscope/pkg/server"
)

// newServeCmd creates the serve command, which runs the crawl API and
// CORS relay until interrupted.
func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API server and CORS relay",
		Long: `Serve exposes crawl sessions over HTTP: start and stop crawls, poll
their progress, fetch the resulting graph, and relay browser requests
to plain-HTTP node endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "bind address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, configPath, listen string) error {
	logger := loggerFromContext(ctx)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = cfg.Serve.Listen
	}

	crawlCfg := cfg.CrawlConfig()
	crawlCfg.Logger = logger.Debugf

	srv := server.New(server.Config{
		Seeds:   cfg.Seeds,
		Crawl:   crawlCfg,
		Querier: rpc.NewClient(),
	})

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", listen)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
