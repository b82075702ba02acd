package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/hashchain/api"
	"github.com/mezonai/hashchain/exception"
	"github.com/mezonai/hashchain/jsonrpc"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/monitoring"
	"github.com/mezonai/hashchain/ratelimit"
	"github.com/mezonai/hashchain/validator"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAPIAddr          string
	serveRPCAddr          string
	serveMetricsAddr      string
	serveValidateInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chain over REST and JSON-RPC",
	Long: `Open the chain and serve it until interrupted:
- REST on the API address (GET /height, GET /block/{height}, POST /block, GET /validate)
- JSON-RPC 2.0 on the RPC address
- Prometheus metrics on the metrics address

An empty address disables that listener.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("api-addr") {
			cfg.Server.APIAddr = serveAPIAddr
		}
		if flags.Changed("rpc-addr") {
			cfg.Server.RPCAddr = serveRPCAddr
		}
		if flags.Changed("metrics-addr") {
			cfg.Server.MetricsAddr = serveMetricsAddr
		}

		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		monitoring.MarkUp()
		v := validator.NewValidator(bc)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var servers []*http.Server
		if cfg.Server.APIAddr != "" {
			var limiter *ratelimit.Limiter
			if cfg.Server.AppendRateLimit > 0 {
				limiter = ratelimit.NewLimiter(&ratelimit.Config{
					MaxRequests:     cfg.Server.AppendRateLimit,
					WindowSize:      time.Second,
					CleanupInterval: time.Minute,
					TrustedProxies:  cfg.Server.TrustedProxies,
				})
				defer limiter.Stop()
			}
			srv := &http.Server{Addr: cfg.Server.APIAddr, Handler: api.NewChainAPI(bc, v, limiter).GetRouter()}
			servers = append(servers, srv)
			startHTTP("REST API", srv)
		}
		if cfg.Server.MetricsAddr != "" {
			mux := http.NewServeMux()
			monitoring.RegisterMetrics(mux)
			srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
			servers = append(servers, srv)
			startHTTP("Metrics", srv)
		}

		var rpc *jsonrpc.Server
		if cfg.Server.RPCAddr != "" {
			rpc = jsonrpc.NewServer(cfg.Server.RPCAddr, bc, v)
			if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
				rpc.SetCORSConfig(corsCfg)
			}
			exception.SafeGoWithPanic("JSON-RPC Server", func() {
				if err := rpc.Start(); err != nil {
					logx.Error("JSONRPC", "Server stopped: ", err)
				}
			})
		}

		if serveValidateInterval > 0 {
			exception.SafeGo("PeriodicValidation", func() {
				runPeriodicValidation(ctx, v, serveValidateInterval)
			})
		}

		<-ctx.Done()
		logx.Info("CMD", "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logx.Warn("CMD", "Shutdown of ", srv.Addr, " failed: ", err)
			}
		}
		if rpc != nil {
			if err := rpc.Shutdown(shutdownCtx); err != nil {
				logx.Warn("CMD", "Shutdown of JSON-RPC failed: ", err)
			}
		}
		return nil
	},
}

func startHTTP(name string, srv *http.Server) {
	exception.SafeGoWithPanic(name, func() {
		logx.Info("CMD", name, " listening on ", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("CMD", name, " stopped: ", err)
		}
	})
}

// runPeriodicValidation rescans the chain every interval and logs findings
func runPeriodicValidation(ctx context.Context, v *validator.Validator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := v.ValidateChainReport()
			if err != nil {
				logx.Error("VALIDATOR", "Periodic validation failed: ", err)
				continue
			}
			if !report.Valid() {
				logx.Warn("VALIDATOR", "Chain invalid at heights ", report.Heights())
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAPIAddr, "api-addr", "", "REST listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveRPCAddr, "rpc-addr", "", "JSON-RPC listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics listen address (overrides config)")
	serveCmd.Flags().DurationVar(&serveValidateInterval, "validate-interval", 0, "Rescan the chain on this interval (0 disables)")
}
