package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/petal-labs/tooltailor/bus"
	"github.com/petal-labs/tooltailor/daemon"
	ttotel "github.com/petal-labs/tooltailor/otel"
	"github.com/petal-labs/tooltailor/sse"
	"github.com/petal-labs/tooltailor/tool"
)

// eventHistory is how many recent events /api/events can replay.
const eventHistory = 1024

const sessionSweepSchedule = "@every 1m"

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the customization HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "127.0.0.1", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("tls-cert", "", "TLS certificate file")
	cmd.Flags().String("tls-key", "", "TLS key file")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().String("drift-schedule", "", "Cron schedule for drift checks (overrides config; \"off\" disables)")
	cmd.Flags().Duration("session-timeout", daemon.DefaultSessionIdleTimeout, "Drop edit sessions idle for longer than this")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP endpoint for traces (default: $OTEL_EXPORTER_OTLP_ENDPOINT)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	tlsCert, _ := cmd.Flags().GetString("tls-cert")
	tlsKey, _ := cmd.Flags().GetString("tls-key")
	driftSchedule, _ := cmd.Flags().GetString("drift-schedule")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")
	sessionTimeout, _ := cmd.Flags().GetDuration("session-timeout")

	metricReader := sdkmetric.NewManualReader()
	providers, err := ttotel.NewProviders(cmd.Context(), ttotel.Config{
		ServiceVersion: cmd.Root().Version,
		Endpoint:       otelEndpoint,
		MetricReader:   metricReader,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	otelObserver, err := ttotel.NewCustomizationObserver(providers.Meter(), providers.Tracer())
	if err != nil {
		return fmt.Errorf("initializing customization observability: %w", err)
	}

	eventStore := bus.NewMemEventStore(eventHistory)
	eb := bus.NewMemBus(bus.MemBusConfig{Store: eventStore})
	defer eb.Close()

	a, err := loadApp(cmd, tool.MultiObserver{otelObserver, bus.NewObserver(eb)})
	if err != nil {
		return err
	}
	defer a.Close()

	daemonServer, err := daemon.NewServer(daemon.ServerConfig{
		Service:            a.service,
		Logger:             a.logger,
		SessionIdleTimeout: sessionTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating daemon server: %w", err)
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(sessionSweepSchedule, func() { daemonServer.SweepSessions() }); err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	schedule := resolveDriftSchedule(driftSchedule, a.config.Drift.Schedule)
	if schedule != "" {
		watcher, err := tool.NewDriftWatcher(tool.DriftWatcherConfig{
			Service:  a.service,
			Schedule: schedule,
			OnReport: bus.DriftHandler(eb),
			Logger:   a.logger,
		})
		if err != nil {
			return exitError(exitValidation, "invalid drift schedule: %v", err)
		}
		if err := watcher.Start(cmd.Context()); err != nil {
			return fmt.Errorf("starting drift watcher: %w", err)
		}
		defer func() {
			_ = watcher.Stop(context.Background())
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", daemonServer.Handler())
	mux.Handle("GET /api/events", sse.NewSSEHandler(eventStore, eb))
	mux.Handle("GET /metrics", ttotel.MetricsHandler(metricReader))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	var handler http.Handler = mux
	if providers.TracingEnabled() {
		handler = ttotel.HTTPMiddleware(providers.Tracer(), handler)
	}
	handler = withCORS(handler, corsOrigin)
	handler = maxBodyMiddleware(handler, maxBody)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "tooltailor listening on %s (%d server(s))\n", addr, len(a.service.Servers()))
		if tlsCert != "" && tlsKey != "" {
			errCh <- httpServer.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// resolveDriftSchedule prefers the flag over the config file. "off"
// disables checks.
func resolveDriftSchedule(flagValue, configValue string) string {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = strings.TrimSpace(configValue)
	}
	if strings.EqualFold(value, "off") {
		return ""
	}
	return value
}

func withCORS(next http.Handler, allowedOrigin string) http.Handler {
	origin := strings.TrimSpace(allowedOrigin)
	if origin == "" {
		origin = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func maxBodyMiddleware(next http.Handler, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}
