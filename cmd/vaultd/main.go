package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nhbchain/ledger/store"
	"nhbchain/native/grant"
	"nhbchain/native/vault"
	"nhbchain/observability/logging"
	telemetry "nhbchain/observability/otel"
	"nhbchain/rpc/vaultrpc"
	"nhbchain/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the vaultd configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("vaultd", cfg.Environment)

	otlpEndpoint := cfg.OTelEndpoint
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := cfg.OTelInsecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "vaultd",
		Environment: cfg.Environment,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("prepare data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	kv := store.New(db)

	secret := strings.TrimSpace(os.Getenv(cfg.JWTSecretEnv))
	if secret == "" {
		logger.Warn("JWT secret env var is unset; authenticated methods will reject every request",
			slog.String("env", cfg.JWTSecretEnv))
	}

	vaultEngine := vault.NewEngine()
	vaultEngine.SetState(vault.NewStore(kv))

	grantEngine := grant.NewEngine()
	grantEngine.SetState(grant.NewStore(kv))

	rpcServer := vaultrpc.New(vaultrpc.Config{
		Vault: vaultEngine,
		Grant: grantEngine,
		JWT: vaultrpc.JWTConfig{
			Secret:         []byte(secret),
			Issuer:         cfg.JWTIssuer,
			MaxSkewSeconds: cfg.JWTMaxSkewSecs,
		},
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: otelhttp.NewHandler(rpcServer.Handler(), "vaultd"),
	}

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("vaultd listening", slog.String("address", cfg.ListenAddress), slog.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		logger.Info("vaultd metrics listening", slog.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down vaultd")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown failed: %v\n", err)
	}
	_ = metricsSrv.Shutdown(ctx)
}
