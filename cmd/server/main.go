// Command server starts the media ingest HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediastream/internal/api"
	"mediastream/internal/media"
	"mediastream/internal/objectstore"
	"mediastream/internal/observability/logging"
	"mediastream/internal/observability/metrics"
	"mediastream/internal/server"
	"mediastream/internal/storage"
	"mediastream/internal/transcode"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	cdnBase := flag.String("cdn-url", "", "CDN base URL for transcoded media playback")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum accepted upload size in bytes")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	uploadLimit := flag.Int("rate-upload-limit", 0, "maximum uploads per window for a single IP")
	uploadWindow := flag.Duration("rate-upload-window", 0, "window for counting uploads")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed upload throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed upload throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	redisTLSCA := flag.String("rate-redis-tls-ca", "", "path to Redis TLS CA certificate")
	corsOrigins := flag.String("cors-allowed-origins", "", "comma separated origins allowed to call the API")
	objectEndpoint := flag.String("object-endpoint", "", "object storage endpoint (e.g. http://127.0.0.1:9000)")
	objectRegion := flag.String("object-region", "", "object storage region")
	objectAccessKey := flag.String("object-access-key", "", "object storage access key")
	objectSecretKey := flag.String("object-secret-key", "", "object storage secret key")
	objectBucket := flag.String("object-bucket", "", "object storage bucket name")
	objectUseSSL := flag.Bool("object-use-ssl", false, "enable TLS for object storage requests")
	objectPublicEndpoint := flag.String("object-public-endpoint", "", "public endpoint used for direct download URLs")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("MEDIASTREAM_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("MEDIASTREAM_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	objectCfg := objectstore.Config{
		Endpoint:       firstNonEmpty(*objectEndpoint, os.Getenv("MEDIASTREAM_OBJECT_ENDPOINT")),
		Region:         firstNonEmpty(*objectRegion, os.Getenv("MEDIASTREAM_OBJECT_REGION")),
		AccessKey:      firstNonEmpty(*objectAccessKey, os.Getenv("MEDIASTREAM_OBJECT_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*objectSecretKey, os.Getenv("MEDIASTREAM_OBJECT_SECRET_KEY")),
		Bucket:         firstNonEmpty(*objectBucket, os.Getenv("MEDIASTREAM_OBJECT_BUCKET")),
		UseSSL:         resolveBool(*objectUseSSL, "MEDIASTREAM_OBJECT_USE_SSL"),
		PublicEndpoint: firstNonEmpty(*objectPublicEndpoint, os.Getenv("MEDIASTREAM_OBJECT_PUBLIC_ENDPOINT")),
	}
	blobs, err := objectstore.New(objectCfg)
	if err != nil {
		logger.Error("failed to configure object storage", "error", err)
		os.Exit(1)
	}

	transcodeCfg, err := transcode.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load transcoder configuration", "error", err)
		os.Exit(1)
	}
	if transcodeCfg.VideoInputPrefix == "" {
		transcodeCfg.VideoInputPrefix = blobs.BucketURI()
	}
	if transcodeCfg.VideoOutputPrefix == "" {
		transcodeCfg.VideoOutputPrefix = blobs.BucketURI()
	}
	dispatcher, err := transcode.NewDispatcher(transcodeCfg, logging.WithComponent(logger, "transcode"), recorder)
	if err != nil {
		logger.Error("failed to configure transcode dispatcher", "error", err)
		os.Exit(1)
	}

	cdnBaseURL := firstNonEmpty(*cdnBase, os.Getenv("MEDIASTREAM_CDN_URL"))
	if cdnBaseURL == "" {
		logger.Error("CDN base URL is required: set --cdn-url or MEDIASTREAM_CDN_URL")
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openDatastore(startupCtx, *storageDriver, *dataPath, *postgresDSN, postgresPoolSettings{
		MaxConns:        resolveInt(*postgresMaxConns, "MEDIASTREAM_POSTGRES_MAX_CONNS"),
		MinConns:        resolveInt(*postgresMinConns, "MEDIASTREAM_POSTGRES_MIN_CONNS"),
		MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "MEDIASTREAM_POSTGRES_MAX_CONN_LIFETIME", 0),
		MaxConnIdleTime: resolveDuration(*postgresMaxConnIdle, "MEDIASTREAM_POSTGRES_MAX_CONN_IDLE", 0),
		AppName:         firstNonEmpty(*postgresAppName, os.Getenv("MEDIASTREAM_POSTGRES_APP_NAME")),
	})
	startupCancel()
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	orchestrator := media.NewOrchestrator(media.OrchestratorConfig{
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Records:    store,
		Resolver:   media.NewURLResolver(cdnBaseURL, blobs, transcodeCfg.AudioOutputExtension),
		Video:      transcode.NewVideoJobBuilder(transcodeCfg.VideoInputPrefix, transcodeCfg.VideoOutputPrefix, transcodeCfg.Video),
		Audio:      transcode.NewAudioJobBuilder(transcodeCfg.AudioPipelineID, transcodeCfg.AudioPresetID, transcodeCfg.AudioOutputExtension),
		Logger:     logger,
		Metrics:    recorder,
	})

	handler := api.NewHandler(store, orchestrator, logger)
	if limit := resolveInt64(*maxUploadBytes, "MEDIASTREAM_MAX_UPLOAD_BYTES"); limit > 0 {
		handler.MaxUploadBytes = limit
	}

	listenAddr := firstNonEmpty(*addr, os.Getenv("MEDIASTREAM_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("MEDIASTREAM_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("MEDIASTREAM_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:    resolveFloat(*globalRPS, "MEDIASTREAM_RATE_GLOBAL_RPS"),
			GlobalBurst:  resolveInt(*globalBurst, "MEDIASTREAM_RATE_GLOBAL_BURST"),
			UploadLimit:  resolveInt(*uploadLimit, "MEDIASTREAM_RATE_UPLOAD_LIMIT"),
			UploadWindow: resolveDuration(*uploadWindow, "MEDIASTREAM_RATE_UPLOAD_WINDOW", time.Minute),
			Redis: server.RedisConfig{
				Addr:     firstNonEmpty(*redisAddr, os.Getenv("MEDIASTREAM_RATE_REDIS_ADDR")),
				Password: firstNonEmpty(*redisPassword, os.Getenv("MEDIASTREAM_RATE_REDIS_PASSWORD")),
				Timeout:  resolveDuration(*redisTimeout, "MEDIASTREAM_RATE_REDIS_TIMEOUT", 2*time.Second),
				TLS: server.RedisTLSConfig{
					CAFile: firstNonEmpty(*redisTLSCA, os.Getenv("MEDIASTREAM_RATE_REDIS_TLS_CA")),
				},
			},
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("MEDIASTREAM_CORS_ALLOWED_ORIGINS"))),
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("media API listening", "addr", listenAddr)
	logger.Info("metrics endpoint available", "path", "/metrics")

	runErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("transcode dispatcher drain failed", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}

	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type postgresPoolSettings struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AppName         string
}

func openDatastore(ctx context.Context, flagDriver, flagDataPath, flagDSN string, pool postgresPoolSettings) (storage.Repository, error) {
	dsn := strings.TrimSpace(firstNonEmpty(flagDSN, os.Getenv("MEDIASTREAM_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
	driver, err := resolveStorageDriver(flagDriver, os.Getenv("MEDIASTREAM_STORAGE_DRIVER"), dsn)
	if err != nil {
		return nil, err
	}

	switch driver {
	case "json":
		return storage.NewStorage(resolveDataPath(flagDataPath, os.Getenv("MEDIASTREAM_DATA")))
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage selected without DSN")
		}
		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:             dsn,
			MaxConns:        int32(pool.MaxConns),
			MinConns:        int32(pool.MinConns),
			MaxConnLifetime: pool.MaxConnLifetime,
			MaxConnIdleTime: pool.MaxConnIdleTime,
			AppName:         pool.AppName,
		})
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(closeCtx)
			return nil, fmt.Errorf("migrate media asset schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "json", nil
}

func resolveDataPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return "data/media.json"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
