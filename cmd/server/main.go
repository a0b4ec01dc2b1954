package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"codalyzer-backend/analysis"
	"codalyzer-backend/api"
	"codalyzer-backend/middleware/admission"
	"codalyzer-backend/middleware/admission/application"
	"codalyzer-backend/middleware/admission/domain"
	"codalyzer-backend/middleware/admission/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "2.0.0"

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	resolver, err := domain.NewResolver(cfg.rateLimitTimezone)
	if err != nil {
		logger.Fatal("invalid RATE_LIMIT_TIMEZONE", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	stats := infra.NewPrometheusRecorder(registry)

	// Counter store: configurado quando há endpoint de Redis. Falha de
	// conexão na subida é fatal fora de DEBUG — melhor não subir do que
	// subir sem conseguir limitar (fail-closed desde o boot).
	var store domain.CounterStore
	var rdb *redis.Client
	var pingStore func(ctx context.Context) error
	if cfg.rateLimitConfigured() {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.redisAddr,
			Password:     cfg.redisPassword,
			DB:           cfg.redisDB,
			PoolSize:     10,
			DialTimeout:  cfg.redisTimeout,
			ReadTimeout:  cfg.redisTimeout,
			WriteTimeout: cfg.redisTimeout,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.redisTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			if !cfg.debug {
				logger.Fatal("redis ping failed", zap.Error(err))
			}
			// Em DEBUG o processo sobe, mas toda admissão degrada para 503.
			logger.Warn("redis unreachable, admissions will be rejected", zap.Error(err))
		} else {
			redisStore := infra.NewRedisCounterStore(rdb, infra.WithOpTimeout(cfg.redisTimeout))
			store = redisStore
			pingStore = redisStore.Ping
			logger.Info("redis counter store ready", zap.String("addr", cfg.redisAddr))
		}
	} else {
		logger.Info("rate limiting not configured, running in pass-through mode")
	}

	controller := &application.Controller{
		Configured: cfg.rateLimitConfigured(),
		Store:      store,
		Scheme:     domain.KeyScheme{},
		Resolver:   resolver,
		Quotas:     domain.Quotas{Client: cfg.dailyRateLimit, Global: cfg.globalRateLimit},
		TTLPadding: cfg.ttlPadding,
		Stats:      stats,
		Log:        logger,
	}

	provider := analysis.NewGeminiProvider(cfg.geminiAPIKey, cfg.geminiModel,
		analysis.WithTimeout(cfg.geminiTimeout),
		analysis.WithMaxTokens(cfg.geminiMaxTokens),
		analysis.WithTemperature(cfg.geminiTemperature),
		analysis.WithMaxAnalysisSize(cfg.maxAnalysisSize),
		analysis.WithPacing(cfg.geminiRPS, cfg.geminiBurst),
		analysis.WithLogger(logger),
	)
	if !provider.Available() {
		logger.Warn("GEMINI_API_KEY not configured, analyze requests will return 503")
	}

	var shares *api.ShareStore
	if rdb != nil {
		shares = api.NewShareStore(rdb,
			api.WithShareTTL(cfg.shareTTL),
			api.WithShareTimeout(cfg.redisTimeout),
		)
	}

	handlers := &api.Handlers{
		Provider:      provider,
		Controller:    controller,
		Shares:        shares,
		PingStore:     pingStore,
		MaxCodeLength: cfg.maxCodeLength,
		AllowedExts:   cfg.allowedExtensions(),
		Version:       version,
		Log:           logger,
	}

	analyzeHandler := admission.Middleware(admission.Options{
		Controller: controller,
		Log:        logger,
	})(http.HandlerFunc(handlers.Analyze))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlers.Root)
	mux.Handle("POST /analyze", analyzeHandler)
	mux.Handle("POST /api/v1/analyze", analyzeHandler)
	mux.HandleFunc("GET /api/v1/initialize", handlers.Initialize)
	mux.HandleFunc("GET /api/v1/health", handlers.Health)
	mux.Handle("GET /api/v1/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /api/v1/share", handlers.CreateShare)
	mux.HandleFunc("GET /api/v1/share/{id}", handlers.GetShare)

	// Pipeline: tamanho e concorrência ANTES da admissão (rejeição local não
	// pode custar quota); a admissão envolve só o handler de análise.
	h := http.Handler(mux)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	h = admission.SizeLimitMiddleware(cfg.maxRequestSize)(h)
	h = admission.CORSMiddleware(cfg.corsOrigins())(h)
	h = admission.SecurityHeadersMiddleware()(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("codalyzer listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("model", cfg.geminiModel),
		zap.Bool("rate_limiting", cfg.rateLimitConfigured()),
		zap.Int64("daily_limit", cfg.dailyRateLimit),
		zap.Int64("global_limit", cfg.globalRateLimit),
		zap.String("timezone", cfg.rateLimitTimezone),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

type config struct {
	listenAddr string
	debug      bool
	logLevel   string

	redisAddr     string
	redisPassword string
	redisDB       int
	redisTimeout  time.Duration

	dailyRateLimit    int64
	globalRateLimit   int64
	rateLimitTimezone string
	ttlPadding        time.Duration

	geminiAPIKey      string
	geminiModel       string
	geminiTimeout     time.Duration
	geminiMaxTokens   int
	geminiTemperature float64
	geminiRPS         float64
	geminiBurst       int

	maxRequestSize  int64
	maxCodeLength   int
	maxAnalysisSize int
	shareTTL        time.Duration

	concurrencyMax     int
	concurrencyTimeout time.Duration

	allowedOrigins string
	allowedExts    string
}

func (c config) rateLimitConfigured() bool { return c.redisAddr != "" }

func (c config) corsOrigins() []string {
	return splitTrim(c.allowedOrigins)
}

func (c config) allowedExtensions() map[string]bool {
	exts := make(map[string]bool)
	for _, e := range splitTrim(c.allowedExts) {
		exts[strings.ToLower(e)] = true
	}
	return exts
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.debug = getenvBoolDefault("DEBUG", false)
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisTimeout = getenvDurationDefault("REDIS_TIMEOUT", 2*time.Second)

	cfg.dailyRateLimit = int64(getenvIntDefault("DAILY_RATE_LIMIT", 20))
	cfg.globalRateLimit = int64(getenvIntDefault("GLOBAL_RATE_LIMIT", 1000))
	cfg.rateLimitTimezone = getenvDefault("RATE_LIMIT_TIMEZONE", "UTC")
	// padding além do fim nominal do bucket, para tolerar skew de relógio
	cfg.ttlPadding = getenvDurationDefault("RATE_LIMIT_TTL_PADDING", 1*time.Hour)

	cfg.geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.geminiModel = getenvDefault("GEMINI_MODEL", "gemini-2.5-flash-lite")
	cfg.geminiTimeout = getenvDurationDefault("GEMINI_TIMEOUT", 8*time.Second)
	cfg.geminiMaxTokens = getenvIntDefault("GEMINI_MAX_TOKENS", 4096)
	cfg.geminiTemperature = getenvFloatDefault("GEMINI_TEMPERATURE", 0.3)
	cfg.geminiRPS = getenvFloatDefault("GEMINI_RPS", 0)
	cfg.geminiBurst = getenvIntDefault("GEMINI_BURST", 5)

	cfg.maxRequestSize = int64(getenvIntDefault("MAX_REQUEST_SIZE", 1_048_576))
	cfg.maxCodeLength = getenvIntDefault("MAX_CODE_LENGTH", 50_000)
	cfg.maxAnalysisSize = getenvIntDefault("MAX_ANALYSIS_SIZE", 102_400)
	cfg.shareTTL = getenvDurationDefault("SHARE_TTL", 7*24*time.Hour)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.allowedOrigins = getenvDefault("ALLOWED_ORIGINS",
		"http://localhost:3000,http://localhost:3001,http://localhost:5173")
	cfg.allowedExts = getenvDefault("ALLOWED_EXTENSIONS",
		".py,.js,.ts,.jsx,.tsx,.cpp,.c,.h,.hpp,.java,.go,.rs,.rb,.php,.swift,.kt,.cs,.scala,.r,.m,.sh,.sql,.html,.css")

	if cfg.rateLimitConfigured() {
		if cfg.dailyRateLimit <= 0 {
			return config{}, errors.New("DAILY_RATE_LIMIT must be > 0")
		}
		if cfg.globalRateLimit <= 0 {
			return config{}, errors.New("GLOBAL_RATE_LIMIT must be > 0")
		}
	}
	if cfg.maxRequestSize <= 0 {
		return config{}, errors.New("MAX_REQUEST_SIZE must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(level)); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
