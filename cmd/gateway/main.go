package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		// logger ainda não existe; stderr direto.
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg.debug)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Contadores: Redis quando configurado e acessível; senão, memória.
	// Indisponibilidade de storage nunca derruba o gateway (fail open).
	var counters domain.CounterStore
	var stats domain.StatsStore
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			logger.Warn("redis inacessível, caindo para contador em memória", zap.Error(err))
		} else {
			counters = infra.NewRedisCounter(rdb)
			if cfg.statsEnabled {
				stats = infra.NewRedisStatsStore(
					rdb,
					infra.WithStatsPrefix(cfg.statsPrefix),
					infra.WithStatsTTL(cfg.statsTTL),
					infra.WithStatsTrackKeys(cfg.statsTrackKeys),
				)
			}
		}
	}
	if counters == nil {
		mem := infra.NewMemoryCounter()
		mem.StartJanitor(ctx)
		counters = mem
	}

	// Cadeia geo: borda -> base local -> API remota. Estratégia ausente é
	// simplesmente pulada.
	var resolvers []domain.CountryResolver
	if cfg.trustProxy {
		resolvers = append(resolvers, infra.EdgeHeaderResolver{})
	}
	if cfg.geoMMDBPath != "" {
		mm, err := infra.NewMaxMindResolver(cfg.geoMMDBPath)
		if err != nil {
			logger.Warn("base GeoIP local indisponível, pulando estratégia", zap.Error(err))
		} else {
			defer func() { _ = mm.Close() }()
			resolvers = append(resolvers, mm)
		}
	}
	if cfg.geoAPIURL != "" {
		resolvers = append(resolvers, infra.NewRemoteAPIResolver(
			cfg.geoAPIURL,
			infra.WithRemoteTimeout(cfg.geoAPITimeout),
			infra.WithRemoteBudget(cfg.geoAPIBudgetRPS, cfg.geoAPIBudgetBurst),
		))
	}

	pipeline := application.Pipeline{
		Counters:   counters,
		Geo:        application.GeoService{Resolvers: resolvers},
		Classifier: domain.DefaultUserAgentClassifier(),
		Policy: application.Policy{
			AllowedCountry:     cfg.allowedCountry,
			GeoFailClosed:      !cfg.geoFailOpen,
			AllowedShopDomains: cfg.allowedShopDomains,
		},
		Limits: application.Limits{
			IPLimit:      cfg.ipLimit,
			IPWindow:     cfg.ipWindow,
			TenantLimit:  cfg.tenantLimit,
			TenantWindow: cfg.tenantWindow,
		},
		Logger: logger,
	}

	admit := admission.Middleware(admission.Options{
		Pipeline:          pipeline,
		Stats:             stats,
		TenantFn:          leadTenant,
		TrustProxyHeaders: cfg.trustProxy,
		Debug:             cfg.debug,
		Logger:            logger,
	})

	r := chi.NewRouter()
	r.Use(corsHeaders)
	r.With(
		admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			AcquireTimeout: cfg.concurrencyTimeout,
		}),
		withLead,
		admit,
	).Handle("/api/leads", leadHandler(cfg.debug, logger))

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway escutando",
		zap.String("addr", cfg.listenAddr),
		zap.Bool("debug", cfg.debug))
	logger.Info("rate limit",
		zap.Int("ipLimit", cfg.ipLimit),
		zap.Duration("ipWindow", cfg.ipWindow),
		zap.Int("tenantLimit", cfg.tenantLimit),
		zap.Duration("tenantWindow", cfg.tenantWindow),
		zap.Bool("redis", cfg.redisAddr != ""))
	logger.Info("geo",
		zap.String("allowedCountry", cfg.allowedCountry),
		zap.Bool("failOpen", cfg.geoFailOpen),
		zap.String("mmdb", cfg.geoMMDBPath),
		zap.String("apiURL", cfg.geoAPIURL))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return l
	}
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

type config struct {
	listenAddr string
	debug      bool
	trustProxy bool

	allowedCountry    string
	geoFailOpen       bool
	geoMMDBPath       string
	geoAPIURL         string
	geoAPITimeout     time.Duration
	geoAPIBudgetRPS   float64
	geoAPIBudgetBurst int

	ipLimit      int
	ipWindow     time.Duration
	tenantLimit  int
	tenantWindow time.Duration

	redisAddr     string
	redisPassword string
	redisDB       int

	statsEnabled   bool
	statsPrefix    string
	statsTTL       time.Duration
	statsTrackKeys bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	allowedShopDomains []string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.debug = getenvBoolDefault("DEBUG", false)
	cfg.trustProxy = getenvBoolDefault("TRUSTED_PROXY", true)

	cfg.allowedCountry = strings.ToUpper(getenvDefault("ALLOWED_COUNTRY", "BG"))
	cfg.geoFailOpen = getenvBoolDefault("GEO_FAIL_OPEN", true)
	cfg.geoMMDBPath = os.Getenv("GEO_MMDB_PATH")
	cfg.geoAPIURL = getenvDefault("GEO_API_URL", "https://ipapi.co")
	cfg.geoAPITimeout = getenvDurationDefault("GEO_API_TIMEOUT", 2*time.Second)
	// plano gratuito do ipapi.co: 1000/dia ≈ 0.011 rps.
	cfg.geoAPIBudgetRPS = getenvFloatDefault("GEO_API_BUDGET_RPS", 0.011)
	cfg.geoAPIBudgetBurst = getenvIntDefault("GEO_API_BUDGET_BURST", 30)

	cfg.ipLimit = getenvIntDefault("RATE_IP_LIMIT", 60)
	cfg.ipWindow = getenvDurationDefault("RATE_IP_WINDOW", 60*time.Second)
	cfg.tenantLimit = getenvIntDefault("RATE_TENANT_LIMIT", 120)
	cfg.tenantWindow = getenvDurationDefault("RATE_TENANT_WINDOW", 60*time.Second)

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.allowedShopDomains = getenvList("ALLOWED_SHOP_DOMAINS")

	if cfg.allowedCountry != "" && len(cfg.allowedCountry) != 2 {
		return config{}, errors.New("ALLOWED_COUNTRY must be a 2-letter ISO code (or empty to disable)")
	}
	if cfg.ipLimit <= 0 || cfg.ipWindow <= 0 {
		return config{}, errors.New("RATE_IP_LIMIT and RATE_IP_WINDOW must be > 0")
	}
	if cfg.tenantLimit <= 0 || cfg.tenantWindow <= 0 {
		return config{}, errors.New("RATE_TENANT_LIMIT and RATE_TENANT_WINDOW must be > 0")
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
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

func getenvList(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
