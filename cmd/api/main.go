package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/sellsi/backend-sellsi/db"
	"github.com/sellsi/backend-sellsi/internal/analytics"
	"github.com/sellsi/backend-sellsi/internal/audit"
	"github.com/sellsi/backend-sellsi/internal/auth"
	"github.com/sellsi/backend-sellsi/internal/cart"
	"github.com/sellsi/backend-sellsi/internal/catalog"
	"github.com/sellsi/backend-sellsi/internal/checkout"
	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/config"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/favorites"
	"github.com/sellsi/backend-sellsi/internal/financing"
	"github.com/sellsi/backend-sellsi/internal/health"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/order"
	"github.com/sellsi/backend-sellsi/internal/payment"
	"github.com/sellsi/backend-sellsi/internal/pricing"
	"github.com/sellsi/backend-sellsi/internal/ratelimit"
	"github.com/sellsi/backend-sellsi/internal/security"
	"github.com/sellsi/backend-sellsi/internal/store"
	"github.com/sellsi/backend-sellsi/internal/tasks"
	"github.com/sellsi/backend-sellsi/internal/user"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "sellsi")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "sellsi-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "sellsi-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := store.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue client")
		}
	}()
	scheduler := tasks.Scheduler{Client: asynqClient}

	bus := &events.Bus{Store: queries, Scheduler: scheduler}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})
	supplierCatalog := &catalog.SupplierHandler{Q: queries, Pool: pool, Validate: validator.New()}

	authService, err := auth.NewService(auth.Config{
		Store:          queries,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService, Validate: validator.New()}
	authMiddleware := auth.Middleware{Service: authService}

	addressHandler := &user.Handler{Service: user.NewService(pool)}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	cartSvc := &cart.Service{Q: queries, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Q: queries, Svc: cartSvc, Currency: cfg.CurrencyCode}

	fees := map[string]pricing.FeePolicy{
		"khipu": pricing.FixedFee(cfg.KhipuFixedFee),
		"flow":  pricing.PercentageFee(cfg.FlowFeeBps),
	}
	checkoutSvc := &checkout.Service{
		Q:            queries,
		Pool:         pool,
		Currency:     cfg.CurrencyCode,
		Fees:         fees,
		Events:       bus,
		FlatShipping: cfg.ShippingFlatRate,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Q: queries, Events: bus}
	orderAdmin := &order.AdminHandler{Q: queries}

	providers := map[string]payment.Provider{
		"khipu": payment.Khipu{
			ReceiverID: cfg.KhipuReceiverID,
			Secret:     cfg.KhipuSecret,
		},
		"flow": payment.Flow{
			APIKey: cfg.FlowAPIKey,
			Secret: cfg.FlowSecret,
		},
	}
	paymentSvc := &payment.Service{
		Q:               queries,
		Providers:       providers,
		IntentTTL:       cfg.PaymentIntentTTL,
		CallbackBaseURL: cfg.PaymentCallbackBaseURL,
		Expiry:          scheduler,
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc, Q: queries}
	paymentWebhook := payment.Webhook{
		Q:         queries,
		Pool:      pool,
		Providers: providers,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    bus,
	}

	financingSvc := &financing.Service{Q: queries, Providers: providers, Events: bus}
	financingHandler := &financing.Handler{Svc: financingSvc}
	financingAdmin := &financing.AdminHandler{Svc: financingSvc, Q: queries}
	financingWebhook := financing.Webhook{
		Q:         queries,
		Providers: providers,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    bus,
	}

	favoritesHandler := &favorites.Handler{Svc: &favorites.Service{Q: queries}}

	analyticsSvc := &analytics.Service{
		Q:            queries,
		R:            redisClient,
		TTL:          envDurationMillis("ANALYTICS_CACHE_TTL_MS", 60_000),
		DefaultRange: envInt("ANALYTICS_DEFAULT_RANGE_DAYS", 30),
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	auditSvc := audit.Service{
		Store:        queries,
		Enabled:      envBool("AUDIT_ENABLED", true),
		SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1.0),
	}
	auditRecorder := audit.HTTPRecorder{
		Service: &auditSvc,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: queries}

	publicLimiter, err := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitPublic, "ratelimit:public:")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: publicLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter degraded") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("HTTP_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		u := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		p := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), u, p))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(pub chi.Router) {
			pub.Use(rateLimit.Middleware)
			pub.Get("/products", catalogHandler.Products)
			pub.Get("/products/{slug}", catalogHandler.ProductDetail)
			pub.Get("/products/{slug}/quote", catalogHandler.Quote)
		})

		v.Route("/auth", func(a chi.Router) {
			a.With(rateLimit.Middleware).Post("/register", authHandler.Register)
			a.With(rateLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/users/me/addresses", func(a chi.Router) {
			a.Use(authMiddleware.RequireAuth)
			a.Get("/", addressHandler.List)
			a.Post("/", addressHandler.Create)
			a.Route("/{addressID}", func(child chi.Router) {
				child.Patch("/", addressHandler.Update)
				child.Delete("/", addressHandler.Delete)
			})
		})

		v.Route("/favorites", func(f chi.Router) {
			f.Use(authMiddleware.RequireAuth)
			f.Get("/", favoritesHandler.List)
			f.Post("/toggle", favoritesHandler.Toggle)
			f.Get("/{id}", favoritesHandler.Check)
		})

		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.Authenticate)
			c.Get("/{id}", cartHandler.Get)
			c.With(authMiddleware.RequireAuth).Get("/active", cartHandler.GetActive)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
				g.With(authMiddleware.RequireAuth).Post("/merge", cartHandler.Merge)
			})
		})

		v.With(idem.Middleware, authMiddleware.RequireAuth).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)
			authR.Post("/orders/{orderId}/cancel", orderHandler.Cancel)
		})

		v.Route("/payments", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.With(idem.Middleware).Post("/intent", paymentHandler.Intent)
			p.Get("/{orderId}/status", paymentHandler.Status)
		})

		v.Route("/supplier", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.Use(authMiddleware.RequireRole(auth.RoleSupplier, auth.RoleAdmin))
			s.Post("/products", supplierCatalog.CreateProduct)
		})

		v.Route("/financing", func(f chi.Router) {
			f.Use(authMiddleware.RequireAuth)
			f.Use(authMiddleware.RequireRole(auth.RoleSupplier))
			f.Post("/requests", financingHandler.RequestLine)
			f.Get("/lines", financingHandler.ListLines)
			f.With(idem.Middleware).Post("/lines/{id}/payments", financingHandler.PayDown)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			admin.Use(auditRecorder.Middleware(audit.HTTPConfig{}))
			admin.Get("/financing/requests", financingAdmin.ListRequests)
			admin.Post("/financing/requests/{id}/approve", financingAdmin.Approve)
			admin.Post("/financing/requests/{id}/reject", financingAdmin.Reject)
			admin.Patch("/financing/lines/{id}/pause", financingAdmin.SetPaused)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Get("/audit-logs", auditHandler.List)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
		})

		v.Post("/webhooks/payments/{provider}", paymentWebhook.Handle)
		v.Post("/webhooks/financing/{provider}", financingWebhook.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		health.SetReady(false)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
