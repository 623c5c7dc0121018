package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"datagage/internal/cache"
	"datagage/internal/client/airbyte"
	"datagage/internal/client/metabase"
	"datagage/internal/config"
	cronrunner "datagage/internal/cron"
	"datagage/internal/db"
	"datagage/internal/handler"
	"datagage/internal/llm"
	"datagage/internal/logger"
	"datagage/internal/middleware"
	gormrepository "datagage/internal/repository/gorm"
	"datagage/internal/service"

	_ "datagage/docs"
)

func main() {
	cfgPath := os.Getenv("DG_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("DG_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	// money and averages go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
	handler.HideInternalErrors(cfg.App.Production())

	store := gormrepository.New(dbConn.Gorm)

	cacheStore, err := cache.Open(cfg.Cache)
	if err != nil {
		logger.Fatal("cache open failed", zap.Error(err))
	}
	if rs, ok := cacheStore.(*cache.RedisStore); ok {
		defer rs.Close()
	}

	airbyteClient := &airbyte.Client{
		BaseURL:      cfg.Airbyte.BaseURL,
		ClientID:     cfg.Airbyte.ClientID,
		ClientSecret: cfg.Airbyte.ClientSecret,
		WorkspaceID:  cfg.Airbyte.WorkspaceID,
		HTTP:         &http.Client{Timeout: cfg.Airbyte.Timeout},
		TokenTimeout: cfg.Airbyte.Timeout,
	}
	if cfg.Airbyte.ClientID == "" || cfg.Airbyte.ClientSecret == "" {
		logger.Warn("airbyte credentials missing; source routes will answer 503")
	}

	checkDestination(airbyteClient, cfg.Airbyte.DestinationID, logger)

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Fatal("llm provider init failed", zap.Error(err))
	}
	if provider == nil {
		logger.Warn("llm api key missing; insights use the computed fallback")
	}

	var signer *metabase.Signer
	if cfg.Metabase.SecretKey != "" {
		signer = metabase.NewSigner(cfg.Metabase.SiteURL, cfg.Metabase.SecretKey, cfg.Metabase.EmbedTTL)
	}

	sealer, err := service.NewConfigSealer(cfg.Security.ConfigKey, cfg.Security.PreviousConfigKey)
	if err != nil {
		logger.Fatal("config sealer init failed", zap.Error(err))
	}
	workflow := &service.SourceWorkflow{
		Platform:      airbyteClient,
		Repo:          store,
		DestinationID: cfg.Airbyte.DestinationID,
		Secrets:       sealer,
		Logger:        logger.Named("workflow"),
	}
	if sealer.Enabled() {
		n, err := workflow.ResealConfigs(context.Background())
		if err != nil {
			logger.Warn("reseal source configs incomplete", zap.Int("changed", n), zap.Error(err))
		} else if n > 0 {
			logger.Info("resealed source configs", zap.Int("changed", n))
		}
	} else {
		logger.Warn("security.config_encryption_key empty; source secrets are stored as given")
	}
	analytics := &service.AnalyticsService{
		Sales:   store,
		Sources: store,
		Cache:   cacheStore,
		TTL:     cfg.Cache.TTL,
		Logger:  logger.Named("analytics"),
	}
	narrator := &service.Narrator{
		Provider: provider,
		Cache:    cacheStore,
		TTL:      cfg.Cache.TTL,
		Logger:   logger.Named("narrator"),
	}
	dashboards := &service.DashboardService{
		Client:     metabase.New(cfg.Metabase.SiteURL, cfg.Metabase.Username, cfg.Metabase.Password, cfg.Metabase.Timeout),
		Signer:     signer,
		DatabaseID: cfg.Metabase.DatabaseID,
		Logger:     logger.Named("dashboard"),
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog(logger.Named("http")))
	engine.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		engine.Use(limiter.Handler("/api/"))
	}
	if cfg.Auth.BearerToken == "" {
		logger.Warn("auth.bearer_token empty; /api routes are open")
	}
	engine.Use(middleware.RequireBearer(cfg.Auth.BearerToken))
	engine.Use(middleware.WriteAudit(logger))

	upstreams := map[string]func(context.Context) error{
		"airbyte": func(ctx context.Context) error {
			_, err := airbyteClient.Authenticate(ctx)
			return err
		},
	}
	if destID := cfg.Airbyte.DestinationID; destID != "" {
		upstreams["airbyte_destination"] = func(ctx context.Context) error {
			_, err := airbyteClient.GetDestination(ctx, destID)
			return err
		}
	}
	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Upstreams: upstreams}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)

	airbyteHandler := &handler.AirbyteHandler{Workflow: workflow, Logger: logger}
	airbyteHandler.Register(engine)
	analyticsHandler := &handler.AnalyticsHandler{
		Analytics:      analytics,
		Narrator:       narrator,
		Logger:         logger,
		OriginPatterns: originHosts(cfg.CORS.AllowedOrigins),
	}
	analyticsHandler.Register(engine)
	metabaseHandler := &handler.MetabaseHandler{Dashboards: dashboards, Logger: logger}
	metabaseHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseCtx, baseCancel := context.WithCancel(ctx)
	defer baseCancel()

	cronRunner := cronrunner.New(logger.Named("cron"), baseCtx)
	if cfg.Cron.Enabled {
		monitor := &service.SyncMonitor{Platform: airbyteClient, Repo: store, Logger: logger.Named("sync")}
		if _, err := cronRunner.Add("sync_poll", cfg.Cron.SyncPoll, func(ctx context.Context) {
			if _, err := monitor.Poll(ctx); err != nil {
				logger.Warn("sync poll failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register sync poll failed", zap.Error(err))
		}
	}
	if mem, ok := cacheStore.(*cache.MemoryStore); ok {
		if _, err := cronRunner.Add("cache_sweep", "@every 5m", func(context.Context) {
			if n := mem.Sweep(); n > 0 {
				logger.Debug("cache sweep", zap.Int("expired", n))
			}
		}); err != nil {
			logger.Warn("cron register cache sweep failed", zap.Error(err))
		}
	}
	if limiter != nil {
		if _, err := cronRunner.Add("rate_limit_sweep", "@every 10m", func(context.Context) {
			limiter.Sweep()
		}); err != nil {
			logger.Warn("cron register limiter sweep failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// checkDestination confirms at boot that the default destination exists.
// Failures only warn: source routes report their own errors.
func checkDestination(client *airbyte.Client, destinationID string, log *zap.Logger) {
	if destinationID == "" {
		log.Warn("airbyte.destination_id empty; new sources cannot be connected")
		return
	}
	if client.ClientID == "" || client.ClientSecret == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	dest, err := client.GetDestination(ctx, destinationID)
	if airbyte.IsNotFound(err) {
		var known []string
		if dests, lerr := client.ListDestinations(ctx); lerr == nil {
			for _, d := range dests {
				known = append(known, d.DestinationID+" ("+d.Name+")")
			}
		}
		log.Warn("airbyte destination not found in workspace",
			zap.String("destination_id", destinationID), zap.Strings("available", known))
		return
	}
	if err != nil {
		log.Warn("airbyte destination check failed", zap.String("destination_id", destinationID), zap.Error(err))
		return
	}
	log.Info("airbyte destination ok",
		zap.String("destination_id", dest.DestinationID),
		zap.String("name", dest.Name),
		zap.String("type", dest.DestinationType))
}

// originHosts turns CORS origins into the host patterns the WebSocket
// origin check expects.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
