package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicaleng/cmms/internal/config"
	"github.com/clinicaleng/cmms/internal/domain/checklist"
	"github.com/clinicaleng/cmms/internal/domain/corrective"
	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/maintenance"
	"github.com/clinicaleng/cmms/internal/domain/physics"
	"github.com/clinicaleng/cmms/internal/domain/serviceorder"
	"github.com/clinicaleng/cmms/internal/domain/staff"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/auth"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/events"
	"github.com/clinicaleng/cmms/internal/platform/middleware"
	"github.com/clinicaleng/cmms/internal/platform/notification"
	"github.com/clinicaleng/cmms/internal/platform/plan"
	"github.com/clinicaleng/cmms/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cmms-server",
		Short: "Clinical engineering maintenance and compliance server",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE:  runServer,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  runMigrateUp,
	}
	migrateUpCmd.Flags().String("schema", "public", "Target schema")
	migrateUpCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  runMigrateStatus,
	}
	migrateStatusCmd.Flags().String("schema", "public", "Target schema")
	migrateStatusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)

	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant management commands",
	}

	tenantCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a tenant",
		RunE:  runTenantCreate,
	}
	tenantCreateCmd.Flags().String("id", "", "Tenant identifier")
	tenantCreateCmd.Flags().String("name", "", "Display name (defaults to the identifier)")
	tenantCreateCmd.Flags().String("plan", string(plan.Basico), "Subscription plan: BASICO, PROFISSIONAL or ENTERPRISE")
	_ = tenantCreateCmd.MarkFlagRequired("id")

	tenantCmd.AddCommand(tenantCreateCmd)

	checklistCmd := &cobra.Command{
		Use:   "checklist",
		Short: "Checklist template commands",
	}

	checklistImportCmd := &cobra.Command{
		Use:   "import",
		Short: "Import checklist templates from a YAML file",
		RunE:  runChecklistImport,
	}
	checklistImportCmd.Flags().String("file", "", "YAML file with a templates list")
	checklistImportCmd.Flags().String("tenant", "", "Tenant that owns the templates")
	_ = checklistImportCmd.MarkFlagRequired("file")
	_ = checklistImportCmd.MarkFlagRequired("tenant")

	checklistCmd.AddCommand(checklistImportCmd)

	rootCmd.AddCommand(serveCmd, migrateCmd, tenantCmd, checklistCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "cmms").Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// migrationSource returns the embedded migrations unless dir overrides them.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = newRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.IPExtractor = ipExtractor(cfg.TrustedProxies)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, "X-Tenant-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, maintenance.BulkPaths...))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }, logger))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		logger.Warn().Msg("running with development authentication, every request is MASTER on ENTERPRISE")
		authMW = auth.DevAuthMiddleware(cfg.DefaultTenant)
		if err := db.EnsureTenant(ctx, pool, cfg.DefaultTenant, plan.Enterprise); err != nil {
			return err
		}
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:      cfg.AuthIssuer,
			Audience:    cfg.AuthAudience,
			JWKSURL:     cfg.AuthJWKSURL,
			SigningKey:  []byte(cfg.AuthSigningKey),
			DefaultPlan: plan.Tier(cfg.DefaultPlan),
		})
	}

	api := e.Group("/api/v1")
	api.Use(authMW)
	api.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	apiLimiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	api.Use(middleware.RateLimit(apiLimiter, middleware.ByTenantAndIP))

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go apiLimiter.StartCleanup(bgCtx, limiterSweepInterval)

	clk := clock.System()
	tx := db.NewTxRunner(pool)
	bus := events.NewBus(logger)

	equipmentSvc := equipment.NewService(equipment.NewRepoPG(pool), logger)
	staffSvc := staff.NewService(staff.NewRepoPG(pool))
	orderSvc := serviceorder.NewService(serviceorder.NewRepoPG(pool), clk, logger)
	checklistSvc := checklist.NewService(checklist.NewRepoPG(pool), tx, clk, logger)
	maintenanceSvc := maintenance.NewService(maintenance.NewRepoPG(pool), equipmentSvc, orderSvc, checklistSvc, tx, clk,
		maintenance.BulkConfig{MaxItems: cfg.BulkMaxItems, Timeout: cfg.BulkTxTimeout}, logger)
	correctiveSvc := corrective.NewService(corrective.NewRepoPG(pool), equipmentSvc, staffSvc, orderSvc, bus, tx, clk, logger)
	physicsSvc := physics.NewService(physics.NewRepoPG(pool), equipmentSvc, tx, clk, logger)

	physicsSvc.Subscribe(bus)
	notifier := notification.NewManager(notificationSender(rdb, cfg.NotificationChannel, logger),
		notification.NewTemplateEngine(), clk, logger)
	corrective.NewAlerter(notifier, cfg.AlertRecipients).Observe(bus)

	equipment.NewHandler(equipmentSvc).RegisterRoutes(api)
	staff.NewHandler(staffSvc).RegisterRoutes(api)
	serviceorder.NewHandler(orderSvc).RegisterRoutes(api)
	checklist.NewHandler(checklistSvc).RegisterRoutes(api)
	maintenance.NewHandler(maintenanceSvc).RegisterRoutes(api)
	physics.NewHandler(physicsSvc).RegisterRoutes(api)

	correctiveHandler := corrective.NewHandler(correctiveSvc)
	correctiveHandler.RegisterRoutes(api)

	public := e.Group("/public")
	public.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	ticketLimiter := publicLimiter(rdb, cfg.PublicRateLimitPerMinute)
	if ml, ok := ticketLimiter.(*middleware.MemoryLimiter); ok {
		go ml.StartCleanup(bgCtx, limiterSweepInterval)
	}
	correctiveHandler.RegisterPublicRoutes(public, middleware.RateLimit(ticketLimiter, middleware.ByRouteParam("id")))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

const limiterSweepInterval = 5 * time.Minute

// ipExtractor reads the caller address from the socket. X-Forwarded-For is
// honoured only when the direct peer falls inside one of the trusted CIDRs;
// the private, loopback and link-local defaults echo trusts are switched off.
func ipExtractor(trusted []string) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trusted {
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			opts = append(opts, echo.TrustIPRange(ipNet))
		}
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// publicLimiter shares the per-minute budget across replicas when redis is
// configured and falls back to a per-process token bucket otherwise.
func publicLimiter(rdb *redis.Client, perMinute int) middleware.Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, perMinute, time.Minute)
	}
	return middleware.NewMemoryLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: float64(perMinute) / 60,
		BurstSize:         perMinute,
	})
}

func notificationSender(rdb *redis.Client, channel string, logger zerolog.Logger) notification.Sender {
	if rdb != nil {
		return notification.NewRedisSender(rdb, channel)
	}
	return notification.LogSender{Logger: logger}
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	migrator := db.NewMigrator(pool, migrationSource(dir))
	applied, err := migrator.Up(ctx, schema)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Printf("Applied %d migration(s) to schema %s\n", applied, schema)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	migrator := db.NewMigrator(pool, migrationSource(dir))
	statuses, err := migrator.Status(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("Migration status for schema %s:\n", schema)
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied " + s.AppliedAt.Format(time.RFC3339)
		}
		if s.Modified {
			state += " (modified since)"
		}
		fmt.Printf("  %-32s %s\n", s.Name, state)
	}
	return nil
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	planFlag, _ := cmd.Flags().GetString("plan")

	tier := plan.Tier(planFlag)
	if !tier.Valid() {
		return fmt.Errorf("unknown plan %q", planFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.CreateTenant(ctx, pool, id, name, tier); err != nil {
		return err
	}
	fmt.Printf("Tenant %s registered on plan %s\n", id, tier)
	return nil
}

func runChecklistImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	tenantID, _ := cmd.Flags().GetString("tenant")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := db.WithTenant(context.Background(), tenantID)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc := checklist.NewService(checklist.NewRepoPG(pool), db.NewTxRunner(pool), clock.System(), logger)
	n, err := svc.Import(ctx, tenantID, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d checklist template(s) for tenant %s\n", n, tenantID)
	return nil
}
