package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"checkpoint/internal/attendance"
	attendancehandler "checkpoint/internal/attendance/handler"
	attendancemetrics "checkpoint/internal/attendance/metrics"
	"checkpoint/internal/audit"
	"checkpoint/internal/factors"
	factorshandler "checkpoint/internal/factors/handler"
	"checkpoint/internal/integrity"
	integritymetrics "checkpoint/internal/integrity/metrics"
	"checkpoint/internal/motion"
	"checkpoint/internal/platform/config"
	"checkpoint/internal/platform/httpserver"
	"checkpoint/internal/platform/logger"
	platformredis "checkpoint/internal/platform/redis"
	"checkpoint/internal/policy"
	policyhandler "checkpoint/internal/policy/handler"
	policymetrics "checkpoint/internal/policy/metrics"
	"checkpoint/internal/ratelimit"
	ratelimitstore "checkpoint/internal/ratelimit/store"
	"checkpoint/internal/signature"
	httptransport "checkpoint/internal/transport/http"
)

// main wires configuration, stores, services, and the HTTP surface, then
// owns the server lifecycle. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("checkpoint exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Durable stores. Without a DSN everything runs in memory, which is the
	// development mode; production sets both Postgres and Redis.
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("no redis configured, using in-memory fallbacks")
	}

	// Policy store and evaluator.
	var policyStore policy.Store
	if db != nil {
		policyStore = policy.NewPostgresStore(db)
	} else {
		policyStore = policy.NewInMemoryStore()
	}
	if rdb != nil {
		policyStore = policy.NewCachedStore(policyStore, rdb.Client, cfg.Policy.CacheTTL,
			policy.WithCacheLogger(log))
	}
	if cfg.Policy.BootstrapFile != "" {
		if err := policy.LoadBootstrap(ctx, policyStore, cfg.Policy.BootstrapFile, log); err != nil {
			return fmt.Errorf("bootstrap policies: %w", err)
		}
	}

	checkers, err := buildFactorCheckers(cfg.Factors)
	if err != nil {
		return fmt.Errorf("build factor checkers: %w", err)
	}
	evaluator := policy.NewEvaluator(checkers,
		policy.WithLogger(log),
		policy.WithMetrics(policymetrics.New()),
	)

	// Rate limiter.
	var windows ratelimitstore.WindowStore
	if rdb != nil {
		windows = ratelimitstore.NewRedisWindowStore(rdb.Client)
	} else {
		windows = ratelimitstore.NewInMemoryWindowStore()
	}
	limiter := ratelimit.New(windows, cfg.RateLimit.Limit, cfg.RateLimit.Window,
		ratelimit.WithLogger(log))

	// Motion guard.
	guard := motion.NewGuard(cfg.Motion.MaxSpeedMps, cfg.Motion.TeleportMeters, cfg.Motion.MinTimeDelta)
	var samples motion.SampleStore
	if rdb != nil {
		samples = motion.NewRedisSampleStore(rdb.Client, cfg.Motion.SampleRetention)
	} else {
		samples = motion.NewInMemorySampleStore()
	}

	// Device trust.
	devices, err := buildIntegrityService(cfg.Integrity, db, log)
	if err != nil {
		return fmt.Errorf("build integrity service: %w", err)
	}

	// Verdict signing.
	signer, err := signature.New(cfg.Signature.Secret, signature.Algorithm(cfg.Signature.Algorithm))
	if err != nil {
		return fmt.Errorf("build signature service: %w", err)
	}

	// Audit trail.
	auditor, err := buildAuditor(cfg.Audit, db, log)
	if err != nil {
		return fmt.Errorf("build audit publisher: %w", err)
	}
	defer auditor.Close()

	// Attendance pipeline.
	var verdicts attendance.Store
	if db != nil {
		verdicts = attendance.NewPostgresStore(db)
	} else {
		verdicts = attendance.NewInMemoryStore()
	}
	pipeline := attendance.New(
		limiter, devices, guard, samples,
		policyStore, evaluator, signer, verdicts,
		attendance.Config{
			Timeout:          cfg.Pipeline.Timeout,
			TrustRejectBelow: cfg.Integrity.TrustRejectBelow,
		},
		attendance.WithLogger(log),
		attendance.WithMetrics(attendancemetrics.New()),
		attendance.WithAuditor(auditor),
		attendance.WithAlertHooks(attendance.LogAlertHook{Logger: log}),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Attendance:   attendancehandler.New(pipeline, log),
		Policy:       policyhandler.New(policyStore, log),
		QRTokens:     factorshandler.New([]byte(cfg.Factors.QRSecret), cfg.Factors.QRIssuer, cfg.Factors.QRTokenTTL, log),
		Logger:       log,
		AdminToken:   cfg.Server.AdminToken,
		HealthChecks: healthChecks(db, rdb),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("checkpoint listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildFactorCheckers assembles the presence mode checker registry from the
// site directory. The face checker needs an external recognition service and
// is not wired in this deployment; a policy requiring face fails that factor.
func buildFactorCheckers(cfg config.FactorsConfig) ([]policy.FactorChecker, error) {
	var sites []*factors.Site
	if cfg.SiteFile != "" {
		var err error
		sites, err = factors.LoadSites(cfg.SiteFile)
		if err != nil {
			return nil, err
		}
	}
	directory := factors.NewInMemorySiteDirectory(sites...)

	qr, err := factors.NewQRChecker([]byte(cfg.QRSecret), cfg.QRIssuer)
	if err != nil {
		return nil, err
	}

	return []policy.FactorChecker{
		factors.NewGeofenceChecker(directory),
		factors.NewWifiChecker(directory),
		factors.NewBeaconChecker(directory),
		factors.NewNFCChecker(directory),
		qr,
	}, nil
}

func buildIntegrityService(cfg config.IntegrityConfig, db *sql.DB, log *slog.Logger) (*integrity.Service, error) {
	mode, err := integrity.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	providers := []integrity.Verifier{integrity.NewMockVerifier()}
	if cfg.AttestationKeysDir != "" {
		play, err := integrity.NewPlayIntegrityVerifier(
			integrity.NewDirKeyResolver(cfg.AttestationKeysDir), cfg.ExpectedPackage)
		if err != nil {
			return nil, err
		}
		providers = append(providers, play)
	}
	if cfg.ExpectedBundleID != "" {
		providers = append(providers, integrity.NewAppAttestVerifier(cfg.ExpectedBundleID))
	}

	var bindings integrity.BindingStore
	if db != nil {
		bindings = integrity.NewPostgresBindingStore(db)
	} else {
		bindings = integrity.NewInMemoryBindingStore()
	}

	return integrity.New(
		integrity.Config{
			Mode: mode,
			Safeguard: integrity.Safeguard{
				Production:        cfg.Production,
				AllowMockOverride: cfg.AllowMockOverride,
			},
			AutoBind:          cfg.AutoBind,
			MaxAttestationAge: cfg.MaxAttestationAge,
		},
		providers,
		[]integrity.RootSignalAdapter{integrity.VerdictAdapter{}, integrity.RawSignalAdapter{}},
		bindings,
		integrity.WithLogger(log),
		integrity.WithMetrics(integritymetrics.New()),
	)
}

func buildAuditor(cfg config.AuditConfig, db *sql.DB, log *slog.Logger) (*audit.Publisher, error) {
	var store audit.Store
	if db != nil {
		store = audit.NewPostgresStore(db)
	} else {
		store = audit.NewInMemoryStore()
	}

	opts := []audit.PublisherOption{
		audit.WithPublisherLogger(log),
		audit.WithAsyncBuffer(cfg.AsyncBuffer),
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		opts = append(opts, audit.WithSink(sink))
	}
	return audit.NewPublisher(store, opts...), nil
}

func healthChecks(db *sql.DB, rdb *platformredis.Client) []httptransport.HealthCheck {
	var checks []httptransport.HealthCheck
	if db != nil {
		checks = append(checks, httptransport.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return db.PingContext(ctx) },
		})
	}
	if rdb != nil {
		checks = append(checks, httptransport.HealthCheck{
			Name:  "redis",
			Check: rdb.Health,
		})
	}
	return checks
}
