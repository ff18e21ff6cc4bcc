// Command server runs the subscription and billing API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/qrmenu/modules/account"
	"github.com/dmitrymomot/qrmenu/modules/subscriptions"
	"github.com/dmitrymomot/qrmenu/modules/superadmin"
	"github.com/dmitrymomot/qrmenu/modules/webhooks"
	"github.com/dmitrymomot/qrmenu/pkg/config"
	"github.com/dmitrymomot/qrmenu/pkg/email"
	"github.com/dmitrymomot/qrmenu/pkg/httpserver"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/locker"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/mongo"
	"github.com/dmitrymomot/qrmenu/pkg/ratelimit"
	"github.com/dmitrymomot/qrmenu/pkg/redis"
	"github.com/dmitrymomot/qrmenu/pkg/scheduler"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/billing/mongostore"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gate"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
	"github.com/dmitrymomot/qrmenu/svc/notifier"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, "qrmenu-billing"),
		logger.WithLevel(app.LogLevel),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	var (
		dbCfg      mongo.Config
		redisCfg   redis.Config
		jwtCfg     jwt.Config
		gwCfg      gateway.Config
		mailCfg    email.Config
		billingCfg billing.Config
		planCfg    catalogue.Config
		adminCfg   admin.Config
		httpCfg    httpserver.Config
	)
	for _, c := range []func() error{
		func() error { return config.Load(&dbCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&jwtCfg) },
		func() error { return config.Load(&gwCfg) },
		func() error { return config.Load(&mailCfg) },
		func() error { return config.Load(&billingCfg) },
		func() error { return config.Load(&planCfg) },
		func() error { return config.Load(&adminCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := c(); err != nil {
			return err
		}
	}

	db, err := mongo.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer dcancel()
		_ = db.Client().Disconnect(dctx)
	}()
	if err := mongo.EnsureIndexes(ctx, db, mongostore.Indexes()); err != nil {
		return err
	}
	if err := mongo.EnsureIndexes(ctx, db, catalogue.Indexes()); err != nil {
		return err
	}

	checks := map[string]httpserver.Check{"mongo": mongo.Healthcheck(db)}

	var lock locker.Locker = locker.NewMemory()
	if redisCfg.Enabled() {
		rdb, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
		lock = locker.NewRedis(rdb, locker.WithLogger(log))
		checks["redis"] = redis.Healthcheck(rdb)
		log.Info("using redis tenant lock")
	} else {
		log.Warn("REDIS_URL not set, tenant lock is process-local")
	}

	plans, err := loadCatalogue(ctx, db, planCfg, log)
	if err != nil {
		return err
	}

	gw, err := gateway.New(gwCfg, gateway.WithLogger(log))
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if gw.Mode() == gateway.ModeMock {
		log.Warn("payment gateway running in mock mode", logger.Event("gateway_mock"))
	}

	sender, err := email.New(mailCfg, log)
	if err != nil {
		return err
	}
	note := notifier.New(sender,
		notifier.WithAppName(app.Name),
		notifier.WithFrontendURL(billingCfg.FrontendURL),
		notifier.WithOpsEmail(app.OpsEmail),
		notifier.WithLogger(log),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := mongostore.New(db)
	svc := billing.New(store, plans, gw,
		billing.WithConfig(billingCfg),
		billing.WithLocker(lock),
		billing.WithNotifier(note),
		billing.WithMetrics(billing.NewMetrics(reg)),
		billing.WithResourceCounter(billing.ResourceTables, mongostore.ResourceCounter(db, app.TablesColl)),
		billing.WithLogger(log),
	)

	tokens, err := jwt.New(jwtCfg)
	if err != nil {
		return err
	}
	g := gate.New(svc, tokens, gate.WithLogger(log))
	back := admin.New(adminCfg, store, svc, tokens, admin.WithLogger(log))

	signups := ratelimit.New(app.RegistrationRPM, app.RegistrationRPM)
	logins := ratelimit.New(app.LoginRPM, app.LoginRPM)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health", httpserver.HealthHandler(checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Mount("/subscriptions", subscriptions.New(svc, plans, tokens,
		subscriptions.WithOwnerAuth(g.Authenticate, g.RequireOwner),
		subscriptions.WithRegistrationLimiter(signups),
		subscriptions.WithLogger(log),
	).Handle())
	r.Mount("/auth", account.Router(account.RouterOptions{
		Password: account.NewPasswordService(svc, tokens,
			account.WithLoginLimiter(logins),
			account.WithLogger(log),
		),
	}))
	r.Mount("/super-admin", superadmin.New(back,
		superadmin.WithAuth(g.Authenticate, g.RequireSuperAdmin),
		superadmin.WithLoginLimiter(logins),
		superadmin.WithLogger(log),
	).Handle())
	r.Mount("/webhooks", webhooks.New(svc,
		webhooks.WithSignatureHeader(gwCfg.SignatureHeader),
		webhooks.WithLogger(log),
	).Handle())

	sched := scheduler.New(scheduler.WithLogger(log))
	for name, fn := range map[string]func(context.Context) (int, error){
		billing.JobExpirations:    svc.SweepExpirations,
		billing.JobPending:        svc.SweepPendingRegistrations,
		billing.JobTrialReminders: svc.SweepTrialReminders,
	} {
		if err := sched.AddTask(name, scheduler.Every(app.SweepInterval), sweep(fn),
			scheduler.WithTimeout(app.SweepInterval),
		); err != nil {
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return sched.Start(ctx) })
	eg.Go(func() error { return httpserver.New(httpCfg, log).Run(ctx, r) })

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func sweep(fn func(context.Context) (int, error)) scheduler.TaskFunc {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

// loadCatalogue seeds the plans collection from PLANS_FILE, or with the
// built-in plans when the collection is empty, and loads it.
func loadCatalogue(ctx context.Context, db *mongodrv.Database, cfg catalogue.Config, log *slog.Logger) (*catalogue.Catalogue, error) {
	vat, err := catalogue.NewVAT(cfg.VATRate)
	if err != nil {
		return nil, err
	}
	src := catalogue.NewMongoSource(db)

	var seed []catalogue.Plan
	if cfg.PlansFile != "" {
		if seed, err = catalogue.NewFileSource(cfg.PlansFile).Load(ctx); err != nil {
			return nil, err
		}
	} else {
		existing, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			seed = catalogue.DefaultPlans()
		}
	}
	if len(seed) > 0 {
		if err := src.Save(ctx, seed); err != nil {
			return nil, err
		}
	}
	return catalogue.New(ctx, src, catalogue.WithVAT(vat), catalogue.WithLogger(log))
}
