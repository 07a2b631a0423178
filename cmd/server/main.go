// Command server wires the portrait registries behind one HTTP surface.
// Storage, caching, and the event pipeline degrade gracefully: without
// Postgres the registries run in memory, without Kafka events stay in the
// outbox, and without Redis reads go straight to the store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	adminhandler "portrait/internal/admin/handler"
	adminservice "portrait/internal/admin/service"
	"portrait/internal/admintoken"
	delegationhandler "portrait/internal/delegation/handler"
	delegationports "portrait/internal/delegation/ports"
	delegationservice "portrait/internal/delegation/service"
	delegationstore "portrait/internal/delegation/store"
	"portrait/internal/events"
	"portrait/internal/events/kafka"
	eventpostgres "portrait/internal/events/store/postgres"
	"portrait/internal/events/worker"
	identityhandler "portrait/internal/identity/handler"
	identityports "portrait/internal/identity/ports"
	identityservice "portrait/internal/identity/service"
	identitystore "portrait/internal/identity/store"
	"portrait/internal/naming"
	"portrait/internal/plan"
	"portrait/internal/platform/config"
	"portrait/internal/platform/httpserver"
	"portrait/internal/platform/logger"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/pause"
	platformredis "portrait/internal/platform/redis"
	"portrait/internal/sigverify"
	teamhandler "portrait/internal/team/handler"
	teamports "portrait/internal/team/ports"
	teamservice "portrait/internal/team/service"
	teamstore "portrait/internal/team/store"
	"portrait/internal/token"
	tokenhandler "portrait/internal/token/handler"
	httptransport "portrait/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	gate := pause.New()
	params := config.NewParams()

	verifier, err := sigverify.New(sigverify.KeyOnlyBackend{}, log)
	if err != nil {
		log.Error("verifier init failed", "error", err)
		os.Exit(1)
	}

	// Storage. Postgres when configured, memory otherwise.
	var (
		db             *sql.DB
		delegationRepo delegationports.Store = delegationstore.NewMemory()
		identityRepo   identityports.Store   = identitystore.NewMemory()
		teamRepo       teamports.Store       = teamstore.NewMemory()
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		dStore := delegationstore.NewPostgres(db)
		iStore := identitystore.NewPostgres(db)
		tStore := teamstore.NewPostgres(db)
		if err := dStore.Migrate(ctx); err != nil {
			log.Error("delegation migration failed", "error", err)
			os.Exit(1)
		}
		if err := iStore.Migrate(ctx); err != nil {
			log.Error("identity migration failed", "error", err)
			os.Exit(1)
		}
		if err := tStore.Migrate(ctx); err != nil {
			log.Error("team migration failed", "error", err)
			os.Exit(1)
		}
		delegationRepo, identityRepo, teamRepo = dStore, iStore, tStore
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		delegationRepo = delegationstore.NewCached(delegationRepo, redisClient, log)
	}

	// Event pipeline. With Postgres the outbox absorbs events and a worker
	// drains it into Kafka; without it events go to Kafka directly or nowhere.
	var (
		publisher     events.Publisher = events.NopPublisher{}
		outboxWorker  *worker.Worker
		kafkaProducer *kafka.Publisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err = kafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		publisher = kafkaProducer
	}
	if db != nil {
		outbox := eventpostgres.New(db)
		if err := outbox.Migrate(ctx); err != nil {
			log.Error("outbox migration failed", "error", err)
			os.Exit(1)
		}
		storePublisher := events.NewStorePublisher(outbox, events.WithLogger(log))
		defer storePublisher.Close()
		publisher = storePublisher
		if kafkaProducer != nil {
			outboxWorker = worker.New(outbox, kafkaProducer, time.Second, log)
		}
	}

	// Services.
	delegation, err := delegationservice.New(delegationRepo, verifier, gate, params,
		delegationservice.WithLogger(log),
		delegationservice.WithPublisher(publisher),
		delegationservice.WithMetrics(m),
	)
	if err != nil {
		log.Error("delegation init failed", "error", err)
		os.Exit(1)
	}

	names := naming.New(naming.WithPublisher(publisher), naming.WithLogger(log))

	identity, err := identityservice.New(identityRepo, verifier, gate, delegation, cfg.ContractOwner,
		identityservice.WithLogger(log),
		identityservice.WithPublisher(publisher),
		identityservice.WithMetrics(m),
		identityservice.WithNaming(names),
		identityservice.WithControlledRegistration(cfg.ControlledRegistration),
	)
	if err != nil {
		log.Error("identity init failed", "error", err)
		os.Exit(1)
	}
	delegation.BindIdentity(identity)

	plans := plan.New(plan.WithPublisher(publisher), plan.WithLogger(log))

	team, err := teamservice.New(teamRepo, gate, plans, delegation,
		teamservice.WithLogger(log),
		teamservice.WithPublisher(publisher),
		teamservice.WithMetrics(m),
		teamservice.WithSeatAccountant(plans),
	)
	if err != nil {
		log.Error("team init failed", "error", err)
		os.Exit(1)
	}

	mirror, err := token.New(identity, gate, log)
	if err != nil {
		log.Error("token mirror init failed", "error", err)
		os.Exit(1)
	}

	tokens := admintoken.New(cfg.JWTSigningKey, "portrait")

	admin, err := adminservice.New(gate, params, identity, plans, tokens, verifier,
		adminservice.WithLogger(log),
		adminservice.WithPublisher(publisher),
	)
	if err != nil {
		log.Error("admin init failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Handlers{
		Delegation: delegationhandler.New(delegation, log, m, tokens),
		Identity:   identityhandler.New(identity, log, m, tokens),
		Team:       teamhandler.New(team, log, m, tokens),
		Token:      tokenhandler.New(mirror, log, m, tokens),
		Admin:      adminhandler.New(admin, log, m, tokens, cfg.ContractOwner),
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if outboxWorker != nil {
		g.Go(func() error {
			err := outboxWorker.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
