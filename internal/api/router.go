package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/api/handlers"
	mw "github.com/Harshitk-cp/truthstake/internal/api/middleware"
	"github.com/Harshitk-cp/truthstake/internal/buildconfig"
	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/event"
	"github.com/Harshitk-cp/truthstake/internal/extledger"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/Harshitk-cp/truthstake/internal/service"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/Harshitk-cp/truthstake/internal/store/memstore"
	"github.com/Harshitk-cp/truthstake/internal/verdict"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores is the storage the engine runs on. Postgres and the in-memory
// driver both fill it.
type Stores struct {
	Pinger      Pinger
	Clients     domain.ClientStore
	Accounts    domain.AccountStore
	Posts       domain.PostStore
	Challenges  domain.ChallengeStore
	Votes       domain.VoteStore
	Resolutions domain.ResolutionStore
	Entries     domain.EntryStore
	Events      domain.EventStore
	Journal     domain.Journal
}

func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Pinger:      db,
		Clients:     store.NewClientStore(db),
		Accounts:    store.NewAccountStore(db),
		Posts:       store.NewPostStore(db),
		Challenges:  store.NewChallengeStore(db),
		Votes:       store.NewVoteStore(db),
		Resolutions: store.NewResolutionStore(db),
		Entries:     store.NewEntryStore(db),
		Events:      store.NewEventStore(db),
		Journal:     store.NewJournal(db),
	}
}

func MemoryStores(db *memstore.DB) Stores {
	return Stores{
		Pinger:      db,
		Clients:     db.Clients(),
		Accounts:    db.Accounts(),
		Posts:       db.Posts(),
		Challenges:  db.Challenges(),
		Votes:       db.Votes(),
		Resolutions: db.Resolutions(),
		Entries:     db.Entries(),
		Events:      db.Events(),
		Journal:     db.Journal(),
	}
}

// WorkerIntervals sets how often each background worker runs. Zero keeps
// the worker's default.
type WorkerIntervals struct {
	Reconcile  time.Duration
	Adjudicate time.Duration
	Finalize   time.Duration
	Dispatch   time.Duration
}

type Options struct {
	Engine          service.EngineConfig
	External        domain.ExternalLedger
	Verdicts        domain.VerdictProvider
	Registry        *prometheus.Registry
	RateLimitRPS    float64
	RateLimitBurst  int
	WorkerIntervals WorkerIntervals
}

// App holds the router and background workers for lifecycle management.
type App struct {
	Router      *chi.Mux
	Ledger      *ledger.Ledger
	Bus         *event.Bus
	Reconciler  *service.Reconciler
	Adjudicator *service.Adjudicator
	Finalizer   *service.Finalizer
	Dispatcher  *service.Dispatcher
	IntentRelay *service.IntentRelay

	limiter     *mw.RateLimiter
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewApp(stores Stores, opts Options, logger *zap.Logger) (*App, error) {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	cfg := opts.Engine

	verdictPolicy, err := service.NewVerdictPolicy(cfg)
	if err != nil {
		return nil, err
	}
	settlementPolicy, err := service.NewSettlementPolicy(cfg.SettlementPolicy)
	if err != nil {
		return nil, err
	}

	// Core
	l := ledger.New(stores.Accounts, stores.Journal, logger, registry, ledger.Config{
		MinReputation: cfg.ReputationMin,
		MaxReputation: cfg.ReputationMax,
	})
	bus := event.NewBus(registry, logger)
	metrics := service.NewMetrics(registry)

	// Services
	accountSvc := service.NewAccountService(l, stores.Entries, cfg, logger)
	stakeSvc := service.NewStakeService(l, stores.Posts, stores.Challenges, cfg, metrics, logger)
	challengeSvc := service.NewChallengeService(l, stores.Posts, stores.Challenges, stores.Votes, stores.Resolutions, cfg, metrics, logger)
	resolutionSvc := service.NewResolutionService(l, stores.Posts, stores.Challenges, stores.Votes, stores.Resolutions,
		service.NewSettler(settlementPolicy, cfg), verdictPolicy, cfg, metrics, logger)

	// Workers
	reconciler := service.NewReconciler(l, stores.Accounts, opts.External, metrics, logger)
	adjudicator := service.NewAdjudicator(resolutionSvc, stores.Posts, stores.Challenges, opts.Verdicts, metrics, logger)
	finalizer := service.NewFinalizer(resolutionSvc, stakeSvc, metrics, logger)
	dispatcher := service.NewDispatcher(stores.Events, bus, metrics, logger)
	intentRelay := service.NewIntentRelay(l, opts.External, bus, logger)

	iv := opts.WorkerIntervals
	if iv.Reconcile > 0 {
		reconciler.SetInterval(iv.Reconcile)
	}
	if iv.Adjudicate > 0 {
		adjudicator.SetInterval(iv.Adjudicate)
	}
	if iv.Finalize > 0 {
		finalizer.SetInterval(iv.Finalize)
	}
	if iv.Dispatch > 0 {
		dispatcher.SetInterval(iv.Dispatch)
	}

	// Handlers
	clientHandler := handlers.NewClientHandler(stores.Clients)
	accountHandler := handlers.NewAccountHandler(accountSvc, challengeSvc, reconciler, logger)
	postHandler := handlers.NewPostHandler(stakeSvc, challengeSvc, logger)
	challengeHandler := handlers.NewChallengeHandler(challengeSvc, resolutionSvc, logger)
	eventHandler := handlers.NewEventHandler(stores.Events, logger)

	r := chi.NewRouter()
	app := &App{
		Router:      r,
		Ledger:      l,
		Bus:         bus,
		Reconciler:  reconciler,
		Adjudicator: adjudicator,
		Finalizer:   finalizer,
		Dispatcher:  dispatcher,
		IntentRelay: intentRelay,
		limiter:     mw.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		stopCleanup: make(chan struct{}),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.NewMetricsCollector(registry).Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(app.limiter.Middleware)

	// Unauthenticated
	r.Get("/health", healthHandler(stores.Pinger))
	r.Get("/version", versionHandler)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Client creation (bootstrap endpoint)
	r.Post("/v1/clients", clientHandler.Create)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(stores.Clients))
		r.Use(mw.AccountIdentity)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountHandler.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", accountHandler.Get)
				r.Post("/deactivate", accountHandler.Deactivate)
				r.Post("/reconcile", accountHandler.Reconcile)
				r.Get("/entries", accountHandler.Entries)
				r.Get("/challenges", accountHandler.Challenges)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", postHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Post("/support", postHandler.Support)
				r.Get("/challenges", postHandler.Challenges)
				r.Get("/minimum-challenge", postHandler.MinimumChallenge)
			})
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Post("/", challengeHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", challengeHandler.Get)
				r.Post("/verdict", challengeHandler.Verdict)
				r.Post("/votes", challengeHandler.Vote)
				r.Post("/finalize", challengeHandler.Finalize)
			})
		})

		r.Get("/events", eventHandler.List)
	})

	return app, nil
}

// Start launches the background workers. The intent relay subscribes
// before the dispatcher publishes anything.
func (app *App) Start() {
	app.IntentRelay.Start()
	app.Dispatcher.Start()
	app.Reconciler.Start()
	app.Adjudicator.Start()
	app.Finalizer.Start()
	go app.limiter.RunCleanup(time.Minute, 10*time.Minute, app.stopCleanup)
}

// Stop halts the workers and drains the bus. Safe to call more than once.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.stopCleanup)
		app.Reconciler.Stop()
		app.Adjudicator.Stop()
		app.Finalizer.Stop()
		app.Dispatcher.Stop()
		app.IntentRelay.Stop()
		app.Bus.Stop()
	})
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := p.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildconfig.VersionInfo())
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.ClientStore     = (*store.ClientStore)(nil)
	_ domain.AccountStore    = (*store.AccountStore)(nil)
	_ domain.PostStore       = (*store.PostStore)(nil)
	_ domain.ChallengeStore  = (*store.ChallengeStore)(nil)
	_ domain.VoteStore       = (*store.VoteStore)(nil)
	_ domain.ResolutionStore = (*store.ResolutionStore)(nil)
	_ domain.EntryStore      = (*store.EntryStore)(nil)
	_ domain.EventStore      = (*store.EventStore)(nil)
	_ domain.ClientStore     = (*memstore.ClientStore)(nil)
	_ domain.AccountStore    = (*memstore.AccountStore)(nil)
	_ domain.PostStore       = (*memstore.PostStore)(nil)
	_ domain.ChallengeStore  = (*memstore.ChallengeStore)(nil)
	_ domain.VoteStore       = (*memstore.VoteStore)(nil)
	_ domain.ResolutionStore = (*memstore.ResolutionStore)(nil)
	_ domain.EntryStore      = (*memstore.EntryStore)(nil)
	_ domain.EventStore      = (*memstore.EventStore)(nil)
	_ domain.Journal         = (*memstore.Journal)(nil)
	_ domain.ExternalLedger  = (*extledger.RPCClient)(nil)
	_ domain.ExternalLedger  = (*extledger.Simulated)(nil)
	_ domain.VerdictProvider = (*verdict.OpenAIProvider)(nil)
	_ domain.VerdictProvider = (*verdict.AnthropicProvider)(nil)
	_ domain.VerdictProvider = (*verdict.GeminiProvider)(nil)
	_ domain.VerdictProvider = (*verdict.StubProvider)(nil)
	_ domain.VerdictProvider = (*verdict.MockProvider)(nil)
)
