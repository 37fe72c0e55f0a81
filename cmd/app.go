package cmd

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/config"
	"github.com/AnnixInvestments/annix-sub017/internal/cache"
	"github.com/AnnixInvestments/annix-sub017/internal/consolidation"
	"github.com/AnnixInvestments/annix-sub017/internal/database"
	"github.com/AnnixInvestments/annix-sub017/internal/messaging"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/notification"
	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
	"github.com/AnnixInvestments/annix-sub017/internal/search"
	"github.com/AnnixInvestments/annix-sub017/internal/services"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
)

const closeTimeout = 10 * time.Second

// application holds the wired collaborators shared by the api and worker commands
type application struct {
	cfg          config.Config
	db           *database.Handles
	cache        *cache.RedisCache
	search       *search.ElasticClient
	tracer       tracing.Tracer
	metrics      *metrics.Metrics
	bus          *azservicebus.Client
	publisher    messaging.Publisher
	distribution *services.DistributionService
	reminders    *services.ReminderService
}

func newApplication(cfg config.Config) (*application, error) {
	m := metrics.Default()
	clock := clockwork.NewRealClock()

	// Initialize database connections
	db, err := database.Connect(cfg.DB, m, debugEnabled())
	if err != nil {
		return nil, err
	}
	m.SetHealth("database", database.Ping(db) == nil)

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = &cache.RedisCache{}
	}
	if redisCache.Enabled() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.SetHealth("redis", redisCache.Ping(pingCtx) == nil)
		cancel()
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = &search.ElasticClient{}
	}

	app := &application{
		cfg:       cfg,
		db:        db,
		cache:     redisCache,
		search:    elasticClient,
		tracer:    tracer,
		metrics:   m,
		publisher: messaging.NoopPublisher{},
	}

	// Initialize Azure Service Bus publisher
	if cfg.Azure.ConnectionString == "" {
		log.Warn().Msg("Azure Service Bus not configured, domain events will not be published")
	} else {
		app.bus, err = messaging.NewClient(cfg.Azure.ConnectionString)
		if err != nil {
			return nil, err
		}
		app.publisher, err = messaging.NewPublisher(app.bus, cfg.Azure.EventsQueue, m)
		if err != nil {
			return nil, err
		}
	}

	mapping := cfg.Capabilities.Mapping()
	if gaps := mapping.ValidateComplete(); len(gaps) > 0 {
		log.Warn().Strs("gaps", gaps).Str("version", mapping.Version()).Msg("Capability mapping is incomplete")
	}

	// Initialize repositories
	boqRepo := repositories.NewBoqRepository(db.DB, db.ReadOnlyDB)
	sectionRepo := repositories.NewSectionRepository(db.DB, db.ReadOnlyDB)
	accessRepo := repositories.NewAccessRepository(db.DB, db.ReadOnlyDB)
	supplierRepo := repositories.NewSupplierRepository(db.DB, db.ReadOnlyDB)

	// Initialize services
	notifier := services.NewNotifier(
		supplierRepo,
		accessRepo,
		notification.NewMailerFromConfig(cfg.SMTP),
		mapping,
		clock,
		m,
		services.NotifierOptions{
			Timeout:     cfg.Notifications.Timeout,
			Concurrency: cfg.Notifications.Concurrency,
		},
	)

	app.distribution = services.NewDistributionService(services.DistributionDeps{
		Boqs:      boqRepo,
		Sections:  sectionRepo,
		Access:    accessRepo,
		Builder:   services.NewSectionBuilder(sectionRepo, mapping, m),
		Matcher:   services.NewSupplierMatcher(supplierRepo, accessRepo, mapping, m),
		Notifier:  notifier,
		Lifecycle: services.NewAccessLifecycle(accessRepo, sectionRepo, supplierRepo, mapping, clock, m),
		Engine: consolidation.NewEngine(consolidation.Options{
			PressureClass: cfg.Consolidation.PressureClass,
			GasketType:    cfg.Consolidation.GasketType,
		}),
		Publisher: app.publisher,
		Index:     elasticClient,
		Cache:     redisCache,
		Tracer:    tracer,
		Metrics:   m,
		Clock:     clock,
		ViewTTL:   cfg.Redis.TTL,
	})
	app.reminders = services.NewReminderService(accessRepo, notifier, redisCache, clock)

	return app, nil
}

// Close releases every connection the application opened
func (a *application) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := a.publisher.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if a.bus != nil {
		if err := a.bus.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close Service Bus client")
		}
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis cache")
	}
	a.tracer.Close()
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
