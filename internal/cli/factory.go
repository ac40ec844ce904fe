package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/tripflow/internal/config"
	"github.com/aretw0/tripflow/pkg/adapters/extractor"
	"github.com/aretw0/tripflow/pkg/adapters/file"
	httpadapter "github.com/aretw0/tripflow/pkg/adapters/http"
	"github.com/aretw0/tripflow/pkg/adapters/livekit"
	"github.com/aretw0/tripflow/pkg/adapters/memory"
	redisadapter "github.com/aretw0/tripflow/pkg/adapters/redis"
	"github.com/aretw0/tripflow/pkg/adapters/stt"
	"github.com/aretw0/tripflow/pkg/dispatch"
	"github.com/aretw0/tripflow/pkg/observability"
	"github.com/aretw0/tripflow/pkg/persistence"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
)

// App is the wired set of components behind every command.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Sessions     *session.Manager
	Orchestrator *session.Orchestrator
	Hub          *httpadapter.Hub
	Tokens       *livekit.Issuer
	Registry     *prometheus.Registry

	redis backend.UniversalClient
	relay *redisadapter.Relay
}

type buildOptions struct {
	extractor   ports.Extractor
	transcriber ports.Transcriber
	redis       backend.UniversalClient
	debug       bool
}

// BuildOption overrides a component Build would otherwise create from config.
type BuildOption func(*buildOptions)

// WithExtractor replaces the configured language model.
func WithExtractor(e ports.Extractor) BuildOption {
	return func(o *buildOptions) {
		o.extractor = e
	}
}

// WithTranscriber replaces the configured transcription service.
func WithTranscriber(t ports.Transcriber) BuildOption {
	return func(o *buildOptions) {
		o.transcriber = t
	}
}

// WithRedisClient uses client instead of dialing cfg.Redis.Addr.
func WithRedisClient(client backend.UniversalClient) BuildOption {
	return func(o *buildOptions) {
		o.redis = client
	}
}

// WithDebug logs every turn event.
func WithDebug(debug bool) BuildOption {
	return func(o *buildOptions) {
		o.debug = debug
	}
}

// Build wires the components described by cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	app := &App{
		Config:   cfg,
		Logger:   CreateLogger(cfg.Logging, bo.debug),
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector())

	store, locker, err := app.createStore(cfg, bo.redis)
	if err != nil {
		return nil, err
	}
	managerOpts := []session.Option{
		session.WithTTL(cfg.Session.TTL),
		session.WithLockTTL(cfg.Session.LockTTL),
		session.WithStoreTimeout(cfg.Session.StoreTimeout),
		session.WithLogger(app.Logger),
	}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(store, managerOpts...)

	ext := bo.extractor
	if ext == nil {
		if ext, err = createExtractor(ctx, cfg.Extractor); err != nil {
			app.Close()
			return nil, err
		}
	}

	dispatcher, err := app.createDispatcher(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	metrics := observability.NewMetrics(app.Registry)
	hooks := metrics.Hooks()
	if bo.debug {
		hooks = observability.Chain(hooks, debugHooks(app.Logger))
	}

	orchOpts := []session.OrchestratorOption{
		session.WithDispatcher(dispatcher),
		session.WithHooks(hooks),
		session.WithTurnLogger(app.Logger),
		session.WithCallTimeouts(cfg.STT.Timeout, cfg.Extractor.Timeout),
		session.WithMaxUtterance(cfg.Session.MaxUtterance),
	}
	transcriber := bo.transcriber
	if transcriber == nil && cfg.STT.URL != "" {
		transcriber = stt.New(cfg.STT.URL, stt.WithAPIKey(cfg.STT.APIKey))
	}
	if transcriber != nil {
		orchOpts = append(orchOpts, session.WithTranscriber(transcriber))
	}
	app.Orchestrator = session.NewOrchestrator(app.Sessions, ext, orchOpts...)

	return app, nil
}

func (a *App) createStore(cfg *config.Config, client backend.UniversalClient) (ports.SessionStore, ports.DistributedLocker, error) {
	codec, err := createCodec(cfg.Encryption)
	if err != nil {
		return nil, nil, err
	}

	if client == nil && cfg.Redis.Addr == "" {
		if cfg.Session.Dir != "" {
			var opts []file.Option
			if codec != nil {
				opts = append(opts, file.WithCodec(codec))
			}
			return file.New(cfg.Session.Dir, opts...), nil, nil
		}
		if codec != nil {
			a.Logger.Warn("encryption key ignored: sessions are kept in memory")
		}
		return memory.NewStore(), nil, nil
	}

	if client == nil {
		client = backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	a.redis = client

	storeOpts := []redisadapter.Option{redisadapter.WithPrefix(cfg.Redis.Prefix)}
	if codec != nil {
		storeOpts = append(storeOpts, redisadapter.WithCodec(codec))
	}
	store := redisadapter.NewFromClient(client, storeOpts...)

	var locker ports.DistributedLocker
	if cfg.Redis.Lock {
		locker = redisadapter.NewLocker(client, cfg.Redis.Prefix)
	}
	return store, locker, nil
}

// createCodec returns nil when records are stored in plain JSON.
func createCodec(cfg config.EncryptionConfig) (persistence.Codec, error) {
	if cfg.Key == "" {
		return nil, nil
	}
	active, fallbacks, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	codec, err := persistence.NewEncrypted(persistence.EncryptionConfig{
		ActiveKey:    active,
		FallbackKeys: fallbacks,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	return codec, nil
}

func createExtractor(ctx context.Context, cfg config.ExtractorConfig) (ports.Extractor, error) {
	configure := func(o *extractor.Options) {
		if cfg.Model != "" {
			o.Model = cfg.Model
		}
		o.APIKey = cfg.APIKey
		o.BaseURL = cfg.BaseURL
		o.Temperature = cfg.Temperature
		if cfg.MaxTokens > 0 {
			o.MaxTokens = cfg.MaxTokens
		}
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return extractor.NewOpenAI(configure), nil
	case config.ProviderAnthropic:
		return extractor.NewAnthropic(configure), nil
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errors.New("gemini extractor needs an api key (GEMINI_API_KEY)")
		}
		return extractor.NewGemini(ctx, configure)
	default:
		return nil, fmt.Errorf("unknown extractor provider %q", cfg.Provider)
	}
}

// createDispatcher routes signals to the local hub, through Redis Pub/Sub when
// replicas share a store, and to LiveKit rooms when credentials are set.
func (a *App) createDispatcher(cfg *config.Config) (*dispatch.Dispatcher, error) {
	table, err := dispatch.NewTable(cfg.Dispatch.Assets)
	if err != nil {
		return nil, err
	}
	a.Hub = httpadapter.NewHub(a.Logger)

	opts := []dispatch.Option{
		dispatch.WithTable(table),
		dispatch.WithBaseURL(cfg.Server.PublicURL),
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
		dispatch.WithLogger(a.Logger),
	}
	if a.redis != nil {
		opts = append(opts, dispatch.WithNotifier(redisadapter.NewPublisher(a.redis, cfg.Redis.Channel)))
		a.relay = redisadapter.NewRelay(a.redis, cfg.Redis.Channel, a.Hub, a.Logger)
	} else {
		opts = append(opts, dispatch.WithNotifier(a.Hub))
	}

	if cfg.LiveKit.Enabled() {
		issuer, err := livekit.NewIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
		if err != nil {
			return nil, err
		}
		a.Tokens = issuer
		opts = append(opts, dispatch.WithNotifier(livekit.NewNotifier(cfg.LiveKit.URL, issuer)))
	}
	return dispatch.New(opts...), nil
}

// Handler builds the HTTP surface.
func (a *App) Handler() http.Handler {
	opts := []httpadapter.Option{
		httpadapter.WithHub(a.Hub),
		httpadapter.WithAudioDir(a.Config.Server.AudioDir),
		httpadapter.WithMaxUpload(a.Config.Server.MaxUpload),
		httpadapter.WithMetrics(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})),
		httpadapter.WithLogger(a.Logger),
	}
	if a.Tokens != nil {
		opts = append(opts, httpadapter.WithTokenIssuer(a.Tokens))
	}
	return httpadapter.NewHandler(a.Orchestrator, opts...)
}

// Relay returns the Pub/Sub relay, or nil when sessions are in memory.
func (a *App) Relay() *redisadapter.Relay {
	return a.relay
}

// Ping checks the session backend.
func (a *App) Ping(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
