package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-admission/admission"
	"trade-admission/admission/application"
	"trade-admission/admission/domain"
	"trade-admission/admission/infra"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// counterStore é o que o binário precisa dos contadores: incremento e purge.
type counterStore interface {
	domain.CounterStore
	domain.CounterPurger
}

// stores agrupa os backends escolhidos por STORE_BACKEND.
type stores struct {
	counters counterStore
	log      domain.SubmissionLog
	stats    domain.StatsStore
	janitors []func(ctx context.Context)
	close    func()
}

func main() {
	// .env é opcional; variáveis já presentes no ambiente têm prioridade.
	envErr := godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		boot := newLogger("info")
		boot.Fatal().Err(err).Msg("config error")
	}
	logger := newLogger(cfg.logLevel)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn().Err(envErr).Msg(".env not loaded")
	}

	catalog, err := infra.LoadCatalogFile(cfg.catalogFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog error")
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store error")
	}
	defer st.close()

	var notifier domain.Notifier
	if len(cfg.kafkaBrokers) > 0 {
		kn := infra.NewKafkaNotifier(cfg.kafkaBrokers, cfg.kafkaTopic)
		defer func() { _ = kn.Close() }()
		notifier = kn
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	for _, start := range st.janitors {
		start(ctx)
	}

	engine := application.NewEngine(application.Deps{
		Counters: st.counters,
		Log:      st.log,
		Catalog:  catalog,
		Notifier: notifier,
		Stats:    st.stats,
		Logger:   logger.With().Str("component", "engine").Logger(),
	}, cfg.policy())

	keyFn := admission.ClientAddress(cfg.trustXFF)
	h := admission.Handler{
		Engine: engine,
		Listings: application.Listings{
			Log:                 st.log,
			Counters:            st.counters,
			RegisteredActiveCap: cfg.registeredActiveCap,
			MaxDescriptionLen:   application.DefaultValidationLimits().MaxDescriptionLen,
			AdminKey:            cfg.adminKey,
		},
		KeyFn:   keyFn,
		Session: admission.HeaderSession(cfg.trustAccountHeaders),
		Logger:  logger.With().Str("component", "http").Logger(),
	}.Routes()

	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.floodRPS > 0 {
		flood := infra.NewFloodStore(cfg.floodRPS, cfg.floodBurst)
		flood.StartJanitor(ctx)
		h = admission.FloodMiddleware(admission.FloodOptions{
			Store:  flood,
			Stats:  st.stats,
			KeyFn:  keyFn,
			Logger: logger.With().Str("component", "flood").Logger(),
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.listenAddr).
		Str("backend", cfg.storeBackend).
		Int("catalogItems", catalog.Len()).
		Bool("kafka", notifier != nil).
		Bool("stats", st.stats != nil).
		Msg("tradeboard listening")
	logger.Info().
		Int64("addressMinute", cfg.ceilings.AddressMinute).
		Int64("addressHour", cfg.ceilings.AddressHour).
		Int64("fingerprintMinute", cfg.ceilings.FingerprintMinute).
		Int64("fingerprintHour", cfg.ceilings.FingerprintHour).
		Int("anonWeeklyCap", cfg.anonWeeklyCap).
		Int("registeredActiveCap", cfg.registeredActiveCap).
		Msg("admission limits")
	logger.Info().
		Float64("floodRPS", cfg.floodRPS).
		Int("floodBurst", cfg.floodBurst).
		Int("concurrencyMax", cfg.concurrencyMax).
		Dur("concurrencyTimeout", cfg.concurrencyTimeout).
		Bool("trustXFF", cfg.trustXFF).
		Msg("http guards")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func openStores(cfg config, logger zerolog.Logger) (stores, error) {
	if cfg.storeBackend == backendMemory {
		counters := infra.NewMemoryCounterStore()
		log := infra.NewMemorySubmissionLog()
		st := stores{
			counters: counters,
			log:      log,
			janitors: []func(context.Context){counters.StartJanitor, log.StartJanitor},
			close:    func() {},
		}
		if cfg.statsEnabled {
			st.stats = infra.NewMemoryStatsStore()
		}
		logger.Warn().Msg("memory backend: counters and trades are per-instance and lost on restart")
		return st, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		Password: cfg.redisPassword,
		DB:       cfg.redisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return stores{}, err
	}

	st := stores{
		counters: infra.NewRedisCounterStore(rdb, infra.WithCounterPrefix(cfg.redisPrefix+":counter")),
		log:      infra.NewRedisSubmissionLog(rdb, infra.WithLogPrefix(cfg.redisPrefix+":trades")),
		close:    func() { _ = rdb.Close() },
	}
	if cfg.statsEnabled {
		st.stats = infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(cfg.redisPrefix+":stats"))
	}
	return st, nil
}

// newLogger usa saída legível no terminal e JSON fora dele.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "tradeboard").Logger()
}
