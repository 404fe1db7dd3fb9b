package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"trade-admission/admission/application"
)

type config struct {
	listenAddr string
	logLevel   string

	storeBackend  string
	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	catalogFile string

	ceilings            application.Ceilings
	counterTTL          time.Duration
	anonWeeklyCap       int
	anonResumeThreshold int
	registeredActiveCap int
	stageTimeout        time.Duration

	trustXFF            bool
	trustAccountHeaders bool
	adminKey            string

	floodRPS           float64
	floodBurst         int
	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled bool
	kafkaBrokers []string
	kafkaTopic   string
}

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

func readConfig() (config, error) {
	def := application.DefaultPolicy()

	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.storeBackend = strings.ToLower(getenvDefault("STORE_BACKEND", backendMemory))
	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("REDIS_PREFIX", "admission")

	cfg.catalogFile = os.Getenv("CATALOG_FILE")

	cfg.ceilings = application.Ceilings{
		AddressMinute:     getenvInt64Default("LIMIT_ADDRESS_MINUTE", def.Ceilings.AddressMinute),
		AddressHour:       getenvInt64Default("LIMIT_ADDRESS_HOUR", def.Ceilings.AddressHour),
		FingerprintMinute: getenvInt64Default("LIMIT_FINGERPRINT_MINUTE", def.Ceilings.FingerprintMinute),
		FingerprintHour:   getenvInt64Default("LIMIT_FINGERPRINT_HOUR", def.Ceilings.FingerprintHour),
	}
	cfg.counterTTL = getenvDurationDefault("COUNTER_TTL", def.CounterTTL)
	cfg.anonWeeklyCap = getenvIntDefault("ANON_WEEKLY_CAP", def.Quota.AnonymousWeeklyCap)
	cfg.anonResumeThreshold = getenvIntDefault("ANON_RESUME_THRESHOLD", def.Quota.ResumeThreshold)
	cfg.registeredActiveCap = getenvIntDefault("REGISTERED_ACTIVE_CAP", def.Quota.RegisteredActiveCap)
	cfg.stageTimeout = getenvDurationDefault("STAGE_TIMEOUT", def.StageTimeout)

	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.trustAccountHeaders = getenvBoolDefault("TRUST_ACCOUNT_HEADERS", false)
	cfg.adminKey = os.Getenv("ADMIN_KEY")

	// FLOOD_RPS=0 desliga o flood guard local.
	cfg.floodRPS = getenvFloatDefault("FLOOD_RPS", 5)
	cfg.floodBurst = getenvIntDefault("FLOOD_BURST", 20)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.kafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.kafkaTopic = getenvDefault("KAFKA_TOPIC", "trade-accepted")

	switch cfg.storeBackend {
	case backendMemory:
	case backendRedis:
		if strings.TrimSpace(cfg.redisAddr) == "" {
			return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	default:
		return config{}, errors.New("STORE_BACKEND must be memory or redis")
	}

	if strings.TrimSpace(cfg.catalogFile) == "" {
		return config{}, errors.New("CATALOG_FILE is required")
	}
	if cfg.ceilings.AddressMinute < 0 || cfg.ceilings.AddressHour < 0 ||
		cfg.ceilings.FingerprintMinute < 0 || cfg.ceilings.FingerprintHour < 0 {
		return config{}, errors.New("LIMIT_* must be >= 0")
	}
	if cfg.counterTTL < time.Hour {
		return config{}, errors.New("COUNTER_TTL must be >= 1h")
	}
	if cfg.anonWeeklyCap <= 0 || cfg.registeredActiveCap <= 0 {
		return config{}, errors.New("ANON_WEEKLY_CAP and REGISTERED_ACTIVE_CAP must be > 0")
	}
	if cfg.anonResumeThreshold <= 0 || cfg.anonResumeThreshold > cfg.anonWeeklyCap {
		return config{}, errors.New("ANON_RESUME_THRESHOLD must be in (0, ANON_WEEKLY_CAP]")
	}
	if cfg.stageTimeout <= 0 {
		return config{}, errors.New("STAGE_TIMEOUT must be > 0")
	}
	if cfg.floodRPS < 0 {
		return config{}, errors.New("FLOOD_RPS must be >= 0")
	}
	if cfg.floodRPS > 0 && cfg.floodBurst <= 0 {
		return config{}, errors.New("FLOOD_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if len(cfg.kafkaBrokers) > 0 && strings.TrimSpace(cfg.kafkaTopic) == "" {
		return config{}, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return cfg, nil
}

// policy monta a política do motor a partir da configuração.
func (c config) policy() application.Policy {
	p := application.DefaultPolicy()
	p.Ceilings = c.ceilings
	p.CounterTTL = c.counterTTL
	p.Quota.AnonymousWeeklyCap = c.anonWeeklyCap
	p.Quota.ResumeThreshold = c.anonResumeThreshold
	p.Quota.RegisteredActiveCap = c.registeredActiveCap
	p.StageTimeout = c.stageTimeout
	return p
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt64Default(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
