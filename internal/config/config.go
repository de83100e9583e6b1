package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	HTTPAddr          string
	DBDriver          string
	SQLitePath        string
	DBDSN             string
	RedisAddr         string
	CacheTTL          time.Duration
	OtelEndpoint      string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	NotifyInterval    time.Duration
	StrictTransitions bool
	CORSOrigins       []string
	SeedFile          string
	LogLevel          string
	LogFormat         string
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	driver := strings.ToLower(stringEnv(source, "DB_DRIVER", DriverMemory))
	switch driver {
	case DriverMemory, DriverSQLite, DriverMySQL:
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER: %q", driver)
	}

	dbDSN := stringEnv(source, "DB_DSN", "")
	if driver == DriverMySQL && dbDSN == "" {
		return Config{}, errors.New("DB_DSN is required for the mysql driver")
	}

	cacheTTL, err := parseDurationEnv(source, "CACHE_TTL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	notifyInterval, err := parseDurationEnv(source, "NOTIFY_INTERVAL", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	if notifyInterval <= 0 {
		return Config{}, errors.New("invalid NOTIFY_INTERVAL: must be positive")
	}
	strict, err := parseBoolEnv(source, "LEDGER_STRICT_TRANSITIONS", false)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	corsOrigins := parseList(source, "CORS_ORIGINS")
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	return Config{
		HTTPAddr:          stringEnv(source, "HTTP_ADDR", ":8080"),
		DBDriver:          driver,
		SQLitePath:        stringEnv(source, "SQLITE_PATH", "data/devconsole.db"),
		DBDSN:             dbDSN,
		RedisAddr:         stringEnv(source, "REDIS_ADDR", ""),
		CacheTTL:          cacheTTL,
		OtelEndpoint:      stringEnv(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		KafkaBrokers:      parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:        stringEnv(source, "KAFKA_TOPIC", "devconsole-events"),
		KafkaGroupID:      stringEnv(source, "KAFKA_GROUP_ID", "devconsole-tail"),
		NotifyInterval:    notifyInterval,
		StrictTransitions: strict,
		CORSOrigins:       corsOrigins,
		SeedFile:          stringEnv(source, "SEED_FILE", ""),
		LogLevel:          stringEnv(source, "LOG_LEVEL", "info"),
		LogFormat:         stringEnv(source, "LOG_FORMAT", "text"),
		LogFile:           stringEnv(source, "LOG_FILE", ""),
		LogMaxSizeMB:      logMaxSize,
		LogMaxBackups:     logMaxBackups,
	}, nil
}

func stringEnv(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseBoolEnv(source EnvSource, key string, defaultValue bool) (bool, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
