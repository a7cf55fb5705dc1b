package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/grouping"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Decode settings.
	DecodeWorkers   int
	DecodeTimeout   time.Duration
	DecodeCacheSize int // 0 disables the cache
	DecodeUnits     []domain.Units
	StationTypes    []int
	DataRoot        string

	// Grouping settings.
	MatchMode       grouping.MatchMode
	ResolveChannels bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("DECODE_WORKERS", "4")
	if err != nil {
		return nil, err
	}

	decodeTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DECODE_TIMEOUT", "30s"))
	if err != nil || decodeTimeout <= 0 {
		return nil, errors.New("invalid DECODE_TIMEOUT")
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("DECODE_CACHE_SIZE", "256"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid DECODE_CACHE_SIZE")
	}

	units, err := parseUnits(os.Getenv("DECODE_UNITS"))
	if err != nil {
		return nil, err
	}

	stationTypes, err := parseStationTypes(os.Getenv("VALID_STATION_TYPES"))
	if err != nil {
		return nil, err
	}

	mode, err := grouping.ParseMatchMode(os.Getenv("GROUP_MATCH_MODE"))
	if err != nil {
		return nil, fmt.Errorf("invalid GROUP_MATCH_MODE: %w", err)
	}

	resolve, err := strconv.ParseBool(sharedcfg.EnvOrDefault("GROUP_RESOLVE_CHANNELS", "false"))
	if err != nil {
		return nil, errors.New("invalid GROUP_RESOLVE_CHANNELS")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "strong-motion-files"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "recording-groups"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "strong-motion-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DecodeWorkers:   workers,
		DecodeTimeout:   decodeTimeout,
		DecodeCacheSize: cacheSize,
		DecodeUnits:     units,
		StationTypes:    stationTypes,
		DataRoot:        os.Getenv("DATA_ROOT"),

		MatchMode:       mode,
		ResolveChannels: resolve,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DataRoot != "" {
		if fi, err := os.Stat(cfg.DataRoot); err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("DATA_ROOT %q is not a directory", cfg.DataRoot)
		}
	}

	return cfg, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseUnits reads a comma list such as "acc,vel". Empty means all units.
func parseUnits(s string) ([]domain.Units, error) {
	var out []domain.Units
	for _, field := range splitList(s) {
		u, ok := domain.ParseUnits(field)
		if !ok {
			return nil, fmt.Errorf("invalid DECODE_UNITS: unknown units %q (want acc, vel or disp)", field)
		}
		out = append(out, u)
	}
	return out, nil
}

// parseStationTypes reads a comma list of integer COSMOS station-type codes.
func parseStationTypes(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid VALID_STATION_TYPES: %q is not an integer", field)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
