package plugin

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxExcludePatterns bounds how many exclude_topics entries are honored;
// spec.md §7 names 64 as the overflow threshold.
const maxExcludePatterns = 64

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 50 * time.Millisecond
	defaultDBPath        = "./messages.db"
	defaultLookupSize    = 4096
)

// Config is the plugin's immutable, fully-populated configuration,
// resolved once from the host's option list at Init and never mutated
// afterward (spec.md §3 "Configuration").
type Config struct {
	ExcludeTopics    []string
	ExcludeHeaders   map[string]struct{}
	DisableHeaders   bool
	BatchSize        int
	FlushInterval    time.Duration
	RetentionHorizon time.Duration
	DBPath           string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	LogLevel         string
}

// Option is a single (key, value) pair from the host, exactly as
// spec.md §6 describes the init-time option list.
type Option struct {
	Key   string
	Value string
}

// ParseOptions resolves a Config from opts, applying the defaults and
// range checks spec.md §6 and §7 specify. Out-of-range or malformed
// values are logged once and the default is used instead — configuration
// errors are never fatal (spec.md §7).
func ParseOptions(opts []Option, log zerolog.Logger) Config {
	cfg := Config{
		ExcludeHeaders: make(map[string]struct{}),
		BatchSize:      defaultBatchSize,
		FlushInterval:  defaultFlushInterval,
		DBPath:         defaultDBPath,
		LogLevel:       "info",
	}

	for _, o := range opts {
		switch o.Key {
		case "exclude_topics":
			cfg.ExcludeTopics = splitCSV(o.Value)
			if len(cfg.ExcludeTopics) > maxExcludePatterns {
				log.Warn().
					Int("count", len(cfg.ExcludeTopics)).
					Int("max", maxExcludePatterns).
					Msg("exclude_topics exceeds maximum pattern count, ignoring excess")
				cfg.ExcludeTopics = cfg.ExcludeTopics[:maxExcludePatterns]
			}

		case "batch_size":
			n, err := strconv.Atoi(o.Value)
			if err != nil || n < 1 || n > 15000 {
				log.Warn().Str("value", o.Value).Msg("invalid batch_size, using default")
				continue
			}
			cfg.BatchSize = n

		case "flush_interval":
			n, err := strconv.Atoi(o.Value)
			if err != nil || n < 1 || n > 10000 {
				log.Warn().Str("value", o.Value).Msg("invalid flush_interval, using default")
				continue
			}
			cfg.FlushInterval = time.Duration(n) * time.Millisecond

		case "retention_days":
			n, err := strconv.Atoi(o.Value)
			if err != nil || n < 0 {
				log.Warn().Str("value", o.Value).Msg("invalid retention_days, using default")
				continue
			}
			cfg.RetentionHorizon = time.Duration(n) * 24 * time.Hour

		case "exclude_headers":
			names := splitCSV(o.Value)
			for _, n := range names {
				if n == "#" {
					cfg.DisableHeaders = true
					continue
				}
				cfg.ExcludeHeaders[n] = struct{}{}
			}

		case "db_path":
			if o.Value != "" {
				cfg.DBPath = o.Value
			}

		case "redis_addr":
			cfg.RedisAddr = o.Value
		case "redis_password":
			cfg.RedisPassword = o.Value
		case "redis_db":
			if n, err := strconv.Atoi(o.Value); err == nil {
				cfg.RedisDB = n
			}

		case "log_level":
			if o.Value != "" {
				cfg.LogLevel = o.Value
			}

		default:
			log.Debug().Str("key", o.Key).Msg("unrecognized option, ignoring")
		}
	}

	return cfg
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
