package config

import (
	"fmt"
	"sort"
	"strings"
)

// normalizer maps case-insensitive user input onto a typed enum value.
type normalizer[T comparable] struct {
	name   string
	values map[string]T
	def    T
}

func newNormalizer[T comparable](name string, values map[string]T, def T) *normalizer[T] {
	return &normalizer[T]{name: name, values: values, def: def}
}

// Normalize returns the enum value for raw, or the default for empty/unknown input.
func (n *normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	return n.def
}

// Validate accepts empty input (meaning default) and known values.
func (n *normalizer[T]) Validate(raw string) error {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return nil
	}
	if _, ok := n.values[key]; ok {
		return nil
	}
	return fmt.Errorf("invalid %s %q (valid: %s)", n.name, raw, strings.Join(n.keys(), ", "))
}

func (n *normalizer[T]) keys() []string {
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = newNormalizer("log level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel { return logLevelNormalizer.Normalize(raw) }

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = newNormalizer("log format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat { return logFormatNormalizer.Normalize(raw) }

// RouterMode selects how route paths are encoded in generated links.
type RouterMode string

const (
	RouterModeHash    RouterMode = "hash"
	RouterModeHistory RouterMode = "history"
)

var routerModeNormalizer = newNormalizer("router mode", map[string]RouterMode{
	"hash":    RouterModeHash,
	"history": RouterModeHistory,
}, RouterModeHash)

// SourceType selects the transport used to fetch content.
type SourceType string

const (
	SourceHTTP SourceType = "http"
	SourceDir  SourceType = "dir"
	SourceGit  SourceType = "git"
)

var sourceTypeNormalizer = newNormalizer("source type", map[string]SourceType{
	"http":      SourceHTTP,
	"https":     SourceHTTP,
	"dir":       SourceDir,
	"directory": SourceDir,
	"local":     SourceDir,
	"git":       SourceGit,
}, SourceHTTP)

// CacheBackend selects where resolved embed streams are shared.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheNATS   CacheBackend = "nats"
	CacheSQLite CacheBackend = "sqlite"
)

var cacheBackendNormalizer = newNormalizer("cache backend", map[string]CacheBackend{
	"memory": CacheMemory,
	"redis":  CacheRedis,
	"nats":   CacheNATS,
	"sqlite": CacheSQLite,
}, CacheMemory)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = newNormalizer("retry backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

func NormalizeRetryBackoff(raw string) RetryBackoffMode { return retryBackoffNormalizer.Normalize(raw) }
