package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration for a network node. Everything the
// protocol leaves as a deployment choice (TTLs, leeway, timeouts) lives here
// so tests and operators can override it without touching code.
type Config struct {
	Server    Server
	Identity  Identity
	Registry  Registry
	Redis     Redis
	Postgres  Postgres
	Protocol  Protocol
	Gateway   Gateway
	Correlate Correlate
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Identity describes this node's network identity and signing material.
type Identity struct {
	SubscriberID  string
	SubscriberURL string
	// UniqueKeyID versions the signing key pair in the registry.
	UniqueKeyID string
	// SigningPrivateKey is the base64-encoded Ed25519 private key.
	SigningPrivateKey string
	// Type is the participant role: BAP, BPP or BG.
	Type string
}

// Registry configures the upstream registry client and its cache. BaseURL
// overrides the per-environment default when set.
type Registry struct {
	Environment   string
	BaseURL       string
	LookupTimeout time.Duration
	CacheTTL      time.Duration
}

// registryURLs maps network environments to their registry endpoints.
var registryURLs = map[string]string{
	"staging": "https://staging.registry.ondc.org",
	"preprod": "https://preprod.registry.ondc.org/ondc",
	"prod":    "https://prod.registry.ondc.org",
}

// Redis configures the optional shared registry cache. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres configures the optional durable audit log. Empty URL disables it.
type Postgres struct {
	URL string
}

// Protocol holds envelope defaults and signature validation windows.
type Protocol struct {
	Country     string
	City        string
	CoreVersion string
	// AllowedDomains restricts which network domains this node serves.
	// Empty means all.
	AllowedDomains []string
	// SearchTTL bounds discovery fan-out aggregation; OrderTTL covers the
	// longer order-lifecycle actions.
	SearchTTL time.Duration
	OrderTTL  time.Duration
	// AuthValidity is the created->expires window stamped on outbound
	// signature headers.
	AuthValidity time.Duration
	// ClockSkewLeeway is applied symmetrically to both bounds when
	// validating inbound signature headers.
	ClockSkewLeeway time.Duration
	// StrictTimestamps rejects inbound contexts older than FreshnessWindow.
	// Disabled outside production: conformance harnesses replay requests
	// with original timestamps that can be hours old.
	StrictTimestamps bool
	FreshnessWindow  time.Duration
}

// Gateway configures discovery routing: where this node sends its own
// search requests, and the fan-out bounds when this node is the gateway.
type Gateway struct {
	// URL is the network gateway outbound search requests go through.
	URL         string
	FanoutLimit int
	EdgeTimeout time.Duration
}

// Correlate configures the callback correlator.
type Correlate struct {
	// Grace is how long terminal correlation entries linger to absorb
	// late duplicate callbacks before eviction.
	Grace time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	env := envStr("BECKNET_ENV", "staging")
	return Config{
		Server: Server{
			Addr: envStr("BECKNET_ADDR", ":8080"),
		},
		Identity: Identity{
			SubscriberID:      os.Getenv("BECKNET_SUBSCRIBER_ID"),
			SubscriberURL:     os.Getenv("BECKNET_SUBSCRIBER_URL"),
			UniqueKeyID:       envStr("BECKNET_UNIQUE_KEY_ID", "key1"),
			SigningPrivateKey: os.Getenv("BECKNET_SIGNING_PRIVATE_KEY"),
			Type:              envStr("BECKNET_PARTICIPANT_TYPE", "BPP"),
		},
		Registry: Registry{
			Environment:   env,
			BaseURL:       envStr("BECKNET_REGISTRY_URL", registryURLs[env]),
			LookupTimeout: envDur("BECKNET_REGISTRY_TIMEOUT", 10*time.Second),
			CacheTTL:      envDur("BECKNET_REGISTRY_CACHE_TTL", time.Hour),
		},
		Redis: Redis{
			URL:          os.Getenv("BECKNET_REDIS_URL"),
			PoolSize:     envInt("BECKNET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("BECKNET_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDur("BECKNET_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("BECKNET_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("BECKNET_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			URL: os.Getenv("BECKNET_POSTGRES_URL"),
		},
		Protocol: Protocol{
			AllowedDomains:   envList("BECKNET_ALLOWED_DOMAINS"),
			Country:          envStr("BECKNET_COUNTRY", "IND"),
			City:             envStr("BECKNET_CITY", "std:080"),
			CoreVersion:      envStr("BECKNET_CORE_VERSION", "1.2.0"),
			SearchTTL:        envDur("BECKNET_SEARCH_TTL", 30*time.Second),
			OrderTTL:         envDur("BECKNET_ORDER_TTL", 30*time.Minute),
			AuthValidity:     envDur("BECKNET_AUTH_VALIDITY", 5*time.Minute),
			ClockSkewLeeway:  envDur("BECKNET_CLOCK_SKEW_LEEWAY", 5*time.Second),
			StrictTimestamps: os.Getenv("BECKNET_STRICT_TIMESTAMPS") == "true",
			FreshnessWindow:  envDur("BECKNET_FRESHNESS_WINDOW", 5*time.Minute),
		},
		Gateway: Gateway{
			URL:         os.Getenv("BECKNET_GATEWAY_URL"),
			FanoutLimit: envInt("BECKNET_FANOUT_LIMIT", 16),
			EdgeTimeout: envDur("BECKNET_EDGE_TIMEOUT", 10*time.Second),
		},
		Correlate: Correlate{
			Grace: envDur("BECKNET_CORRELATION_GRACE", 30*time.Second),
		},
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
