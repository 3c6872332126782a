package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type config struct {
	listenAddr  string
	upstreamURL string

	rateEnabled   bool
	defaultPolicy domain.Policy
	routes        []routeBinding
	whitelist     domain.Whitelist
	perRoute      bool
	keyHeader     string
	trustXFF      bool
	keyPrefix     string

	storeBackend  string
	redisAddr     string
	redisPassword string
	redisDB       int
	storeTimeout  time.Duration
	retryBackoff  time.Duration
	healthEvery   time.Duration

	rateStatsEnabled   bool
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool
}

// routeBinding associa um padrão de rota do chi a uma policy nomeada.
type routeBinding struct {
	pattern    string
	policyName string
	policy     domain.Policy
}

// policiesFile é o formato do RATE_POLICIES_FILE.
type policiesFile struct {
	Policies map[string]struct {
		WindowSeconds yamlInt `yaml:"window_seconds"`
		MaxRequests   yamlInt `yaml:"max_requests"`
	} `yaml:"policies"`
	Routes []struct {
		Pattern string `yaml:"pattern"`
		Policy  string `yaml:"policy"`
	} `yaml:"routes"`
	Whitelist []string `yaml:"whitelist"`
}

// yamlInt aceita apenas escalares !!int; o yaml.v3 truncaria um float
// decodificado direto num int.
type yamlInt string

func (v *yamlInt) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return fmt.Errorf("line %d: expected an integer, got %s %q", n.Line, n.ShortTag(), n.Value)
	}
	*v = yamlInt(n.Value)
	return nil
}

func readConfig() (config, error) {
	// .env é opcional
	_ = godotenv.Load()

	cfg := config{}
	env := &envReader{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.rateEnabled = env.bool("RATE_ENABLED", true)

	policy, err := domain.ParsePolicy(getenvDefault("RATE_WINDOW_SECONDS", "60"), getenvDefault("RATE_MAX_REQUESTS", "5"))
	if err != nil {
		return config{}, fmt.Errorf("RATE_WINDOW_SECONDS/RATE_MAX_REQUESTS: %w", err)
	}
	cfg.defaultPolicy = policy

	cfg.perRoute = env.bool("RATE_PER_ROUTE", false)
	cfg.keyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = env.bool("TRUST_XFF", false)
	cfg.keyPrefix = getenvDefault("RATE_KEY_PREFIX", "ratelimit")
	whitelist := splitList(os.Getenv("RATE_WHITELIST"))

	if path := strings.TrimSpace(os.Getenv("RATE_POLICIES_FILE")); path != "" {
		pf, err := loadPoliciesFile(path)
		if err != nil {
			return config{}, err
		}
		routes, def, err := pf.bind(cfg.defaultPolicy)
		if err != nil {
			return config{}, fmt.Errorf("%s: %w", path, err)
		}
		cfg.routes = routes
		cfg.defaultPolicy = def
		whitelist = append(whitelist, pf.Whitelist...)
	}
	cfg.whitelist = domain.NewWhitelist(whitelist...)

	cfg.storeBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "redis"))
	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = env.int("REDIS_DB", 0)
	cfg.storeTimeout = env.duration("STORE_TIMEOUT", 250*time.Millisecond)
	cfg.retryBackoff = env.duration("STORE_RETRY_BACKOFF", 5*time.Second)
	cfg.healthEvery = env.duration("STORE_HEALTH_INTERVAL", 2*time.Second)

	cfg.rateStatsEnabled = env.bool("RATE_STATS_ENABLED", false)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = env.duration("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = env.bool("RATE_STATS_TRACK_KEYS", false)
	if env.err != nil {
		return config{}, env.err
	}

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.storeBackend != "redis" && cfg.storeBackend != "memory" {
		return config{}, fmt.Errorf("STORE_BACKEND must be redis or memory, got %q", cfg.storeBackend)
	}
	if cfg.storeBackend == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	if cfg.storeTimeout <= 0 {
		return config{}, errors.New("STORE_TIMEOUT must be > 0")
	}
	if cfg.retryBackoff <= 0 {
		return config{}, errors.New("STORE_RETRY_BACKOFF must be > 0")
	}
	return cfg, nil
}

func loadPoliciesFile(path string) (policiesFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return policiesFile{}, fmt.Errorf("RATE_POLICIES_FILE: %w", err)
	}
	defer f.Close()

	var pf policiesFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return policiesFile{}, fmt.Errorf("RATE_POLICIES_FILE %s: %w: %w", path, domain.ErrInvalidPolicy, err)
	}
	return pf, nil
}

// bind valida as policies e resolve as rotas. Uma policy chamada "default"
// substitui a policy vinda do ambiente.
func (pf policiesFile) bind(fallback domain.Policy) ([]routeBinding, domain.Policy, error) {
	named := make(map[string]domain.Policy, len(pf.Policies))
	for name, raw := range pf.Policies {
		p, err := domain.ParsePolicy(string(raw.WindowSeconds), string(raw.MaxRequests))
		if err != nil {
			return nil, domain.Policy{}, fmt.Errorf("policy %q: %w", name, err)
		}
		named[name] = p
	}
	if p, ok := named["default"]; ok {
		fallback = p
	}

	routes := make([]routeBinding, 0, len(pf.Routes))
	for _, rt := range pf.Routes {
		pattern := strings.TrimSpace(rt.Pattern)
		if !strings.HasPrefix(pattern, "/") {
			return nil, domain.Policy{}, fmt.Errorf("route pattern %q must start with /", rt.Pattern)
		}
		p, ok := named[rt.Policy]
		if !ok {
			return nil, domain.Policy{}, fmt.Errorf("route %s: unknown policy %q: %w", pattern, rt.Policy, domain.ErrInvalidPolicy)
		}
		// "/*" é a rota padrão do gateway
		if pattern == "/*" {
			fallback = p
			continue
		}
		routes = append(routes, routeBinding{pattern: pattern, policyName: rt.Policy, policy: p})
	}
	return routes, fallback, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// envReader lê variáveis tipadas e guarda o primeiro erro de parse: valor
// vazio usa o padrão, valor inválido falha o startup.
type envReader struct {
	err error
}

func (e *envReader) lookup(k string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(k))
	return v, v != "" && e.err == nil
}

func (e *envReader) fail(k, v string, err error) {
	e.err = fmt.Errorf("%s=%q: %w", k, v, err)
}

func (e *envReader) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}
