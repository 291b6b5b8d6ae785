package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "ADMISSION"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Store       StoreConfig       `mapstructure:"store"`
	Admission   AdmissionConfig   `mapstructure:"admission"`
	Cooldown    CooldownConfig    `mapstructure:"cooldown"`
	Throttle    ThrottleConfig    `mapstructure:"throttle"`
	Routes      []RouteConfig     `mapstructure:"routes"`
	Fallback    FallbackConfig    `mapstructure:"fallback"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout precisa ser maior que throttle.max_delay.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UpstreamConfig struct {
	URL string `mapstructure:"url"`
}

type StoreConfig struct {
	URL         string        `mapstructure:"url"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Timeout limita cada chamada feita durante a admissão.
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type AdmissionConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ClientHeader       string `mapstructure:"client_header"`
	TrustXForwardedFor bool   `mapstructure:"trust_x_forwarded_for"`
	FailurePolicy      string `mapstructure:"failure_policy"`
	ArmPolicy          string `mapstructure:"arm_policy"`
	AllowOrigin        string `mapstructure:"allow_origin"`
}

type CooldownConfig struct {
	Penalty time.Duration `mapstructure:"penalty"`
}

type ThrottleConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Threshold int64         `mapstructure:"threshold"`
	UnitDelay time.Duration `mapstructure:"unit_delay"`
	Window    time.Duration `mapstructure:"window"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

type RouteConfig struct {
	Method  string        `mapstructure:"method"`
	Pattern string        `mapstructure:"pattern"`
	Limit   int64         `mapstructure:"limit"`
	Period  time.Duration `mapstructure:"period"`
}

type FallbackConfig struct {
	// RPS <= 0 desliga o limitador local.
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type ConcurrencyConfig struct {
	Max            int           `mapstructure:"max"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

type StatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"`
	TrackKeys bool          `mapstructure:"track_keys"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("upstream.url", "")

	v.SetDefault("store.url", "")
	v.SetDefault("store.addr", "localhost:6379")
	v.SetDefault("store.password", "")
	v.SetDefault("store.db", 0)
	v.SetDefault("store.pool_size", 10)
	v.SetDefault("store.dial_timeout", "2s")
	v.SetDefault("store.timeout", "250ms")
	v.SetDefault("store.key_prefix", "admission")

	v.SetDefault("admission.enabled", true)
	v.SetDefault("admission.client_header", "")
	v.SetDefault("admission.trust_x_forwarded_for", false)
	v.SetDefault("admission.failure_policy", string(domain.FailOpen))
	v.SetDefault("admission.arm_policy", string(domain.ArmPostForward))
	v.SetDefault("admission.allow_origin", "*")

	v.SetDefault("cooldown.penalty", "3m")

	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.threshold", 5)
	v.SetDefault("throttle.unit_delay", "2s")
	v.SetDefault("throttle.window", "2m")
	v.SetDefault("throttle.max_delay", "30s")

	routes := make([]map[string]any, 0, len(domain.DefaultQuotaTable()))
	for _, rq := range domain.DefaultQuotaTable() {
		routes = append(routes, map[string]any{
			"method":  rq.Method,
			"pattern": rq.Pattern,
			"limit":   rq.Quota.Limit,
			"period":  rq.Quota.Period.String(),
		})
	}
	v.SetDefault("routes", routes)

	v.SetDefault("fallback.rps", 0)
	v.SetDefault("fallback.burst", 5)
	v.SetDefault("fallback.idle_ttl", "15m")

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.acquire_timeout", "0s")

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.prefix", "admission:stats")
	v.SetDefault("stats.ttl", "24h")
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_keys", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// newViper monta as camadas: defaults -> arquivo -> env (ADMISSION_*).
// REDIS_URL e UPSTREAM_URL são aceitas sem prefixo.
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("store.url", envPrefix+"_STORE_URL", "REDIS_URL")
	_ = v.BindEnv("upstream.url", envPrefix+"_UPSTREAM_URL", "UPSTREAM_URL")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("admission")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := domain.ParseFailurePolicy(c.Admission.FailurePolicy); err != nil {
		return fmt.Errorf("admission.failure_policy: %w", err)
	}
	if _, err := domain.ParseArmPolicy(c.Admission.ArmPolicy); err != nil {
		return fmt.Errorf("admission.arm_policy: %w", err)
	}
	if err := c.QuotaTable().Validate(); err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	if err := c.ThrottlePolicy().Validate(); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	if err := c.validateThrottleBudget(); err != nil {
		return err
	}
	if c.Cooldown.Penalty <= 0 {
		return errors.New("cooldown.penalty must be > 0")
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be > 0")
	}
	if strings.TrimSpace(c.Store.URL) == "" && strings.TrimSpace(c.Store.Addr) == "" {
		return errors.New("store.url or store.addr is required")
	}
	if c.Concurrency.Max < 0 {
		return errors.New("concurrency.max must be >= 0")
	}
	if c.Fallback.RPS > 0 && c.Fallback.Burst <= 0 {
		return errors.New("fallback.burst must be > 0 when fallback.rps is set")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}

// ValidateServe cobre o que só o modo proxy exige.
func (c Config) ValidateServe() error {
	raw := strings.TrimSpace(c.Upstream.URL)
	if raw == "" {
		return errors.New("upstream.url is required (UPSTREAM_URL)")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid upstream.url %q", raw)
	}
	return nil
}

func (c Config) QuotaTable() domain.QuotaTable {
	t := make(domain.QuotaTable, 0, len(c.Routes))
	for _, r := range c.Routes {
		t = append(t, domain.RouteQuota{
			Method:  strings.ToUpper(strings.TrimSpace(r.Method)),
			Pattern: strings.TrimSpace(r.Pattern),
			Quota:   domain.Quota{Limit: r.Limit, Period: r.Period},
		})
	}
	return t
}

func (c Config) ThrottlePolicy() domain.ThrottlePolicy {
	if !c.Throttle.Enabled {
		return domain.ThrottlePolicy{}
	}
	return domain.ThrottlePolicy{
		Threshold: c.Throttle.Threshold,
		UnitDelay: c.Throttle.UnitDelay,
		Window:    c.Throttle.Window,
		MaxDelay:  c.Throttle.MaxDelay,
	}
}

// validateThrottleBudget: a requisição atrasada ainda precisa ser encaminhada
// e respondida dentro do WriteTimeout do servidor.
func (c Config) validateThrottleBudget() error {
	if !c.ThrottlePolicy().Enabled() || c.Server.WriteTimeout <= 0 {
		return nil
	}
	if c.Throttle.MaxDelay <= 0 {
		return errors.New("throttle.max_delay must be > 0 when server.write_timeout is set")
	}
	if c.Throttle.MaxDelay >= c.Server.WriteTimeout {
		return fmt.Errorf("throttle.max_delay (%s) must be below server.write_timeout (%s)",
			c.Throttle.MaxDelay, c.Server.WriteTimeout)
	}
	return nil
}
