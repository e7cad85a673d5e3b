package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/configparser"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode     types.ServiceMode `mapstructure:"mode"`
		LogLevel string            `mapstructure:"log_level"`

		Redis    RedisConfig    `mapstructure:"redis"`
		RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
		Database DatabaseConfig `mapstructure:"database"`
		Services ServicesConfig `mapstructure:"services"`
		Grid     GridConfig     `mapstructure:"grid"`
		Dispatch DispatchConfig `mapstructure:"dispatch"`
		Sweeper  SweeperConfig  `mapstructure:"sweeper"`
		Pricing  PricingConfig  `mapstructure:"pricing"`
	}

	RedisConfig struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	RabbitMQConfig struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Queue    string `mapstructure:"queue"`
		Prefetch int    `mapstructure:"prefetch"`
	}

	// DatabaseConfig configures the dispatch outcome store. When disabled,
	// outcomes are only logged.
	DatabaseConfig struct {
		Enabled     bool   `mapstructure:"enabled"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
		Host        string `mapstructure:"host"`
		Port        string `mapstructure:"port"`
		User        string `mapstructure:"user"`
		Password    string `mapstructure:"password"`
		Database    string `mapstructure:"database"`

		MaxConns        int32         `mapstructure:"max_conns"`
		MinConns        int32         `mapstructure:"min_conns"`
		MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	}

	ServicesConfig struct {
		APIService      string `mapstructure:"api_service"`
		DispatchService string `mapstructure:"dispatch_service"`
		GatewayService  string `mapstructure:"gateway_service"`
	}

	GridConfig struct {
		Width  int `mapstructure:"width"`
		Height int `mapstructure:"height"`
	}

	DispatchConfig struct {
		MaxSearchRadius int           `mapstructure:"max_search_radius"`
		DriverLockTTL   time.Duration `mapstructure:"driver_lock_ttl"`
		ProposalTimeout time.Duration `mapstructure:"proposal_timeout"`
		SnapshotTTL     time.Duration `mapstructure:"snapshot_ttl"`
		MaxRetries      int           `mapstructure:"max_retries"`
		Workers         int           `mapstructure:"workers"`
		ReadBlock       time.Duration `mapstructure:"read_block"`
		ErrorBackoff    time.Duration `mapstructure:"error_backoff"`

		EventLog             types.EventLogDriver `mapstructure:"event_log"`
		Stream               string               `mapstructure:"stream"`
		Group                string               `mapstructure:"group"`
		ConsumerPrefix       string               `mapstructure:"consumer_prefix"`
		NotificationsChannel string               `mapstructure:"notifications_channel"`
	}

	SweeperConfig struct {
		IdleInterval time.Duration `mapstructure:"idle_interval"`
		ErrorBackoff time.Duration `mapstructure:"error_backoff"`
		BatchSize    int           `mapstructure:"batch_size"`
	}

	PricingConfig struct {
		BaseFare       float64 `mapstructure:"base_fare"`
		PerCell        float64 `mapstructure:"per_cell"`
		SecondsPerCell float64 `mapstructure:"seconds_per_cell"`
	}
)

func defaults() map[string]any {
	return map[string]any{
		"mode":      "",
		"log_level": "INFO",

		"redis.addr":     "localhost:6379",
		"redis.password": "",
		"redis.db":       0,

		"rabbitmq.host":     "localhost",
		"rabbitmq.port":     "5672",
		"rabbitmq.user":     "guest",
		"rabbitmq.password": "guest",
		"rabbitmq.queue":    "order_events",
		"rabbitmq.prefetch": 1,

		"database.enabled":            false,
		"database.auto_migrate":       false,
		"database.host":               "localhost",
		"database.port":               "5432",
		"database.user":               "dispatch_user",
		"database.password":           "dispatch_pass",
		"database.database":           "dispatch_db",
		"database.max_conns":          20,
		"database.min_conns":          2,
		"database.max_conn_lifetime":  "30m",
		"database.max_conn_idle_time": "5m",

		"services.api_service":      "3000",
		"services.dispatch_service": "3001",
		"services.gateway_service":  "3002",

		"grid.width":  100,
		"grid.height": 100,

		"dispatch.max_search_radius":     20,
		"dispatch.driver_lock_ttl":       "30s",
		"dispatch.proposal_timeout":      "25s",
		"dispatch.snapshot_ttl":          "1h",
		"dispatch.max_retries":           5,
		"dispatch.workers":               1,
		"dispatch.read_block":            "5s",
		"dispatch.error_backoff":         "5s",
		"dispatch.event_log":             string(types.EventLogRedis),
		"dispatch.stream":                "order_events",
		"dispatch.group":                 "matching_group",
		"dispatch.consumer_prefix":       "dispatcher",
		"dispatch.notifications_channel": "driver_notifications",

		"sweeper.idle_interval": "1s",
		"sweeper.error_backoff": "5s",
		"sweeper.batch_size":    100,

		"pricing.base_fare":        50.0,
		"pricing.per_cell":         5.0,
		"pricing.seconds_per_cell": 10.0,
	}
}

// NewConfig loads the configuration from filepath (optional), defaults and
// environment, then validates it. mode overrides the configured mode when set.
func NewConfig(filepath string, mode string) (*Config, error) {
	cfg := &Config{}

	if err := configparser.Load(filepath, defaults(), cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	if mode != "" {
		cfg.Mode = types.ServiceMode(mode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values the engine cannot run with. Mode is checked only when set.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Mode == "" || c.Mode.Valid(), "unknown mode %q", c.Mode)
	check(logger.ValidateLogLevel(c.LogLevel), "unknown log_level %q", c.LogLevel)
	check(c.Grid.Width > 0 && c.Grid.Height > 0, "grid must be positive, got %dx%d", c.Grid.Width, c.Grid.Height)
	check(c.Dispatch.MaxSearchRadius >= 0, "dispatch.max_search_radius must not be negative")
	check(c.Dispatch.ProposalTimeout > 0, "dispatch.proposal_timeout must be positive")
	check(c.Dispatch.DriverLockTTL >= c.Dispatch.ProposalTimeout,
		"dispatch.driver_lock_ttl (%s) must not be shorter than dispatch.proposal_timeout (%s)",
		c.Dispatch.DriverLockTTL, c.Dispatch.ProposalTimeout)
	check(c.Dispatch.SnapshotTTL >= c.Dispatch.ProposalTimeout, "dispatch.snapshot_ttl must not be shorter than dispatch.proposal_timeout")
	check(c.Dispatch.MaxRetries >= 0, "dispatch.max_retries must not be negative")
	check(c.Dispatch.Workers > 0, "dispatch.workers must be positive")
	check(c.Dispatch.ReadBlock > 0, "dispatch.read_block must be positive")
	check(c.Dispatch.EventLog == types.EventLogRedis || c.Dispatch.EventLog == types.EventLogRabbitMQ,
		"unknown dispatch.event_log %q", c.Dispatch.EventLog)
	check(c.Sweeper.IdleInterval > 0, "sweeper.idle_interval must be positive")
	check(c.Sweeper.BatchSize > 0, "sweeper.batch_size must be positive")
	check(c.Pricing.BaseFare >= 0 && c.Pricing.PerCell >= 0 && c.Pricing.SecondsPerCell >= 0, "pricing must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) GridModel() models.Grid {
	return models.Grid{Width: c.Grid.Width, Height: c.Grid.Height}
}

func (c RedisConfig) GetAddr() string     { return c.Addr }
func (c RedisConfig) GetPassword() string { return c.Password }
func (c RedisConfig) GetDB() int          { return c.DB }

// GetDSN carries the pool settings as pgxpool connection string parameters.
func (c DatabaseConfig) GetDSN() string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	q.Set("pool_max_conns", strconv.Itoa(int(c.MaxConns)))
	q.Set("pool_min_conns", strconv.Itoa(int(c.MinConns)))
	q.Set("pool_max_conn_lifetime", c.MaxConnLifetime.String())
	q.Set("pool_max_conn_idle_time", c.MaxConnIdleTime.String())

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// GetMigrationDSN is GetDSN without the pool parameters, which the migrate driver rejects.
func (c DatabaseConfig) GetMigrationDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c RabbitMQConfig) GetDSN() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/",
	}
	return u.String()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	const mask = "******"
	if c.Redis.Password != "" {
		c.Redis.Password = mask
	}
	if c.RabbitMQ.Password != "" {
		c.RabbitMQ.Password = mask
	}
	if c.Database.Password != "" {
		c.Database.Password = mask
	}
	return c
}
