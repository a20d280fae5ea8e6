// Package config loads threadline's process configuration.
//
// Values are resolved with the usual precedence: explicitly set flags, then
// THREADLINE_* environment variables (a .env file in the working directory is
// loaded first), then threadline.toml, then flag defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/custodia-labs/threadline/internal/connectors/intercom"
	"github.com/custodia-labs/threadline/internal/core/domain"
)

const (
	// Name is used for the config file name, the env prefix and the home directory.
	Name = "threadline"

	redacted = "[REDACTED]"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config is the complete process configuration.
type Config struct {
	// DataDir holds the database, tenant settings and prompts.
	DataDir string `mapstructure:"data-dir"`

	Log       LogOptions       `mapstructure:"log"`
	Storage   StorageOptions   `mapstructure:"storage"`
	Server    ServerOptions    `mapstructure:"server"`
	Queue     QueueOptions     `mapstructure:"queue"`
	Intercom  IntercomOptions  `mapstructure:"intercom"`
	Pipeline  PipelineOptions  `mapstructure:"pipeline"`
	LLM       AIOptions        `mapstructure:"llm"`
	Embedding AIOptions        `mapstructure:"embedding"`
	Scheduler SchedulerOptions `mapstructure:"scheduler"`
	Telemetry TelemetryOptions `mapstructure:"telemetry"`
}

// LogOptions configures the process logger.
type LogOptions struct {
	Verbose bool   `mapstructure:"verbose"`
	Format  string `mapstructure:"format"`
}

// StorageOptions selects the document store.
type StorageOptions struct {
	Driver string `mapstructure:"driver"`
}

// ServerOptions configures the HTTP trigger server.
type ServerOptions struct {
	Addr string `mapstructure:"addr"`

	// JWTSecret verifies HS256 bearer tokens on /api routes.
	JWTSecret string `mapstructure:"jwt-secret"`

	// WebhookSecret enables X-Hub-Signature verification when set.
	WebhookSecret string `mapstructure:"webhook-secret"`

	// WebhookUser is recorded as CreatedBy for webhook imports.
	WebhookUser string `mapstructure:"webhook-user"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// QueueOptions selects where continuation jobs are handed off.
type QueueOptions struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db"`
	RedisKey      string `mapstructure:"redis-key"`

	// Workers is the number of dispatcher goroutines consuming the queue.
	Workers int `mapstructure:"workers"`
}

// IntercomOptions configures the provider client.
type IntercomOptions struct {
	BaseURL           string  `mapstructure:"base-url"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
	Burst             int     `mapstructure:"burst"`
}

// PipelineOptions mirrors domain.PipelinePolicy.
type PipelineOptions struct {
	PageSize         int           `mapstructure:"page-size"`
	MaxConcurrency   int           `mapstructure:"max-concurrency"`
	BatchDelay       time.Duration `mapstructure:"batch-delay"`
	ParticipantBatch int           `mapstructure:"participant-batch"`
	ParticipantDelay time.Duration `mapstructure:"participant-delay"`
	DetailTimeout    time.Duration `mapstructure:"detail-timeout"`
	CallTimeout      time.Duration `mapstructure:"call-timeout"`
	MaxPagesPerRun   int           `mapstructure:"max-pages-per-run"`
	SweepBatchSize   int           `mapstructure:"sweep-batch-size"`
	SweepDelay       time.Duration `mapstructure:"sweep-delay"`
	EmbedBatchSize   int           `mapstructure:"embed-batch-size"`
}

// AIOptions configures an LLM or embedding provider.
type AIOptions struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base-url"`
	APIKey   string `mapstructure:"api-key"`
}

// SchedulerOptions sets the maintenance intervals used by serve. Zero
// disables a task.
type SchedulerOptions struct {
	SweepInterval    time.Duration `mapstructure:"sweep-interval"`
	BackfillInterval time.Duration `mapstructure:"backfill-interval"`
}

// TelemetryOptions configures tracing.
type TelemetryOptions struct {
	// Enabled writes spans to stderr with the stdout exporter.
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service-name"`
}

// New returns a Config populated with defaults.
func New() *Config {
	policy := domain.DefaultPipelinePolicy()
	return &Config{
		DataDir: defaultDataDir(),
		Log:     LogOptions{Format: "console"},
		Storage: StorageOptions{Driver: DriverSQLite},
		Server: ServerOptions{
			Addr:            ":8080",
			WebhookUser:     "webhook",
			ShutdownTimeout: 10 * time.Second,
		},
		Queue: QueueOptions{Driver: DriverMemory, Workers: 1},
		Intercom: IntercomOptions{
			BaseURL:           intercom.DefaultBaseURL,
			RequestsPerSecond: intercom.ProactiveRate,
			Burst:             intercom.ProactiveBurst,
		},
		Pipeline: PipelineOptions{
			PageSize:         policy.PageSize,
			MaxConcurrency:   policy.MaxConcurrency,
			BatchDelay:       policy.BatchDelay,
			ParticipantBatch: policy.ParticipantBatch,
			ParticipantDelay: policy.ParticipantDelay,
			DetailTimeout:    policy.DetailTimeout,
			CallTimeout:      policy.CallTimeout,
			MaxPagesPerRun:   policy.MaxPagesPerRun,
			SweepBatchSize:   policy.SweepBatchSize,
			SweepDelay:       policy.SweepDelay,
			EmbedBatchSize:   policy.EmbedBatchSize,
		},
		LLM:       AIOptions{Provider: string(domain.AIProviderOpenAI)},
		Embedding: AIOptions{Provider: string(domain.AIProviderOpenAI)},
		Scheduler: SchedulerOptions{
			SweepInterval:    time.Hour,
			BackfillInterval: 15 * time.Minute,
		},
		Telemetry: TelemetryOptions{ServiceName: Name},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + Name
	}
	return filepath.Join(home, "."+Name)
}

// AddFlags registers every option on fs. Flag names match the config keys,
// so viper can bind them directly.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory for the database, tenant settings and prompts")

	fs.BoolVar(&c.Log.Verbose, "log.verbose", c.Log.Verbose, "Enable debug logging")
	fs.StringVar(&c.Log.Format, "log.format", c.Log.Format, "Log format: console or json")

	fs.StringVar(&c.Storage.Driver, "storage.driver", c.Storage.Driver, "Document store: sqlite or memory")

	fs.StringVar(&c.Server.Addr, "server.addr", c.Server.Addr, "HTTP listen address")
	fs.StringVar(&c.Server.JWTSecret, "server.jwt-secret", c.Server.JWTSecret,
		"HS256 secret for /api bearer tokens (prefer THREADLINE_SERVER_JWT_SECRET)")
	fs.StringVar(&c.Server.WebhookSecret, "server.webhook-secret", c.Server.WebhookSecret,
		"Secret for X-Hub-Signature verification (prefer THREADLINE_SERVER_WEBHOOK_SECRET)")
	fs.StringVar(&c.Server.WebhookUser, "server.webhook-user", c.Server.WebhookUser, "User recorded on webhook imports")
	fs.DurationVar(&c.Server.ShutdownTimeout, "server.shutdown-timeout", c.Server.ShutdownTimeout,
		"Grace period for in-flight requests on shutdown")

	fs.StringVar(&c.Queue.Driver, "queue.driver", c.Queue.Driver, "Job queue: memory or redis")
	fs.StringVar(&c.Queue.RedisAddr, "queue.redis-addr", c.Queue.RedisAddr, "Redis address for the redis queue")
	fs.StringVar(&c.Queue.RedisPassword, "queue.redis-password", c.Queue.RedisPassword,
		"Redis password (prefer THREADLINE_QUEUE_REDIS_PASSWORD)")
	fs.IntVar(&c.Queue.RedisDB, "queue.redis-db", c.Queue.RedisDB, "Redis database")
	fs.StringVar(&c.Queue.RedisKey, "queue.redis-key", c.Queue.RedisKey, "Redis list name")
	fs.IntVar(&c.Queue.Workers, "queue.workers", c.Queue.Workers, "Dispatcher workers")

	fs.StringVar(&c.Intercom.BaseURL, "intercom.base-url", c.Intercom.BaseURL, "Intercom API endpoint")
	fs.Float64Var(&c.Intercom.RequestsPerSecond, "intercom.requests-per-second", c.Intercom.RequestsPerSecond,
		"Proactive request rate per tenant (0 disables)")
	fs.IntVar(&c.Intercom.Burst, "intercom.burst", c.Intercom.Burst, "Proactive request burst")

	p := &c.Pipeline
	fs.IntVar(&p.PageSize, "pipeline.page-size", p.PageSize, "Conversations per provider page")
	fs.IntVar(&p.MaxConcurrency, "pipeline.max-concurrency", p.MaxConcurrency, "Parallel conversations per sub-batch")
	fs.DurationVar(&p.BatchDelay, "pipeline.batch-delay", p.BatchDelay, "Pause between sub-batches")
	fs.IntVar(&p.ParticipantBatch, "pipeline.participant-batch", p.ParticipantBatch, "Parallel participant lookups")
	fs.DurationVar(&p.ParticipantDelay, "pipeline.participant-delay", p.ParticipantDelay,
		"Pause between participant sub-batches")
	fs.DurationVar(&p.DetailTimeout, "pipeline.detail-timeout", p.DetailTimeout, "Timeout per conversation detail fetch")
	fs.DurationVar(&p.CallTimeout, "pipeline.call-timeout", p.CallTimeout,
		"Timeout per conversation page and participant lookup")
	fs.IntVar(&p.MaxPagesPerRun, "pipeline.max-pages-per-run", p.MaxPagesPerRun,
		"Pages per importer invocation before handing off (-1 for unbounded)")
	fs.IntVar(&p.SweepBatchSize, "pipeline.sweep-batch-size", p.SweepBatchSize, "Documents per sweep batch")
	fs.DurationVar(&p.SweepDelay, "pipeline.sweep-delay", p.SweepDelay, "Pause between sweep batches")
	fs.IntVar(&p.EmbedBatchSize, "pipeline.embed-batch-size", p.EmbedBatchSize, "Chunks per embedding request")

	addAIFlags(fs, "llm", &c.LLM)
	addAIFlags(fs, "embedding", &c.Embedding)

	fs.DurationVar(&c.Scheduler.SweepInterval, "scheduler.sweep-interval", c.Scheduler.SweepInterval,
		"How often serve sweeps every tenant for unprocessed documents (0 disables)")
	fs.DurationVar(&c.Scheduler.BackfillInterval, "scheduler.backfill-interval", c.Scheduler.BackfillInterval,
		"How often serve backfills missing embeddings (0 disables)")

	fs.BoolVar(&c.Telemetry.Enabled, "telemetry.enabled", c.Telemetry.Enabled, "Write trace spans to stderr")
	fs.StringVar(&c.Telemetry.ServiceName, "telemetry.service-name", c.Telemetry.ServiceName, "Trace service name")
}

func addAIFlags(fs *pflag.FlagSet, prefix string, o *AIOptions) {
	fs.StringVar(&o.Provider, prefix+".provider", o.Provider, prefix+" provider: openai or gemini")
	fs.StringVar(&o.Model, prefix+".model", o.Model, prefix+" model (provider default when empty)")
	fs.StringVar(&o.BaseURL, prefix+".base-url", o.BaseURL, prefix+" endpoint override")
	fs.StringVar(&o.APIKey, prefix+".api-key", o.APIKey,
		fmt.Sprintf("%s API key (prefer THREADLINE_%s_API_KEY)", prefix, strings.ToUpper(prefix)))
}

// Validate checks option values. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" && c.Storage.Driver == DriverSQLite {
		errs = append(errs, errors.New("data-dir is required for the sqlite store"))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Storage.Driver != DriverSQLite && c.Storage.Driver != DriverMemory {
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or memory, got %q", c.Storage.Driver))
	}
	switch c.Queue.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Queue.RedisAddr == "" {
			errs = append(errs, errors.New("queue.redis-addr is required for the redis queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.driver must be memory or redis, got %q", c.Queue.Driver))
	}
	if c.Queue.Workers < 1 {
		errs = append(errs, errors.New("queue.workers must be at least 1"))
	}
	if c.Intercom.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("intercom.requests-per-second must not be negative"))
	}
	if c.Pipeline.PageSize > intercom.MaxPageSize {
		errs = append(errs, fmt.Errorf("pipeline.page-size must be at most %d", intercom.MaxPageSize))
	}
	if c.Pipeline.DetailTimeout < 0 || c.Pipeline.CallTimeout < 0 {
		errs = append(errs, errors.New("pipeline timeouts must not be negative"))
	}
	if c.Scheduler.SweepInterval < 0 || c.Scheduler.BackfillInterval < 0 {
		errs = append(errs, errors.New("scheduler intervals must not be negative"))
	}
	for name, o := range map[string]AIOptions{"llm": c.LLM, "embedding": c.Embedding} {
		if o.Provider != "" && !domain.AIProvider(o.Provider).IsValid() {
			errs = append(errs, fmt.Errorf("%s.provider must be openai or gemini, got %q", name, o.Provider))
		}
	}

	return errors.Join(errs...)
}

// Policy converts the pipeline options into a domain policy with defaults applied.
func (c *Config) Policy() domain.PipelinePolicy {
	p := c.Pipeline
	return domain.PipelinePolicy{
		PageSize:         p.PageSize,
		MaxConcurrency:   p.MaxConcurrency,
		BatchDelay:       p.BatchDelay,
		ParticipantBatch: p.ParticipantBatch,
		ParticipantDelay: p.ParticipantDelay,
		DetailTimeout:    p.DetailTimeout,
		CallTimeout:      p.CallTimeout,
		MaxPagesPerRun:   p.MaxPagesPerRun,
		SweepBatchSize:   p.SweepBatchSize,
		SweepDelay:       p.SweepDelay,
		EmbedBatchSize:   p.EmbedBatchSize,
	}.WithDefaults()
}

// LLMSettings returns the LLM provider settings.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider: domain.AIProvider(c.LLM.Provider),
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
	}
}

// EmbeddingSettings returns the embedding provider settings.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider: domain.AIProvider(c.Embedding.Provider),
		Model:    c.Embedding.Model,
		BaseURL:  c.Embedding.BaseURL,
		APIKey:   c.Embedding.APIKey,
	}
}

// String returns a summary safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{data-dir=%s, storage=%s, queue=%s, server=%s, jwt-secret=%s, llm=%s/%s, embedding=%s/%s}",
		c.DataDir, c.Storage.Driver, c.Queue.Driver, c.Server.Addr, redact(c.Server.JWTSecret),
		c.LLM.Provider, redact(c.LLM.APIKey), c.Embedding.Provider, redact(c.Embedding.APIKey))
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}

// Load resolves the configuration. fs should have been populated by AddFlags on
// a Config created with New; a nil fs uses the defaults. configFile overrides
// the search path when set.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	if fs == nil {
		fs = pflag.NewFlagSet(Name, pflag.ContinueOnError)
		New().AddFlags(fs)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(Name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
