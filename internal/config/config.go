package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Crawl    CrawlConfig    `yaml:"crawl" mapstructure:"crawl"`
	Phases   PhasesConfig   `yaml:"phases" mapstructure:"phases"`
	Table    TableConfig    `yaml:"table" mapstructure:"table"`
	Patterns PatternsConfig `yaml:"patterns" mapstructure:"patterns"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-ledger database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures per-site crawling behavior shared by all phases.
type CrawlConfig struct {
	UserAgent     string   `yaml:"user_agent" mapstructure:"user_agent"`
	SettleDelayMs int      `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	PageDelayMs   int      `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	NavLinkLimit  int      `yaml:"nav_link_limit" mapstructure:"nav_link_limit"`
	PathGuesses   []string `yaml:"path_guesses" mapstructure:"path_guesses"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// SettleDelay returns the post-navigation settle delay.
func (c CrawlConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// PageDelay returns the politeness delay between page visits within a site.
func (c CrawlConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

// PhaseConfig is one stage of the adaptive retry schedule.
type PhaseConfig struct {
	Name                string `yaml:"-" mapstructure:"-"`
	Concurrency         int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize           int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutMs           int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	InterBatchDelaySecs int    `yaml:"inter_batch_delay_secs" mapstructure:"inter_batch_delay_secs"`
	MaxPagesPerSite     int    `yaml:"max_pages_per_site" mapstructure:"max_pages_per_site"`
}

// Timeout returns the per-page navigation timeout.
func (p PhaseConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// InterBatchDelay returns the pause between batches.
func (p PhaseConfig) InterBatchDelay() time.Duration {
	return time.Duration(p.InterBatchDelaySecs) * time.Second
}

// PhasesConfig holds the three scripted analysis phases.
type PhasesConfig struct {
	Aggressive        PhaseConfig `yaml:"aggressive" mapstructure:"aggressive"`
	ConservativeRetry PhaseConfig `yaml:"conservative_retry" mapstructure:"conservative_retry"`
	PatientRetry      PhaseConfig `yaml:"patient_retry" mapstructure:"patient_retry"`
}

// Sequence returns the phases in execution order with names populated.
func (p PhasesConfig) Sequence() []PhaseConfig {
	p.Aggressive.Name = "aggressive"
	p.ConservativeRetry.Name = "conservative_retry"
	p.PatientRetry.Name = "patient_retry"
	return []PhaseConfig{p.Aggressive, p.ConservativeRetry, p.PatientRetry}
}

// Validate enforces phase ordering: each retry phase runs narrower and
// more patient than the one before it.
func (p PhasesConfig) Validate() error {
	seq := p.Sequence()
	for _, phase := range seq {
		if phase.Concurrency <= 0 || phase.BatchSize <= 0 || phase.MaxPagesPerSite <= 0 {
			return eris.Errorf("config: phase %s has a non-positive setting", phase.Name)
		}
	}
	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		if cur.Concurrency >= prev.Concurrency {
			return eris.Errorf("config: phase %s concurrency %d must be below %s concurrency %d",
				cur.Name, cur.Concurrency, prev.Name, prev.Concurrency)
		}
		if cur.TimeoutMs <= prev.TimeoutMs {
			return eris.Errorf("config: phase %s timeout %dms must exceed %s timeout %dms",
				cur.Name, cur.TimeoutMs, prev.Name, prev.TimeoutMs)
		}
	}
	return nil
}

// TableConfig configures checkpoint and backup behavior of the state table.
type TableConfig struct {
	BackupEveryBatches int `yaml:"backup_every_batches" mapstructure:"backup_every_batches"`
}

// PatternsConfig points at an optional keyword-table override file.
type PatternsConfig struct {
	OverridePath string `yaml:"override_path" mapstructure:"override_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TOURSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.database_url", "tourscan.db")
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; TourScanBot/1.0)")
	v.SetDefault("crawl.settle_delay_ms", 3000)
	v.SetDefault("crawl.page_delay_ms", 1000)
	v.SetDefault("crawl.nav_link_limit", 10)
	v.SetDefault("crawl.path_guesses", []string{"/booking", "/book", "/tours", "/experiences", "/reserve", "/contact"})
	v.SetDefault("crawl.max_body_bytes", 2*1024*1024)
	v.SetDefault("phases.aggressive.concurrency", 45)
	v.SetDefault("phases.aggressive.batch_size", 80)
	v.SetDefault("phases.aggressive.timeout_ms", 45000)
	v.SetDefault("phases.aggressive.inter_batch_delay_secs", 30)
	v.SetDefault("phases.aggressive.max_pages_per_site", 3)
	v.SetDefault("phases.conservative_retry.concurrency", 20)
	v.SetDefault("phases.conservative_retry.batch_size", 40)
	v.SetDefault("phases.conservative_retry.timeout_ms", 75000)
	v.SetDefault("phases.conservative_retry.inter_batch_delay_secs", 60)
	v.SetDefault("phases.conservative_retry.max_pages_per_site", 5)
	v.SetDefault("phases.patient_retry.concurrency", 5)
	v.SetDefault("phases.patient_retry.batch_size", 10)
	v.SetDefault("phases.patient_retry.timeout_ms", 120000)
	v.SetDefault("phases.patient_retry.inter_batch_delay_secs", 120)
	v.SetDefault("phases.patient_retry.max_pages_per_site", 7)
	v.SetDefault("table.backup_every_batches", 5)
	v.SetDefault("patterns.override_path", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Phases.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
