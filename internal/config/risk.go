package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RiskConfig carries the operational knobs of the risk scheduler. Scoring
// constants (grace period, time multipliers, smoothing alpha) are code-level
// on purpose and do not belong here.
type RiskConfig struct {
	RunInterval           time.Duration `mapstructure:"runInterval"`
	AssessmentInterval    time.Duration `mapstructure:"assessmentInterval"`
	InterHouseDelay       time.Duration `mapstructure:"interHouseDelay"`
	BatchSize             int           `mapstructure:"batchSize"`
	CleanupInterval       time.Duration `mapstructure:"cleanupInterval"`
	WeeklyRetentionMonths int           `mapstructure:"weeklyRetentionMonths"`
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		RunInterval:           time.Hour,
		AssessmentInterval:    7 * 24 * time.Hour,
		InterHouseDelay:       250 * time.Millisecond,
		BatchSize:             100,
		CleanupInterval:       24 * time.Hour,
		WeeklyRetentionMonths: 6,
	}
}

// RiskConfigHolder hot-reloads risk.yml so retention and pacing can be tuned
// without a redeploy.
type RiskConfigHolder struct {
	current atomic.Value // holds RiskConfig
}

func NewRiskConfigHolder() (*RiskConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("risk")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/splitnest/config")
	v.AddConfigPath("/etc/splitnest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPLITNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRiskConfig()
	v.SetDefault("risk.runInterval", defaults.RunInterval)
	v.SetDefault("risk.assessmentInterval", defaults.AssessmentInterval)
	v.SetDefault("risk.interHouseDelay", defaults.InterHouseDelay)
	v.SetDefault("risk.batchSize", defaults.BatchSize)
	v.SetDefault("risk.cleanupInterval", defaults.CleanupInterval)
	v.SetDefault("risk.weeklyRetentionMonths", defaults.WeeklyRetentionMonths)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg RiskConfig
	if err := v.UnmarshalKey("risk", &cfg); err != nil {
		return nil, err
	}
	if err := validateRiskConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RiskConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RiskConfig
		if err := v.UnmarshalKey("risk", &updated); err != nil {
			log.Printf("[risk-config] reload failed: %v", err)
			return
		}
		if err := validateRiskConfig(updated); err != nil {
			log.Printf("[risk-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[risk-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RiskConfigHolder) Get() RiskConfig {
	return h.current.Load().(RiskConfig)
}

// NewStaticRiskConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticRiskConfigHolder(cfg RiskConfig) *RiskConfigHolder {
	holder := &RiskConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateRiskConfig(cfg RiskConfig) error {
	if cfg.RunInterval <= 0 {
		return errors.New("risk.runInterval must be positive")
	}
	if cfg.AssessmentInterval <= 0 {
		return errors.New("risk.assessmentInterval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("risk.batchSize must be positive")
	}
	if cfg.WeeklyRetentionMonths <= 0 {
		return errors.New("risk.weeklyRetentionMonths must be positive")
	}
	return nil
}
