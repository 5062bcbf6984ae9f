package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// BillingConfig holds the date and scheduling rules of the charge ledger.
type BillingConfig struct {
	Rent  RentConfig `mapstructure:"rent"`
	Fine  FineConfig `mapstructure:"fine"`
	Locks LockConfig `mapstructure:"locks"`
}

type RentConfig struct {
	DueDay           int    `mapstructure:"due_day"`
	Schedule         string `mapstructure:"schedule"`
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
}

type FineConfig struct {
	DueDay int `mapstructure:"due_day"`
}

// LockConfig bounds how long a mutation waits for a keyed lock.
type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Rent: RentConfig{
			DueDay:           5,
			Schedule:         "0 3 1 * *",
			BatchConcurrency: 4,
		},
		Fine: FineConfig{
			DueDay: 10,
		},
		Locks: LockConfig{
			Timeout: 5 * time.Second,
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig

	mu        sync.Mutex
	listeners []func(BillingConfig)
}

// NewStaticBillingConfigHolder returns a holder that does not watch a file.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(appCfg Config) (*BillingConfigHolder, error) {
	v := viper.New()

	if appCfg.BillingConfigPath != "" {
		v.SetConfigFile(appCfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/condoledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CONDOLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.rent.due_day", defaults.Rent.DueDay)
	v.SetDefault("billing.rent.schedule", defaults.Rent.Schedule)
	v.SetDefault("billing.rent.batch_concurrency", defaults.Rent.BatchConcurrency)
	v.SetDefault("billing.fine.due_day", defaults.Fine.DueDay)
	v.SetDefault("billing.locks.timeout", defaults.Locks.Timeout)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			if err := holder.Update(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// Update validates and stores cfg, then calls every OnChange listener.
func (h *BillingConfigHolder) Update(cfg BillingConfig) error {
	if err := ValidateBillingConfig(cfg); err != nil {
		return err
	}
	h.mu.Lock()
	h.current.Store(cfg)
	listeners := append([]func(BillingConfig){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnChange registers fn to run after each successful Update.
func (h *BillingConfigHolder) OnChange(fn func(BillingConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if cfg.Rent.DueDay < 1 || cfg.Rent.DueDay > 31 {
		return fmt.Errorf("billing.rent.due_day must be between 1 and 31, got %d", cfg.Rent.DueDay)
	}
	if cfg.Fine.DueDay < 1 || cfg.Fine.DueDay > 31 {
		return fmt.Errorf("billing.fine.due_day must be between 1 and 31, got %d", cfg.Fine.DueDay)
	}
	if cfg.Rent.BatchConcurrency < 1 {
		return errors.New("billing.rent.batch_concurrency must be positive")
	}
	if _, err := cron.ParseStandard(cfg.Rent.Schedule); err != nil {
		return fmt.Errorf("billing.rent.schedule: %w", err)
	}
	if cfg.Locks.Timeout <= 0 {
		return errors.New("billing.locks.timeout must be positive")
	}
	return nil
}
