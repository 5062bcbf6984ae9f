package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateBillingConfig(DefaultBillingConfig()))
}

func TestValidateBillingConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BillingConfig)
	}{
		{"rent due day", func(c *BillingConfig) { c.Rent.DueDay = 0 }},
		{"fine due day", func(c *BillingConfig) { c.Fine.DueDay = 32 }},
		{"concurrency", func(c *BillingConfig) { c.Rent.BatchConcurrency = 0 }},
		{"schedule", func(c *BillingConfig) { c.Rent.Schedule = "every month" }},
		{"lock timeout", func(c *BillingConfig) { c.Locks.Timeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tc.mutate(&cfg)
			assert.Error(t, ValidateBillingConfig(cfg))
		})
	}
}

func TestNewBillingConfigHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yml")
	content := []byte(`billing:
  rent:
    due_day: 7
    schedule: "0 2 1 * *"
    batch_concurrency: 2
  fine:
    due_day: 12
  locks:
    timeout: 3s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewBillingConfigHolder(Config{BillingConfigPath: path})
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 7, cfg.Rent.DueDay)
	assert.Equal(t, "0 2 1 * *", cfg.Rent.Schedule)
	assert.Equal(t, 2, cfg.Rent.BatchConcurrency)
	assert.Equal(t, 12, cfg.Fine.DueDay)
	assert.Equal(t, 3*time.Second, cfg.Locks.Timeout)
}

func TestNewBillingConfigHolderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yml")
	require.NoError(t, os.WriteFile(path, []byte("billing:\n  rent:\n    due_day: 40\n"), 0o600))

	_, err := NewBillingConfigHolder(Config{BillingConfigPath: path})
	assert.Error(t, err)
}

func TestBillingConfigHolderUpdateNotifiesListeners(t *testing.T) {
	holder := NewStaticBillingConfigHolder(DefaultBillingConfig())
	var seen []string
	holder.OnChange(func(cfg BillingConfig) { seen = append(seen, cfg.Rent.Schedule) })

	updated := DefaultBillingConfig()
	updated.Rent.Schedule = "30 4 1 * *"
	require.NoError(t, holder.Update(updated))
	assert.Equal(t, "30 4 1 * *", holder.Get().Rent.Schedule)

	invalid := DefaultBillingConfig()
	invalid.Rent.Schedule = "not a schedule"
	assert.Error(t, holder.Update(invalid))
	assert.Equal(t, "30 4 1 * *", holder.Get().Rent.Schedule)
	assert.Equal(t, []string{"30 4 1 * *"}, seen)
}
