package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadTaxRateDefaultsAndOverrides(t *testing.T) {
	t.Setenv("TAX_RATE_PERCENT", "")
	if cfg := Load(); !cfg.TaxRatePercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected default GST rate 5, got %s", cfg.TaxRatePercent)
	}

	t.Setenv("TAX_RATE_PERCENT", "12")
	if cfg := Load(); !cfg.TaxRatePercent.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected GST rate 12, got %s", cfg.TaxRatePercent)
	}

	t.Setenv("TAX_RATE_PERCENT", "-3")
	if cfg := Load(); !cfg.TaxRatePercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("negative rate must fall back to 5, got %s", cfg.TaxRatePercent)
	}
}
