package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/suivoice/atm/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("an explicit but missing config file must fail")
	}

	// No explicit path: defaults apply even without a file on disk.
	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Network != "testnet" || cfg.App.OpeningBalanceUSD != 100_000 {
		t.Fatalf("unexpected app defaults: %+v", cfg.App)
	}
	if cfg.Scheduler.Interval != 60*time.Second || cfg.Scheduler.HysteresisIntervals != 5 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Risk.Level != "moderate" || cfg.Risk.CrashFloorUSD != 0.50 || cfg.Risk.HistoryLength != 1440 {
		t.Fatalf("unexpected risk defaults: %+v", cfg.Risk)
	}
	if cfg.Risk.SafetyDropPct != 8.0 || cfg.Risk.RecoveryPct != 5.0 || cfg.Risk.MinDeployApy != 4.0 {
		t.Fatalf("unexpected trigger defaults: %+v", cfg.Risk)
	}
	if cfg.Ledger.Capacity != 50 {
		t.Fatalf("unexpected ledger defaults: %+v", cfg.Ledger)
	}
	if cfg.Web.Port != "8080" {
		t.Fatalf("unexpected web defaults: %+v", cfg.Web)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
app:
  network: mainnet
  opening_balance_usd: 250000
scheduler:
  interval: 30s
risk:
  level: aggressive
  drift_threshold_pct: 15
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Network != "mainnet" || cfg.App.OpeningBalanceUSD != 250_000 {
		t.Fatalf("file values not applied: %+v", cfg.App)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Fatalf("duration not decoded: %v", cfg.Scheduler.Interval)
	}
	if cfg.Risk.Level != "aggressive" || cfg.Risk.DriftThresholdPct != 15 {
		t.Fatalf("risk overrides not applied: %+v", cfg.Risk)
	}
	// Untouched keys keep their defaults.
	if cfg.Risk.MinTradeUSD != 25.0 {
		t.Fatalf("expected the min trade default, got %v", cfg.Risk.MinTradeUSD)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"risk:\n  level: reckless\n",
		"scheduler:\n  interval: 0s\n",
		"scheduler:\n  hysteresis_intervals: 0\n",
		"risk:\n  crash_floor_usd: -1\n",
		"risk:\n  history_length: 1\n",
		"ledger:\n  capacity: 0\n",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("expected validation to reject %q", body)
		}
	}
}

func TestProfile(t *testing.T) {
	cfg := &Config{Risk: RiskConfig{Level: "Conservative"}}
	p := cfg.Profile()
	if p.Name != "conservative" || p.AllowCrossChain {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.RebalanceThresholdApy != 8.0 || p.MinTvlUSD != 1_000_000 {
		t.Fatalf("unexpected profile thresholds: %+v", p)
	}
}

func TestComboAllowList(t *testing.T) {
	if !ComboAllowed(types.VenueNavi, types.ChainSui, "usdc") {
		t.Fatal("asset matching must be case-insensitive")
	}
	if ComboAllowed(types.VenueNavi, types.ChainBase, "USDC") {
		t.Fatal("a venue on the wrong chain must be rejected")
	}
	if ComboAllowed(types.VenueVault, types.ChainSui, "USDC") {
		t.Fatal("the safety vault is never a deployment target")
	}
}

func TestBridgeCostTable(t *testing.T) {
	if got := BridgeCostPct(types.ChainSui, types.ChainBase); got != 0.30 {
		t.Fatalf("expected 0.30 for sui->base, got %v", got)
	}
	if got := BridgeCostPct(types.ChainBase, types.ChainSui); got != 0.25 {
		t.Fatalf("expected 0.25 for base->sui, got %v", got)
	}
	if got := BridgeCostPct(types.ChainSui, types.ChainSui); got != 0 {
		t.Fatalf("same-chain routes are free, got %v", got)
	}
}
