package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("ORACLE_CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set ORACLE_CACHE_TTL: %v", err)
	}
	if err := os.Setenv("FUND_WALLETS", "0xAbC, 0xDeF"); err != nil {
		t.Fatalf("Failed to set FUND_WALLETS: %v", err)
	}
	if err := os.Setenv("FUND_WALLET_ROLES", "0xAbC=lender,0xDeF=trader"); err != nil {
		t.Fatalf("Failed to set FUND_WALLET_ROLES: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("ORACLE_CACHE_TTL")
		_ = os.Unsetenv("FUND_WALLETS")
		_ = os.Unsetenv("FUND_WALLET_ROLES")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Oracle.CacheTTL != 30*time.Second {
		t.Errorf("Oracle.CacheTTL = %v, want %v", cfg.Oracle.CacheTTL, 30*time.Second)
	}

	if len(cfg.Fund.Wallets) != 2 || cfg.Fund.Wallets[0] != "0xAbC" || cfg.Fund.Wallets[1] != "0xDeF" {
		t.Errorf("Fund.Wallets = %v, want [0xAbC 0xDeF]", cfg.Fund.Wallets)
	}

	if cfg.Fund.Roles["0xAbC"] != "lender" || cfg.Fund.Roles["0xDeF"] != "trader" {
		t.Errorf("Fund.Roles = %v, want lender/trader mapping", cfg.Fund.Roles)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Ledger.ClearingAccountPattern != "clearing" {
		t.Errorf("Ledger.ClearingAccountPattern = %v, want clearing", cfg.Ledger.ClearingAccountPattern)
	}
	if cfg.Ledger.LotMethod != "fifo" {
		t.Errorf("Ledger.LotMethod = %v, want fifo", cfg.Ledger.LotMethod)
	}
	if cfg.Ledger.NativeAsset != "ETH" {
		t.Errorf("Ledger.NativeAsset = %v, want ETH", cfg.Ledger.NativeAsset)
	}
	if len(cfg.Ledger.AutoPostCategories) != 4 {
		t.Errorf("Ledger.AutoPostCategories = %v, want 4 entries", cfg.Ledger.AutoPostCategories)
	}
	if cfg.Ledger.WorkerConcurrency != 8 {
		t.Errorf("Ledger.WorkerConcurrency = %v, want 8", cfg.Ledger.WorkerConcurrency)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{name: "parses valid integer", envValue: "42", defaultValue: 10, want: 42},
		{name: "falls back on invalid integer", envValue: "abc", defaultValue: 10, want: 10},
		{name: "falls back on empty", envValue: "", defaultValue: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_INT_KEY", tt.envValue)
				defer os.Unsetenv("TEST_INT_KEY")
			}
			if got := getEnvAsInt("TEST_INT_KEY", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	os.Setenv("TEST_LIST_KEY", "a, b ,,c")
	defer os.Unsetenv("TEST_LIST_KEY")

	got := getEnvAsList("TEST_LIST_KEY", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("getEnvAsList() = %v, want [a b c]", got)
	}

	if got := getEnvAsList("TEST_MISSING_KEY", ""); got != nil {
		t.Errorf("getEnvAsList() = %v, want nil", got)
	}
}

func TestGetEnvAsMap(t *testing.T) {
	os.Setenv("TEST_MAP_KEY", "k1=v1, k2 = v2 ,broken")
	defer os.Unsetenv("TEST_MAP_KEY")

	got := getEnvAsMap("TEST_MAP_KEY", "")
	if len(got) != 2 || got["k1"] != "v1" || got["k2"] != "v2" {
		t.Errorf("getEnvAsMap() = %v, want k1=v1 k2=v2", got)
	}
}
