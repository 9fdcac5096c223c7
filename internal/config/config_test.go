package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 1 {
		t.Errorf("ChainID = %d, want 1", cfg.ChainID)
	}
	if cfg.Multicall.MaxBatchSize != 500 {
		t.Errorf("MaxBatchSize = %d, want 500", cfg.Multicall.MaxBatchSize)
	}
	if cfg.Policy.AuthorizationValidity != time.Hour {
		t.Errorf("AuthorizationValidity = %v, want 1h", cfg.Policy.AuthorizationValidity)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
chain_id: 8453
rpc_url: " https://base.example/rpc "
multicall:
  max_batch_size: 100
policy:
  slippage_tolerance: "0.001"
  authorization_validity: 30m
telemetry:
  tracing: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 8453 {
		t.Errorf("ChainID = %d, want 8453", cfg.ChainID)
	}
	if cfg.RPCURL != "https://base.example/rpc" {
		t.Errorf("RPCURL = %q, want trimmed", cfg.RPCURL)
	}
	if cfg.Multicall.MaxBatchSize != 100 || cfg.Multicall.Burst != 5 {
		t.Errorf("Multicall = %+v", cfg.Multicall)
	}
	if cfg.Policy.SlippageTolerance != "0.001" || cfg.Policy.TargetUtilization != "0.9" {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Policy.AuthorizationValidity != 30*time.Minute {
		t.Errorf("AuthorizationValidity = %v, want 30m", cfg.Policy.AuthorizationValidity)
	}
	if !cfg.Telemetry.Tracing || cfg.Telemetry.ServiceName != "action-planner" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "chain_id: 1\nrpc_url: http://file\n")
	t.Setenv("STL_LEND_CHAIN_ID", "8453")
	t.Setenv("ETH_RPC_URL", "http://env")
	t.Setenv("STL_LEND_AUTHORIZATION_VALIDITY", "10m")
	t.Setenv("STL_LEND_SLIPPAGE_TOLERANCE", "0.002")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 8453 || cfg.RPCURL != "http://env" {
		t.Errorf("got chain %d rpc %q", cfg.ChainID, cfg.RPCURL)
	}
	if cfg.Policy.AuthorizationValidity != 10*time.Minute {
		t.Errorf("AuthorizationValidity = %v", cfg.Policy.AuthorizationValidity)
	}
	if cfg.Policy.SlippageTolerance != "0.002" {
		t.Errorf("SlippageTolerance = %q", cfg.Policy.SlippageTolerance)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown field", body: "chian_id: 1\n", wantErr: "decode config"},
		{name: "negative chain", body: "chain_id: -1\n", wantErr: "chain_id must be positive"},
		{name: "ratio above one", body: "policy:\n  max_ltv_margin: \"1.5\"\n", wantErr: "max_ltv_margin"},
		{name: "bad decimal", body: "policy:\n  slippage_tolerance: abc\n", wantErr: "slippage_tolerance"},
		{name: "zero target", body: "policy:\n  target_utilization: \"0\"\n", wantErr: "target_utilization must be greater than 0"},
		{name: "sample rate", body: "telemetry:\n  sample_rate: 2\n", wantErr: "sample_rate"},
		{name: "bad env", env: map[string]string{"STL_LEND_CHAIN_ID": "one"}, wantErr: "parsing STL_LEND_CHAIN_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPolicyParse(t *testing.T) {
	policy, err := Default().Policy.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checks := []struct {
		name string
		got  *big.Int
		want int64
	}{
		{"slippage", policy.SlippageTolerance, 3e14},
		{"rebasing", policy.RebasingMargin, 3e14},
		{"gas reserve", policy.NativeGasReserve, 5e15},
		{"target", policy.TargetUtilization, 9e17},
		{"ltv margin", policy.MaxLtvMargin, 5e16},
	}
	for _, c := range checks {
		if c.got.Cmp(big.NewInt(c.want)) != 0 {
			t.Errorf("%s = %s, want %d", c.name, c.got, c.want)
		}
	}
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1000", 6, "1000000000", false},
		{"1.5", 18, "1500000000000000000", false},
		{" 0.000001 ", 6, "1", false},
		{"0", 6, "0", false},
		{"0.0000001", 6, "", true},
		{"-1", 6, "", true},
		{"ten", 6, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ToBaseUnits(tt.raw, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToBaseUnits: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
			}
		})
	}
}
