// Package config loads the action planner configuration: a YAML file with
// defaults for every field, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/archon-research/stl-lend/internal/pkg/env"
)

const wadDecimals = 18

// Config captures the runtime settings of the action planner.
type Config struct {
	ChainID   int64           `yaml:"chain_id"`
	RPCURL    string          `yaml:"rpc_url"`
	Multicall MulticallConfig `yaml:"multicall"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MulticallConfig paces the batched eth_calls.
type MulticallConfig struct {
	MaxBatchSize      int     `yaml:"max_batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// PolicyConfig holds the build policy. Ratios are decimal fractions
// ("0.0003"), NativeGasReserve is in ether.
type PolicyConfig struct {
	SlippageTolerance     string        `yaml:"slippage_tolerance"`
	RebasingMargin        string        `yaml:"rebasing_margin"`
	NativeGasReserve      string        `yaml:"native_gas_reserve"`
	TargetUtilization     string        `yaml:"target_utilization"`
	MaxLtvMargin          string        `yaml:"max_ltv_margin"`
	AuthorizationValidity time.Duration `yaml:"authorization_validity"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Tracing      bool    `yaml:"tracing"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Policy is PolicyConfig parsed into base units (WAD for ratios, wei for
// the gas reserve).
type Policy struct {
	SlippageTolerance     *big.Int
	RebasingMargin        *big.Int
	NativeGasReserve      *big.Int
	TargetUtilization     *big.Int
	MaxLtvMargin          *big.Int
	AuthorizationValidity time.Duration
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ChainID: 1,
		Multicall: MulticallConfig{
			MaxBatchSize:      500,
			RequestsPerSecond: 20,
			Burst:             5,
			MaxRetries:        3,
		},
		Policy: PolicyConfig{
			SlippageTolerance:     "0.0003",
			RebasingMargin:        "0.0003",
			NativeGasReserve:      "0.005",
			TargetUtilization:     "0.9",
			MaxLtvMargin:          "0.05",
			AuthorizationValidity: time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "action-planner",
			Environment: "development",
			SampleRate:  1.0,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides file values with STL_LEND_* variables and the RPC URL.
func (cfg *Config) applyEnv() error {
	cfg.RPCURL = env.Get("ETH_RPC_URL", cfg.RPCURL)
	if v, ok, err := env.Int64("STL_LEND_CHAIN_ID"); err != nil {
		return err
	} else if ok {
		cfg.ChainID = v
	}
	if v, ok, err := env.Float64("STL_LEND_REQUESTS_PER_SECOND"); err != nil {
		return err
	} else if ok {
		cfg.Multicall.RequestsPerSecond = v
	}
	if v, ok, err := env.Duration("STL_LEND_AUTHORIZATION_VALIDITY"); err != nil {
		return err
	} else if ok {
		cfg.Policy.AuthorizationValidity = v
	}
	cfg.Policy.SlippageTolerance = env.Get("STL_LEND_SLIPPAGE_TOLERANCE", cfg.Policy.SlippageTolerance)
	cfg.Policy.TargetUtilization = env.Get("STL_LEND_TARGET_UTILIZATION", cfg.Policy.TargetUtilization)
	cfg.Telemetry.OTLPEndpoint = env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.Environment = env.Get("ENVIRONMENT", cfg.Telemetry.Environment)
	return nil
}

func (cfg *Config) normalize() {
	cfg.RPCURL = strings.TrimSpace(cfg.RPCURL)
	cfg.Telemetry.OTLPEndpoint = strings.TrimSpace(cfg.Telemetry.OTLPEndpoint)
	defaults := Default()
	if cfg.Multicall.MaxBatchSize <= 0 {
		cfg.Multicall.MaxBatchSize = defaults.Multicall.MaxBatchSize
	}
	if cfg.Multicall.RequestsPerSecond <= 0 {
		cfg.Multicall.RequestsPerSecond = defaults.Multicall.RequestsPerSecond
	}
	if cfg.Multicall.Burst <= 0 {
		cfg.Multicall.Burst = defaults.Multicall.Burst
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
}

func (cfg *Config) validate() error {
	if cfg.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive")
	}
	if cfg.Multicall.MaxRetries < 0 {
		return fmt.Errorf("multicall.max_retries cannot be negative")
	}
	if cfg.Policy.AuthorizationValidity <= 0 {
		return fmt.Errorf("policy.authorization_validity must be positive")
	}
	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1]")
	}
	if _, err := cfg.Policy.Parse(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

// Parse converts the policy to base units.
func (p PolicyConfig) Parse() (Policy, error) {
	var (
		out Policy
		err error
	)
	ratios := []struct {
		name   string
		raw    string
		target **big.Int
	}{
		{"slippage_tolerance", p.SlippageTolerance, &out.SlippageTolerance},
		{"rebasing_margin", p.RebasingMargin, &out.RebasingMargin},
		{"target_utilization", p.TargetUtilization, &out.TargetUtilization},
		{"max_ltv_margin", p.MaxLtvMargin, &out.MaxLtvMargin},
	}
	for _, r := range ratios {
		if *r.target, err = parseFraction(r.raw); err != nil {
			return Policy{}, fmt.Errorf("%s: %w", r.name, err)
		}
	}
	if out.TargetUtilization.Sign() == 0 {
		return Policy{}, fmt.Errorf("target_utilization must be greater than 0")
	}
	if out.NativeGasReserve, err = ToBaseUnits(p.NativeGasReserve, wadDecimals); err != nil {
		return Policy{}, fmt.Errorf("native_gas_reserve: %w", err)
	}
	out.AuthorizationValidity = p.AuthorizationValidity
	return out, nil
}

// parseFraction parses a ratio within [0, 1] into WAD.
func parseFraction(raw string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q", raw)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%s must be within [0, 1]", raw)
	}
	return ToBaseUnits(raw, wadDecimals)
}

// ToBaseUnits converts a non-negative decimal amount to an integer with the
// given number of decimals. Amounts with more precision than decimals are
// rejected.
func ToBaseUnits(raw string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q", raw)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%s cannot be negative", raw)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%s has more than %d decimals", raw, decimals)
	}
	return scaled.BigInt(), nil
}
