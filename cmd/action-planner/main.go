// Package main implements the action planner CLI. It builds a lending action
// (vault supply or withdraw, market borrow or repay, reward claims) against
// live chain state and prints the resulting request plan as JSON.
//
// When PRIVATE_KEY is set, signature requests are signed with it so that
// bundle payloads depending on them can be rendered. Nothing is broadcast.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/archon-research/stl-lend/internal/adapters/outbound/onchain"
	"github.com/archon-research/stl-lend/internal/adapters/outbound/signer"
	"github.com/archon-research/stl-lend/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl-lend/internal/config"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain/multicall"
	"github.com/archon-research/stl-lend/internal/pkg/env"
	"github.com/archon-research/stl-lend/internal/pkg/retry"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/services/actions"
	"github.com/archon-research/stl-lend/internal/services/shared"
	"github.com/archon-research/stl-lend/internal/services/simulation_builder"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	chainID    int64
	account    string
	block      uint64
}

// app holds the services wired for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	reader  outbound.ProtocolReader
	actions *actions.Service
	signer  outbound.Signer
	account common.Address
	block   *big.Int
	out     io.Writer
	close   func()
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "action-planner",
		Short:         "Plans lending protocol actions and prints the requests to execute",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load if present")
	root.PersistentFlags().Int64Var(&flags.chainID, "chain", 0, "chain id (overrides config)")
	root.PersistentFlags().StringVar(&flags.account, "account", "", "acting account (defaults to the PRIVATE_KEY address)")
	root.PersistentFlags().Uint64Var(&flags.block, "block", 0, "block to read state at (0 for latest)")

	root.AddCommand(
		newVaultSupplyCommand(flags, out),
		newVaultWithdrawCommand(flags, out),
		newBorrowCommand(flags, out),
		newRepayCommand(flags, out),
		newClaimRewardsCommand(flags, out),
	)
	return root
}

// setup loads configuration and wires the RPC transport, the reader, the
// builder and the action service.
func setup(ctx context.Context, flags *globalFlags, out io.Writer) (*app, error) {
	if err := godotenv.Load(flags.envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", flags.envFile, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelWarn),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.chainID != 0 {
		cfg.ChainID = flags.chainID
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not provided (set rpc_url in the config or ETH_RPC_URL)")
	}
	addrs, err := blockchain.GetChainAddresses(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy.Parse()
	if err != nil {
		return nil, err
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Disabled:       !cfg.Telemetry.Tracing,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	appTelemetry, err := shared.NewAppTelemetry()
	if err != nil {
		return nil, fmt.Errorf("creating telemetry: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to RPC: %w", err)
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = cfg.Multicall.MaxRetries
	multicaller, err := multicall.NewClient(client, blockchain.Multicall3, multicall.Config{
		MaxBatchSize:      cfg.Multicall.MaxBatchSize,
		RequestsPerSecond: cfg.Multicall.RequestsPerSecond,
		Burst:             cfg.Multicall.Burst,
		Retry:             retryConfig,
		Logger:            logger,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	reader, err := onchain.NewReader(multicaller, client, cfg.ChainID, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	builder, err := simulation_builder.NewBuilder(simulation_builder.Config{
		TargetUtilization: policy.TargetUtilization,
		Logger:            logger,
	}, reader)
	if err != nil {
		client.Close()
		return nil, err
	}
	service, err := actions.NewService(actions.Config{
		SlippageTolerance:     policy.SlippageTolerance,
		RebasingMargin:        policy.RebasingMargin,
		NativeGasReserve:      policy.NativeGasReserve,
		TargetUtilization:     policy.TargetUtilization,
		MaxLtvMargin:          policy.MaxLtvMargin,
		AuthorizationValidity: policy.AuthorizationValidity,
		Logger:                logger,
	}, builder, reader, appTelemetry)
	if err != nil {
		client.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		reader:  reader,
		actions: service,
		out:     out,
		close: func() {
			client.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Warn("failed to shut down tracer", "error", err)
			}
			if err := shutdownMetrics(shutdownCtx); err != nil {
				logger.Warn("failed to shut down metrics", "error", err)
			}
		},
	}
	if flags.block != 0 {
		a.block = new(big.Int).SetUint64(flags.block)
	}

	if key := env.Get("PRIVATE_KEY", ""); key != "" {
		local, err := signer.NewLocalSignerFromHex(key)
		if err != nil {
			a.close()
			return nil, err
		}
		a.signer = local
	}
	if a.account, err = resolveAccount(flags.account, a.signer); err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("action planner ready",
		"chain", addrs.Name,
		"account", a.account.Hex(),
		"signer", a.signer != nil)
	return a, nil
}

// resolveAccount picks the --account flag or, without it, the signer address.
func resolveAccount(flag string, s outbound.Signer) (common.Address, error) {
	if flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, fmt.Errorf("invalid account %q", flag)
		}
		return common.HexToAddress(flag), nil
	}
	if s != nil {
		return s.Address(), nil
	}
	return common.Address{}, fmt.Errorf("account not provided (use --account or PRIVATE_KEY)")
}
