// Package actions builds user actions (vault supply and withdraw, market
// collateral and debt management, reward claims) into ordered signature and
// transaction requests.
//
// Each build reads a fresh snapshot, applies the action's subbundles to a
// working copy in execution order, and reports the position change between
// the snapshot and the working copy. Input validation failures are returned
// as *ValidationError. Failures past validation are reported in the returned
// Action with StatusError, except configuration errors which are returned.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/services/operations"
	"github.com/archon-research/stl-lend/internal/services/position_change"
	"github.com/archon-research/stl-lend/internal/services/simulation_builder"
	"github.com/archon-research/stl-lend/internal/services/subbundles"
)

const tracerName = "github.com/archon-research/stl-lend/internal/services/actions"

// genericFailureMessage is shown for failures that are not the user's to fix.
const genericFailureMessage = "Failed to prepare the transaction, please try again"

// Config holds the policy constants of action builds. Amounts are in WAD
// unless noted.
type Config struct {
	// SlippageTolerance widens share price bounds of bundled operations.
	SlippageTolerance *big.Int
	// RebasingMargin inflates approvals of full transfers of rebasing tokens.
	RebasingMargin *big.Int
	// NativeGasReserve (wei) is never wrapped.
	NativeGasReserve *big.Int
	// TargetUtilization above which a borrow pulls liquidity from vaults.
	TargetUtilization *big.Int
	// MaxLtvMargin is kept below the liquidation LTV when reporting the
	// borrowable amount.
	MaxLtvMargin *big.Int
	// AuthorizationValidity is how long signed authorizations stay valid.
	AuthorizationValidity time.Duration
	Logger                *slog.Logger
}

func configDefaults() Config {
	return Config{
		SlippageTolerance:     big.NewInt(3e14),
		RebasingMargin:        new(big.Int).Set(subbundles.DefaultRebasingMargin),
		NativeGasReserve:      new(big.Int).Set(subbundles.DefaultNativeGasReserve),
		TargetUtilization:     big.NewInt(9e17),
		MaxLtvMargin:          new(big.Int).Set(position_change.DefaultMaxLtvMargin),
		AuthorizationValidity: operations.DefaultAuthorizationValidity * time.Second,
		Logger:                slog.Default(),
	}
}

// Service builds actions.
type Service struct {
	config  Config
	builder *simulation_builder.Builder
	reader  outbound.ProtocolReader
	metrics outbound.MetricsRecorder
	logger  *slog.Logger
}

// NewService creates an action service. metrics may be nil.
func NewService(config Config, builder *simulation_builder.Builder, reader outbound.ProtocolReader, metrics outbound.MetricsRecorder) (*Service, error) {
	if builder == nil {
		return nil, fmt.Errorf("builder cannot be nil")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	defaults := configDefaults()
	if config.SlippageTolerance == nil {
		config.SlippageTolerance = defaults.SlippageTolerance
	}
	if config.RebasingMargin == nil {
		config.RebasingMargin = defaults.RebasingMargin
	}
	if config.NativeGasReserve == nil {
		config.NativeGasReserve = defaults.NativeGasReserve
	}
	if config.TargetUtilization == nil {
		config.TargetUtilization = builder.TargetUtilization()
	}
	if config.MaxLtvMargin == nil {
		config.MaxLtvMargin = defaults.MaxLtvMargin
	}
	if config.AuthorizationValidity == 0 {
		config.AuthorizationValidity = defaults.AuthorizationValidity
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Service{
		config:  config,
		builder: builder,
		reader:  reader,
		metrics: metrics,
		logger:  config.Logger.With("component", "actions"),
	}, nil
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SignatureRequest asks the account for an off-chain signature.
type SignatureRequest struct {
	Name string
	Sign func(ctx context.Context, signer outbound.Signer) error
}

// TransactionRequest is a transaction to send. Tx is evaluated lazily so it
// can use signatures collected by earlier requests.
type TransactionRequest struct {
	Name string
	Tx   func() (bundler.Transaction, error)
}

// Action is the result of a build. Requests must be processed in order:
// every signature request, then every transaction request, each
// transaction confirmed before the next is sent.
type Action struct {
	Status              Status
	SignatureRequests   []SignatureRequest
	TransactionRequests []TransactionRequest
	PositionChange      *position_change.PositionChange
	Message             string
}

// snapshot is the output of the concurrent read phase of a build.
type snapshot struct {
	initial    *simulation.State
	isContract bool
}

// read builds the initial state and checks whether the account is a
// contract, concurrently.
func (s *Service) read(ctx context.Context, account common.Address, build func(ctx context.Context) (*simulation.State, error)) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := build(gctx)
		if err != nil {
			return err
		}
		snap.initial = state
		return nil
	})
	g.Go(func() error {
		isContract, err := s.reader.IsContract(gctx, account)
		if err != nil {
			return fmt.Errorf("checking account code: %w", err)
		}
		snap.isContract = isContract
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (s *Service) operationOptions(snap snapshot, account common.Address) operations.Options {
	deadline := new(big.Int).SetUint64(snap.initial.Block.Timestamp + uint64(s.config.AuthorizationValidity/time.Second))
	return operations.Options{
		Account:               account,
		AccountIsContract:     snap.isContract,
		SlippageTolerance:     s.config.SlippageTolerance,
		TargetUtilization:     s.config.TargetUtilization,
		AuthorizationDeadline: deadline,
	}
}

func (s *Service) transferConfig(allowWrapping bool) subbundles.InputTransferConfig {
	return subbundles.InputTransferConfig{
		AllowWrappingNativeAssets: allowWrapping,
		NativeGasReserve:          s.config.NativeGasReserve,
		RebasingMargin:            s.config.RebasingMargin,
	}
}

// bundled turns a subbundle into requests ending with the bundle itself.
func bundled(chainID int64, sub subbundles.Subbundle) *Action {
	action := direct(sub.TransactionRequirements)
	for _, sig := range sub.SignatureRequirements {
		action.SignatureRequests = append(action.SignatureRequests, SignatureRequest{Name: sig.Name, Sign: sig.Sign})
	}
	action.TransactionRequests = append(action.TransactionRequests, TransactionRequest{
		Name: "Execute bundle",
		Tx: func() (bundler.Transaction, error) {
			calls, err := sub.BundlerCalls()
			if err != nil {
				return bundler.Transaction{}, err
			}
			return bundler.Encode(chainID, calls)
		},
	})
	return action
}

// direct turns transaction requirements into requests sent one by one.
func direct(txs []operations.TransactionRequirement) *Action {
	action := &Action{Status: StatusSuccess}
	for _, tx := range txs {
		action.TransactionRequests = append(action.TransactionRequests, TransactionRequest{Name: tx.Name, Tx: tx.Tx})
	}
	return action
}

// run wraps a build with tracing, metrics and error conversion.
func (s *Service) run(ctx context.Context, name string, attrs []attribute.KeyValue, build func(ctx context.Context) (*Action, error)) (*Action, error) {
	start := time.Now()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "actions."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	action, err := build(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action build failed")

		var cfgErr *blockchain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		var simErr *simulation.SimulationError
		if errors.As(err, &simErr) {
			s.logger.Debug("action rejected by simulation", "action", name, "error", err)
			if s.metrics != nil {
				s.metrics.RecordSimulationFailure(ctx, name, simErr.Kind.Error())
			}
			action = &Action{Status: StatusError, Message: simErr.Message}
		} else {
			s.logger.Error("action build failed", "action", name, "error", err)
			action = &Action{Status: StatusError, Message: genericFailureMessage}
		}
	}

	span.SetAttributes(
		attribute.String("action.status", string(action.Status)),
		attribute.Int("action.signature_requests", len(action.SignatureRequests)),
		attribute.Int("action.transaction_requests", len(action.TransactionRequests)),
	)
	if s.metrics != nil {
		s.metrics.RecordActionBuilt(ctx, name, string(action.Status), time.Since(start))
	}
	return action, nil
}
