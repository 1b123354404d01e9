/*

This file contains the position simulator: a state machine that replays a price path against
one strategy and one pool, accruing fees, tracking impermanent loss and executing the
strategy's rebalance decisions.

NotStarted -> Open -> (Rebalancing -> Open)* -> Closed

The first sample opens the position. Every later sample accrues fees for the step that ended
at it (only if the price is inside the range), records a STEP snapshot and then lets the
strategy decide. The run ends when the path is exhausted or the strategy closes.

*/

package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/metrics"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNilStrategy       = fmt.Errorf("%w: strategy is required", types.ErrValidation)
	ErrNilPath           = fmt.Errorf("%w: price path is required", types.ErrValidation)
	ErrIllegalTransition = errors.New("illegal simulator state transition")
	ErrCapitalExhausted  = fmt.Errorf("%w: rebalance cost exceeds position value", types.ErrValidation)
)

// A run needs an opening sample plus at least one step.
const minSamplesForAnalysis = 2

// Status is the lifecycle state of one simulation run.
type Status int

const (
	StatusNotStarted Status = iota
	StatusOpen
	StatusRebalancing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusOpen:
		return "OPEN"
	case StatusRebalancing:
		return "REBALANCING"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
}

var allowedTransitions = map[Status][]Status{
	StatusNotStarted:  {StatusOpen},
	StatusOpen:        {StatusRebalancing, StatusClosed},
	StatusRebalancing: {StatusOpen},
}

// Simulator runs one strategy against price paths. It holds no per-run state, so one
// Simulator can serve concurrent Run calls as long as each call gets its own Path.
type Simulator struct {
	cfg      Config
	strategy strategy.Strategy
}

// NewSimulator validates cfg and binds it to a strategy.
func NewSimulator(cfg Config, strat strategy.Strategy) (*Simulator, error) {
	if strat == nil {
		return nil, ErrNilStrategy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := strat.Ranges().Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, strategy: strat}, nil
}

// Config returns the validated configuration, defaults included.
func (s *Simulator) Config() Config { return s.cfg }

// Strategy returns the strategy the simulator runs.
func (s *Simulator) Strategy() strategy.Strategy { return s.strategy }

// run is the mutable state of a single Run call.
type run struct {
	sim    *Simulator
	log    zerolog.Logger
	runID  string
	idNS   uuid.UUID
	status Status

	pos        types.Position
	state      strategy.State
	fees       decimal.Decimal
	realizedIL decimal.Decimal
	costs      decimal.Decimal

	lastStep   int
	lastSample types.PricePathSample
	value      decimal.Decimal
	il         decimal.Decimal
	ilPct      decimal.Decimal
	closed     bool

	report *types.SimulationReport
}

// Run replays path from its first sample. The path is reset before use.
func (s *Simulator) Run(ctx context.Context, path pricepath.Path) (*types.SimulationReport, error) {
	if path == nil {
		return nil, ErrNilPath
	}
	if err := path.Reset(); err != nil {
		return nil, err
	}

	runID := s.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	r := &run{
		sim:   s,
		log:   logger.GetForComponent("simulator").With().Str("run_id", runID).Str("strategy", s.strategy.ID()).Logger(),
		runID: runID,
		idNS:  uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID)),
		report: &types.SimulationReport{
			RunID:    runID,
			Strategy: s.strategy.ID(),
			Pool:     s.cfg.Pool,
		},
	}
	if n := path.Len(); n > 0 {
		r.report.Snapshots = make([]types.SimulationSnapshot, 0, n+1)
		r.report.PnLHistory = make([]decimal.Decimal, 0, n)
	}

	samples := 0
	for !r.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, err := path.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := types.ValidateSample(sample); err != nil {
			return nil, fmt.Errorf("step %d: %w", samples, err)
		}
		if samples > 0 && !sample.Timestamp.After(r.lastSample.Timestamp) {
			return nil, fmt.Errorf("%w: step %d timestamp does not advance", types.ErrValidation, samples)
		}

		if samples == 0 {
			err = r.start(sample)
		} else {
			err = r.step(samples, sample)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", samples, err)
		}
		samples++
	}

	if samples < minSamplesForAnalysis {
		return nil, fmt.Errorf("%w: need at least %d samples, got %d", types.ErrInsufficientData, minSamplesForAnalysis, samples)
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return r.report, nil
}

// ===== TRANSITIONS =====

func (r *run) transition(to Status) error {
	for _, allowed := range allowedTransitions[r.status] {
		if allowed == to {
			r.status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.status, to)
}

func (r *run) start(sample types.PricePathSample) error {
	initial := r.sim.cfg.InitialRange
	var rng types.PriceRange
	if initial != nil {
		rng = *initial
	} else {
		var err error
		if rng, err = r.sim.strategy.Ranges().Around(sample.Price); err != nil {
			return err
		}
	}

	pos, err := r.open(0, sample, r.sim.cfg.Capital, rng)
	if err != nil {
		return err
	}
	if err := r.transition(StatusOpen); err != nil {
		return err
	}
	r.pos = pos
	r.state = strategy.NewState(0)
	r.fees = decimal.Zero
	r.realizedIL = decimal.Zero
	r.costs = decimal.Zero
	r.lastSample = sample
	if err := r.mark(sample.Price); err != nil {
		return err
	}
	r.report.Positions = append(r.report.Positions, pos)
	r.snapshot(0, sample, types.EventStep)

	r.log.Debug().
		Str("price", sample.Price.String()).
		Str("range", pos.Range.String()).
		Str("liquidity", pos.Liquidity.String()).
		Msg("Position opened")
	return nil
}

func (r *run) step(step int, sample types.PricePathSample) error {
	cfg := r.sim.cfg
	r.lastStep = step
	r.lastSample = sample

	// Fees for the step ending at this sample
	if r.pos.Range.Contains(sample.Price) {
		share := metrics.LiquidityShare(r.pos.Liquidity, cfg.PoolLiquidity)
		fee, err := metrics.FeeValue(share, sample.Volume, cfg.Pool.FeeTier)
		if err != nil {
			return err
		}
		r.fees = r.fees.Add(fee)
	}

	if err := r.mark(sample.Price); err != nil {
		return err
	}
	r.snapshot(step, sample, types.EventStep)

	decision := r.sim.strategy.Decide(r.state.Context(step, sample.Timestamp, sample.Price, r.pos, r.ilPct, r.fees))
	switch decision.Action {
	case strategy.ActionHold, "":
		return nil
	case strategy.ActionRebalance:
		return r.rebalance(step, sample, decision)
	case strategy.ActionClose:
		return r.closeByStrategy(step, sample, decision)
	default:
		return fmt.Errorf("%w: unknown action %q", types.ErrValidation, decision.Action)
	}
}

func (r *run) rebalance(step int, sample types.PricePathSample, d strategy.Decision) error {
	// A zero range means the strategy could not build one; surface why.
	if d.NewRange.Lower.IsZero() && d.NewRange.Upper.IsZero() {
		if _, err := r.sim.strategy.Ranges().Around(sample.Price); err != nil {
			return err
		}
	}
	if err := strategy.ValidateRebalance(sample.Price, d.NewRange); err != nil {
		return err
	}
	if err := r.transition(StatusRebalancing); err != nil {
		return err
	}

	cost := r.sim.cfg.RebalanceCost
	capital := r.value.Sub(cost)
	if !capital.IsPositive() {
		return fmt.Errorf("%w: value %s, cost %s", ErrCapitalExhausted, r.value, cost)
	}

	oldRange := r.pos.Range
	closedValue := r.value
	realized := r.il

	pos, err := r.open(step, sample, capital, d.NewRange)
	if err != nil {
		return err
	}
	if err := r.transition(StatusOpen); err != nil {
		return err
	}

	r.realizedIL = r.realizedIL.Add(realized)
	r.costs = r.costs.Add(cost)
	r.pos = pos
	r.state.Rebalanced(step, d.Reason.Kind)
	if err := r.mark(sample.Price); err != nil {
		return err
	}

	newRange := pos.Range
	r.report.Positions = append(r.report.Positions, pos)
	r.report.Rebalances = append(r.report.Rebalances, types.RebalanceEvent{
		Step:         step,
		Timestamp:    sample.Timestamp,
		TriggerPrice: sample.Price,
		OldRange:     oldRange,
		NewRange:     &newRange,
		Reason:       d.Reason,
		ClosedValue:  closedValue,
		Cost:         cost,
		RealizedIL:   realized,
	})
	r.snapshot(step, sample, types.EventRebalance)

	r.log.Debug().
		Int("step", step).
		Str("reason", string(d.Reason.Kind)).
		Str("price", sample.Price.String()).
		Str("old_range", oldRange.String()).
		Str("new_range", newRange.String()).
		Str("cost", cost.String()).
		Msg("Position rebalanced")
	return nil
}

func (r *run) closeByStrategy(step int, sample types.PricePathSample, d strategy.Decision) error {
	r.report.Rebalances = append(r.report.Rebalances, types.RebalanceEvent{
		Step:         step,
		Timestamp:    sample.Timestamp,
		TriggerPrice: sample.Price,
		OldRange:     r.pos.Range,
		Reason:       d.Reason,
		ClosedValue:  r.value,
		Cost:         decimal.Zero,
		RealizedIL:   r.il,
	})
	r.closed = true
	r.report.Summary.ClosedByStrategy = true

	r.log.Debug().
		Int("step", step).
		Str("reason", string(d.Reason.Kind)).
		Str("price", sample.Price.String()).
		Msg("Position closed by strategy")
	return nil
}

func (r *run) finish() error {
	if err := r.transition(StatusClosed); err != nil {
		return err
	}
	r.snapshot(r.lastStep, r.lastSample, types.EventClose)
	r.summarize()

	sum := r.report.Summary
	r.log.Debug().
		Int("steps", sum.Steps).
		Int("rebalances", sum.RebalanceCount).
		Str("net_pnl", sum.NetPnL.String()).
		Str("fees", sum.TotalFees.String()).
		Str("il", sum.TotalIL.String()).
		Msg("Simulation finished")
	return nil
}

// ===== POSITION HELPERS =====

// open builds a position for capital at the sample price over rng, aligning it to pool
// ticks first when configured.
func (r *run) open(step int, sample types.PricePathSample, capital decimal.Decimal, rng types.PriceRange) (types.Position, error) {
	cfg := r.sim.cfg
	if err := rng.Validate(); err != nil {
		return types.Position{}, err
	}

	var tr *clmm.TickRange
	if cfg.AlignToTicks {
		aligned, err := clmm.AlignRange(rng, cfg.Pool)
		if err != nil {
			return types.Position{}, err
		}
		tr = &aligned
		rng = aligned.PriceRange
	}

	liquidity, err := clmm.LiquidityForCapital(capital, sample.Price, rng)
	if err != nil {
		return types.Position{}, err
	}
	amountA, amountB, err := clmm.AmountsForLiquidity(liquidity, sample.Price, rng)
	if err != nil {
		return types.Position{}, err
	}

	pos := types.Position{
		ID:         uuid.NewSHA1(r.idNS, []byte(strconv.Itoa(step))),
		Capital:    capital,
		Range:      rng,
		Liquidity:  liquidity,
		EntryPrice: sample.Price,
		OpenedAt:   sample.Timestamp,
		OpenedStep: step,
		AmountA:    amountA,
		AmountB:    amountB,
	}
	if tr != nil {
		raw, err := clmm.ProtocolLiquidity(amountA, amountB, sample.Price, *tr, cfg.Pool)
		if err != nil {
			return types.Position{}, err
		}
		lower, upper := tr.Lower, tr.Upper
		pos.TickLower = &lower
		pos.TickUpper = &upper
		pos.RawLiquidity = &raw
	}
	return pos, nil
}

// mark revalues the open position at price.
func (r *run) mark(price decimal.Decimal) error {
	value, err := clmm.PositionValue(r.pos.Liquidity, price, r.pos.Range)
	if err != nil {
		return err
	}
	il, err := metrics.ImpermanentLossForLiquidity(r.pos.Liquidity, r.pos.EntryPrice, price, r.pos.Range)
	if err != nil {
		return err
	}
	r.value = value
	r.il = il
	r.ilPct = clmm.QuoDown(il, r.pos.Capital)
	return nil
}

func (r *run) netPnL() decimal.Decimal {
	return r.fees.Add(r.value).Sub(r.sim.cfg.Capital)
}

func (r *run) snapshot(step int, sample types.PricePathSample, event types.SnapshotEvent) {
	pnl := r.netPnL()
	r.report.Snapshots = append(r.report.Snapshots, types.SimulationSnapshot{
		Step:                 step,
		Timestamp:            sample.Timestamp,
		Event:                event,
		Price:                sample.Price,
		PositionValue:        r.value,
		FeesEarnedCumulative: r.fees,
		ImpermanentLoss:      r.realizedIL.Add(r.il),
		ILPct:                r.ilPct,
		NetPnL:               pnl,
		InRange:              r.pos.Range.Contains(sample.Price),
	})
	if event == types.EventStep {
		r.report.PnLHistory = append(r.report.PnLHistory, pnl)
	}
}

func (r *run) summarize() {
	cfg := r.sim.cfg
	rep := r.report
	first := rep.Positions[0]
	exit := r.lastSample.Price

	wealth := make([]decimal.Decimal, len(rep.PnLHistory))
	for i, pnl := range rep.PnLHistory {
		wealth[i] = cfg.Capital.Add(pnl)
	}

	finalValue := r.value.Add(r.fees)
	netPnL := finalValue.Sub(cfg.Capital)
	hodl := metrics.HodlValue(first.AmountA, first.AmountB, exit)
	totalReturn := clmm.QuoDown(netPnL, cfg.Capital)
	hodlReturn := clmm.QuoDown(hodl.Sub(cfg.Capital), cfg.Capital)

	sum := &rep.Summary
	sum.InitialCapital = cfg.Capital
	sum.EntryPrice = first.EntryPrice
	sum.ExitPrice = exit
	sum.FinalPositionValue = r.value
	sum.FinalValue = finalValue
	sum.TotalFees = r.fees
	sum.TotalIL = r.realizedIL.Add(r.il)
	sum.FinalILPct = r.ilPct
	sum.NetPnL = netPnL
	sum.TotalReturnPct = totalReturn
	sum.HodlValue = hodl
	sum.HodlReturnPct = hodlReturn
	sum.VsHodlPct = totalReturn.Sub(hodlReturn)
	sum.MaxDrawdown = metrics.MaxDrawdown(wealth)
	sum.RebalanceCount = r.state.RebalanceCount
	sum.TotalRebalanceCost = r.costs
	sum.TimeInRange = metrics.TimeInRange(rep.Snapshots)
	sum.Steps = len(rep.PnLHistory)
	if sharpe, ok := metrics.SharpeRatio(rep.PnLHistory); ok {
		sum.SharpeRatio = &sharpe
	}
}
