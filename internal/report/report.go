/*

This file contains the renderers for simulation reports and optimization results.

Every renderer writes to an io.Writer and is deterministic for a given input, so the CLI
can print to stdout and the tests can compare against a buffer.

*/

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/metrics"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Format selects a renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = fmt.Errorf("%w: unknown output format", types.ErrValidation)

// ParseFormat accepts table, json and csv in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// projectionDays is the horizon of the fee projection line in the summary table.
const projectionDays = 30

// FeeStats are the annualized fee figures of a run.
type FeeStats struct {
	Days           int             `json:"days"`
	APR            decimal.Decimal `json:"apr"`
	APY            decimal.Decimal `json:"apy"` // Daily compounding
	Projected30d   decimal.Decimal `json:"projected_30d"`
	BreakevenDays  int64           `json:"breakeven_days"`
	BreakevenKnown bool            `json:"breakeven_known"`
}

// Fees annualizes the fees of report over its time span. ok is false for runs shorter
// than a day.
func Fees(report *types.SimulationReport) (FeeStats, bool) {
	steps := report.StepSnapshots()
	if len(steps) < 2 {
		return FeeStats{}, false
	}
	span := steps[len(steps)-1].Timestamp.Sub(steps[0].Timestamp)
	days := int(span / (24 * time.Hour))
	s := report.Summary

	apr, err := metrics.CalculateAPY(s.TotalFees, s.InitialCapital, days)
	if err != nil {
		return FeeStats{}, false
	}
	dailyFees := s.TotalFees.Div(decimal.NewFromInt(int64(days)))
	dailyRate := dailyFees.Div(s.InitialCapital)
	breakeven, known := metrics.BreakevenDays(s.FinalILPct, dailyRate)
	return FeeStats{
		Days:           days,
		APR:            apr,
		APY:            metrics.AprToApy(apr, 365),
		Projected30d:   metrics.ProjectFees(dailyFees, projectionDays, metrics.ProjectionConstant, decimal.Zero),
		BreakevenDays:  breakeven,
		BreakevenKnown: known,
	}, true
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ===== TABLES =====

// WriteSummary writes the summary of one run as an aligned two-column table.
func WriteSummary(w io.Writer, report *types.SimulationReport) error {
	s := report.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	rows := [][2]string{
		{"Run", report.RunID},
		{"Strategy", report.Strategy},
		{"Pool", poolName(report.Pool)},
		{"Steps", fmt.Sprint(s.Steps)},
		{"Entry price", s.EntryPrice.String()},
		{"Exit price", s.ExitPrice.String()},
		{"Initial capital", s.InitialCapital.String()},
		{"Final value", s.FinalValue.StringFixed(4)},
		{"Net PnL", s.NetPnL.StringFixed(4)},
		{"Total return", pct(s.TotalReturnPct)},
		{"HODL return", pct(s.HodlReturnPct)},
		{"vs HODL", pct(s.VsHodlPct)},
		{"Fees earned", s.TotalFees.StringFixed(4)},
		{"Impermanent loss", s.TotalIL.StringFixed(4)},
		{"Time in range", pct(s.TimeInRange)},
		{"Max drawdown", pct(s.MaxDrawdown)},
		{"Sharpe ratio", optional(s.SharpeRatio)},
		{"Rebalances", fmt.Sprint(s.RebalanceCount)},
		{"Rebalance cost", s.TotalRebalanceCost.StringFixed(4)},
		{"Closed by strategy", fmt.Sprint(s.ClosedByStrategy)},
	}
	if fees, ok := Fees(report); ok {
		breakeven := "never"
		if fees.BreakevenKnown {
			breakeven = fmt.Sprintf("%d days", fees.BreakevenDays)
		}
		rows = append(rows,
			[2]string{"Fee APR", pct(fees.APR)},
			[2]string{"Fee APY", pct(fees.APY)},
			[2]string{"Projected fees (30d)", fees.Projected30d.StringFixed(4)},
			[2]string{"IL breakeven", breakeven},
		)
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

// WriteRanking writes the top n points of a grid search, best first, followed by the
// failed points.
func WriteRanking(w io.Writer, result *optimizer.Result, n int) error {
	if _, err := fmt.Fprintf(w, "Objective: %s  Grid: %d  Ranked: %d  Failed: %d  Pending: %d\n",
		result.Objective, result.GridSize, len(result.Ranked), len(result.Failed), result.Pending); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPARAMETERS\tSCORE\tNET PNL\tFEES\tIL\tIN RANGE\tREBALANCES")
	for i, ev := range result.Top(n) {
		score := "undefined"
		if ev.Defined {
			score = ev.Score.StringFixed(6)
		}
		s := ev.Summary
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			i+1, ev.Key, score, s.NetPnL.StringFixed(4), s.TotalFees.StringFixed(4),
			s.TotalIL.StringFixed(4), pct(s.TimeInRange), s.RebalanceCount)
	}
	for _, ev := range result.Failed {
		fmt.Fprintf(tw, "-\t%s\t%s\t%s\n", ev.Key, ev.Failure.Kind, ev.Failure.Message)
	}
	return tw.Flush()
}

// WriteMonteCarlo writes the aggregate of a Monte Carlo batch.
func WriteMonteCarlo(w io.Writer, mc *simulation.MonteCarloResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Runs\t%d\n", mc.Runs)
	fmt.Fprintf(tw, "Mean PnL\t%s\n", mc.MeanPnL.StringFixed(4))
	fmt.Fprintf(tw, "Median PnL\t%s\n", mc.MedianPnL.StringFixed(4))
	fmt.Fprintf(tw, "VaR 95%%\t%s\n", mc.VaR95.StringFixed(4))
	fmt.Fprintf(tw, "Mean fees\t%s\n", mc.MeanFees.StringFixed(4))
	fmt.Fprintf(tw, "Mean IL\t%s\n", mc.MeanIL.StringFixed(4))
	return tw.Flush()
}

// WriteRangeCandidates writes range recommendations, best first.
func WriteRangeCandidates(w io.Writer, candidates []optimizer.RangeCandidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WIDTH\tRANGE\tMEAN SCORE\tMEAN PNL\tVAR 95%")
	for _, c := range candidates {
		score := "undefined"
		if c.Defined {
			score = c.MeanScore.StringFixed(6)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			pct(c.Width), c.Range, score, c.MonteCarlo.MeanPnL.StringFixed(4), c.MonteCarlo.VaR95.StringFixed(4))
	}
	return tw.Flush()
}

func poolName(p types.PoolParameters) string {
	name := p.TokenA.Symbol + "/" + p.TokenB.Symbol
	if name == "/" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s (fee %s, spacing %d)", name, p.FeeTier, p.TickSpacing)
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return "undefined"
	}
	return d.StringFixed(4)
}
