package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// SnapshotHeader is the header row written by WriteSnapshotsCSV.
var SnapshotHeader = []string{"step", "timestamp", "event", "price", "position_value", "fees", "impermanent_loss", "il_pct", "net_pnl", "in_range"}

// RankingHeader is the header row written by WriteRankingCSV.
var RankingHeader = []string{"rank", "key", "defined", "score", "net_pnl", "total_fees", "total_il", "time_in_range", "max_drawdown", "rebalances", "failure"}

// WriteSnapshotsCSV writes every snapshot of report, in order.
func WriteSnapshotsCSV(w io.Writer, report *types.SimulationReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotHeader); err != nil {
		return err
	}
	for _, s := range report.Snapshots {
		if err := cw.Write([]string{
			strconv.Itoa(s.Step),
			s.Timestamp.UTC().Format(time.RFC3339),
			string(s.Event),
			s.Price.String(),
			s.PositionValue.String(),
			s.FeesEarnedCumulative.String(),
			s.ImpermanentLoss.String(),
			s.ILPct.String(),
			s.NetPnL.String(),
			strconv.FormatBool(s.InRange),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRankingCSV writes every ranked point best first, then every failed point with rank 0.
func WriteRankingCSV(w io.Writer, result *optimizer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RankingHeader); err != nil {
		return err
	}
	for i, ev := range result.Ranked {
		s := ev.Summary
		if err := cw.Write([]string{
			strconv.Itoa(i + 1),
			ev.Key,
			strconv.FormatBool(ev.Defined),
			ev.Score.String(),
			s.NetPnL.String(),
			s.TotalFees.String(),
			s.TotalIL.String(),
			s.TimeInRange.String(),
			s.MaxDrawdown.String(),
			strconv.Itoa(s.RebalanceCount),
			"",
		}); err != nil {
			return err
		}
	}
	for _, ev := range result.Failed {
		if err := cw.Write([]string{"0", ev.Key, "false", "", "", "", "", "", "", "", string(ev.Failure.Kind)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
