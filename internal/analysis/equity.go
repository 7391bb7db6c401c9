package analysis

import (
	"sort"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/theme"
)

// DefaultEquityThreshold is the largest accepted spread in session counts
// between themes of one block.
const DefaultEquityThreshold = 15

// BlockEquity is the equity verdict for one syllabus block.
type BlockEquity struct {
	Block            int         `json:"block"`
	FirstID          int         `json:"firstId"`
	LastID           int         `json:"lastId"`
	Sessions         int         `json:"sessions"`
	Hours            float64     `json:"hours"`
	SessionsPerTheme map[int]int `json:"sessionsPerTheme"`
	Min              int         `json:"min"`
	Max              int         `json:"max"`
	Equitable        bool        `json:"equitable"`
}

// EquityReport covers every block.
type EquityReport struct {
	Threshold int           `json:"threshold"`
	Blocks    []BlockEquity `json:"blocks"`
	Equitable bool          `json:"equitable"`
}

// Equity checks, per block, that the spread between the most and least
// scheduled themes stays within threshold. Blocks without sessions are
// reported as equitable. A non-positive threshold uses the default.
func Equity(sessions []schedule.Session, blocks []theme.Block, threshold int) EquityReport {
	if threshold <= 0 {
		threshold = DefaultEquityThreshold
	}
	if len(blocks) == 0 {
		blocks = theme.DefaultBlocks
	}
	report := EquityReport{Threshold: threshold, Equitable: true}

	ordered := make([]theme.Block, len(blocks))
	copy(ordered, blocks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for _, b := range ordered {
		be := BlockEquity{
			Block:            b.Number,
			FirstID:          b.FirstID,
			LastID:           b.LastID,
			SessionsPerTheme: make(map[int]int),
			Equitable:        true,
		}
		for _, s := range sessions {
			if !b.Contains(s.Ref.BaseID) {
				continue
			}
			be.Sessions++
			be.Hours += schedule.ParseHours(s.Hours)
			be.SessionsPerTheme[s.Ref.BaseID]++
		}
		first := true
		for _, n := range be.SessionsPerTheme {
			if first || n < be.Min {
				be.Min = n
			}
			if first || n > be.Max {
				be.Max = n
			}
			first = false
		}
		be.Equitable = be.Max-be.Min <= threshold
		if !be.Equitable {
			report.Equitable = false
		}
		report.Blocks = append(report.Blocks, be)
	}
	return report
}
