package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/opoplan/internal/analysis"
	"github.com/abhisek/opoplan/internal/plans"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
	"github.com/abhisek/opoplan/internal/theme"
	"github.com/abhisek/opoplan/internal/ui/components"
	uitheme "github.com/abhisek/opoplan/internal/ui/theme"
)

func hours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func printThemes(w io.Writer, themes []theme.Theme) {
	rows := make([][]string, 0, len(themes))
	for _, t := range themes {
		rows = append(rows, []string{
			strconv.Itoa(t.ID), t.Title, hours(t.EstimatedHours),
			string(t.Complexity), strconv.Itoa(t.PartCount), strconv.Itoa(t.BlockID),
		})
	}
	lipgloss.Fprintln(w, components.Table([]string{"ID", "Title", "Hours", "Complexity", "Parts", "Block"}, rows))
	fmt.Fprintf(w, "\n%d themes\n", len(themes))
}

func printPlan(w io.Writer, p *store.Plan) {
	lipgloss.Fprintln(w, uitheme.Title.Render("Plan "+p.ID))
	field := func(label, value string) {
		lipgloss.Fprintf(w, "%s %s\n", uitheme.Label.Render(fmt.Sprintf("%-12s", label)), value)
	}
	field("user", p.UserID)
	field("status", uitheme.PlanStatus(p.Status))
	field("methodology", string(p.Methodology))
	field("window", fmt.Sprintf("%s → %s (buffer %d days)",
		schedule.NewDate(p.StartDate), schedule.NewDate(p.ExamDate), p.BufferDays))
	field("themes", strconv.Itoa(len(p.Topics)))
	field("generation", uitheme.GenerationState(p.GenerationState))
	if p.Strategy != "" {
		field("strategy", p.Strategy)
	}
	if p.GenerationError != "" {
		field("error", uitheme.Bad.Render(p.GenerationError))
	}
	printWarnings(w, p.Warnings)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		lipgloss.Fprintln(w, uitheme.Warn.Render("! "+msg))
	}
}

func printCreateResult(w io.Writer, res *plans.CreateResult) {
	if len(res.Cancelled) > 0 {
		lipgloss.Fprintln(w, uitheme.Hint.Render("cancelled previous plans: "+strings.Join(res.Cancelled, ", ")))
	}
	if est := res.Feasibility; est != nil {
		lipgloss.Fprintf(w, "%s %s required, %s available, %s slack over %d study days\n",
			uitheme.Label.Render("feasibility"),
			hours(roundTo(est.RequiredHours)), hours(roundTo(est.AvailableHours)),
			hours(roundTo(est.Slack)), est.StudyDays)
	}
	lipgloss.Fprintf(w, "%s free preparation from %s until the exam on %s\n",
		uitheme.Label.Render("buffer"), res.Buffer.BufferStartDate, res.Buffer.ExamDate)
}

func printGeneration(w io.Writer, g analysis.GenerationReport) {
	state := uitheme.Hint.Render(g.State)
	switch g.State {
	case analysis.StateReady:
		state = uitheme.Good.Render(g.State)
	case analysis.StateFailed:
		state = uitheme.Bad.Render(g.State)
	}
	lipgloss.Fprintf(w, "%s %s", uitheme.Label.Render("sessions"), state)
	if g.SessionCount > 0 {
		fmt.Fprintf(w, ": %d from %s to %s", g.SessionCount, g.FirstDate, g.LastDate)
	}
	fmt.Fprintln(w)
	if g.Error != "" {
		lipgloss.Fprintln(w, uitheme.Bad.Render(g.Error))
	}
}

func printProgress(w io.Writer, p analysis.Progress) {
	bar := components.NewProgressBar("progress", p.Percentage/100, true, 48)
	lipgloss.Fprintln(w, bar.View())
	fmt.Fprintf(w, "%d/%d sessions done, %d skipped, %s of %s, %d days to the exam\n",
		p.Completed, p.Total, p.Skipped, hours(roundTo(p.CompletedHours)), hours(roundTo(p.ScheduledHours)), p.DaysRemaining)
}

func printSessions(w io.Writer, sessions []schedule.Session) {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		typ := lipgloss.NewStyle().Foreground(uitheme.SessionTypeColor(s.Type)).Render(string(s.Type))
		label := s.PartLabel
		if label == "" {
			label = s.Notes
		}
		rows = append(rows, []string{
			schedule.NewDate(s.Date).String(), s.Date.Weekday().String()[:3],
			s.Ref.String(), typ, hours(s.Hours), string(s.Status), label,
		})
	}
	lipgloss.Fprintln(w, components.Table([]string{"Date", "Day", "Theme", "Type", "Hours", "Status", "Part"}, rows))
	fmt.Fprintf(w, "\n%d sessions\n", len(sessions))
}

func printThemeStats(w io.Writer, stats []analysis.ThemeStat) {
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []string{
			strconv.Itoa(st.ThemeID), strconv.Itoa(st.Sessions),
			strconv.Itoa(st.ByType[schedule.TypeStudy]),
			strconv.Itoa(st.ByType[schedule.TypeReview] + st.ByType[schedule.TypeFlashReview]),
			strconv.Itoa(st.ByType[schedule.TypeTest] + st.ByType[schedule.TypeSimulation]),
			hours(roundTo(st.ScheduledHours)),
			fmt.Sprintf("%.0f%%", st.CompletionRate*100),
			st.FirstDate.String(), st.LastDate.String(),
		})
	}
	lipgloss.Fprintln(w, components.Table(
		[]string{"Theme", "Sessions", "Study", "Review", "Assess", "Hours", "Done", "First", "Last"}, rows))
}

func printEquity(w io.Writer, eq analysis.EquityReport) {
	for _, b := range eq.Blocks {
		verdict := uitheme.Good.Render("equitable")
		if !b.Equitable {
			verdict = uitheme.Bad.Render("unbalanced")
		}
		lipgloss.Fprintf(w, "%s themes %d-%d: %d sessions, %s, spread %d-%d (max %d) %s\n",
			uitheme.Label.Render(fmt.Sprintf("block %d", b.Block)),
			b.FirstID, b.LastID, b.Sessions, hours(roundTo(b.Hours)), b.Min, b.Max, eq.Threshold, verdict)
	}
}

func printParts(w io.Writer, parts []analysis.ThemeParts) {
	var rows [][]string
	for _, tp := range parts {
		for _, p := range tp.Parts {
			rows = append(rows, []string{
				strconv.Itoa(tp.ThemeID), strconv.Itoa(p.Index), p.Label,
				strconv.Itoa(p.Sessions), hours(roundTo(p.Hours)),
			})
		}
	}
	if len(rows) == 0 {
		return
	}
	lipgloss.Fprintln(w, components.Table([]string{"Theme", "Part", "Label", "Sessions", "Hours"}, rows))
}

func printBlockProblems(w io.Writer, be *schedule.BlockValidationError) {
	byBlock := be.ByBlock()
	numbers := make([]int, 0, len(byBlock))
	for n := range byBlock {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		lipgloss.Fprintln(w, uitheme.Bad.Render(fmt.Sprintf("block %d", n)))
		for _, p := range byBlock[n] {
			if p.Day != "" {
				fmt.Fprintf(w, "  - %s: %s\n", p.Day, p.Message)
				continue
			}
			fmt.Fprintf(w, "  - %s\n", p.Message)
		}
	}
}

func roundTo(h float64) float64 {
	return float64(int(h*100+0.5)) / 100
}
