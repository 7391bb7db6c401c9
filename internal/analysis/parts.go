package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/abhisek/opoplan/internal/schedule"
)

// SinglePartLabel names the synthetic bucket of themes without parts.
const SinglePartLabel = "Parte única"

// Part identifies a part of a theme. Index 0 is the whole theme.
type Part struct {
	Index int    `json:"partIndex"`
	Label string `json:"partLabel"`
}

var (
	directPart = regexp.MustCompile(`(?i)^\s*parte\s+(\d+)\s*:\s*(.+?)\s*$`)
	themedPart = regexp.MustCompile(`(?i)^\s*tema\s+\d+\s*\.?\s*parte\s+(\d+)\s*:\s*(.+?)\s*$`)
)

type keywordPart struct {
	re   *regexp.Regexp
	part Part
}

// Themes 7 and 15 were historically authored without part markers; their
// laws are recognised by name.
var keywordParts = map[int][]keywordPart{
	7: {
		{regexp.MustCompile(`(?i)defensa\s+nacional|5/2005`), Part{1, "Ley Orgánica 5/2005 de la Defensa Nacional"}},
		{regexp.MustCompile(`(?i)carrera\s+militar|39/2007`), Part{2, "Ley 39/2007 de la Carrera Militar"}},
		{regexp.MustCompile(`(?i)tropa\s+y\s+mariner[ií]a|8/2006`), Part{3, "Ley 8/2006 de Tropa y Marinería"}},
	},
	15: {
		{regexp.MustCompile(`(?i)derecho\s+internacional\s+humanitario|\bDIH\b`), Part{2, "Derecho Internacional Humanitario"}},
		{regexp.MustCompile(`(?i)derechos\s+humanos`), Part{1, "Derechos Humanos"}},
	},
}

// ExtractPart recovers the part a session belongs to from its free-text
// notes. It is a best-effort annotation used for reporting only: explicit
// "Parte N: label" notes, then "Tema X. Parte N: label", then the keyword
// table for themes 7 and 15, else the single-part bucket.
func ExtractPart(themeID int, notes string) Part {
	for _, re := range []*regexp.Regexp{directPart, themedPart} {
		if m := re.FindStringSubmatch(notes); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return Part{Index: n, Label: strings.TrimSpace(m[2])}
			}
		}
	}
	for _, kp := range keywordParts[themeID] {
		if kp.re.MatchString(notes) {
			return kp.part
		}
	}
	return Part{Index: 0, Label: SinglePartLabel}
}

// sessionPart prefers the structured part on the session and falls back to
// the notes.
func sessionPart(s schedule.Session) Part {
	if s.Ref.IsPart() {
		label := s.PartLabel
		if label == "" {
			label = fmt.Sprintf("Parte %d", s.Ref.Part)
		}
		return Part{Index: s.Ref.Part, Label: label}
	}
	return ExtractPart(s.Ref.BaseID, s.Notes)
}

// PartStat aggregates one part of a theme.
type PartStat struct {
	Part
	Sessions          int     `json:"sessions"`
	Hours             float64 `json:"hours"`
	CompletedSessions int     `json:"completedSessions"`
	CompletedHours    float64 `json:"completedHours"`
}

// ThemeParts is the part breakdown of one theme.
type ThemeParts struct {
	ThemeID int        `json:"themeId"`
	Parts   []PartStat `json:"parts"`
}

// PartsReport breaks every theme down by part, ordered by theme id then
// part index.
func PartsReport(sessions []schedule.Session) []ThemeParts {
	byTheme := make(map[int]map[int]*PartStat)
	for _, s := range sessions {
		p := sessionPart(s)
		parts, ok := byTheme[s.Ref.BaseID]
		if !ok {
			parts = make(map[int]*PartStat)
			byTheme[s.Ref.BaseID] = parts
		}
		ps, ok := parts[p.Index]
		if !ok {
			ps = &PartStat{Part: p}
			parts[p.Index] = ps
		}
		ps.Sessions++
		ps.Hours += schedule.ParseHours(s.Hours)
		ps.CompletedHours += completedHours(s)
		if s.Status == schedule.StatusCompleted {
			ps.CompletedSessions++
		}
	}

	out := make([]ThemeParts, 0, len(byTheme))
	for id, parts := range byTheme {
		tp := ThemeParts{ThemeID: id}
		for _, ps := range parts {
			tp.Parts = append(tp.Parts, *ps)
		}
		sort.Slice(tp.Parts, func(i, j int) bool { return tp.Parts[i].Index < tp.Parts[j].Index })
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThemeID < out[j].ThemeID })
	return out
}
