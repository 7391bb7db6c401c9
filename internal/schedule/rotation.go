package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Rotation is the primary generator. It rotates themes round-robin,
// spaces reviews at growing offsets and fills spare capacity with tests.
type Rotation struct {
	cfg Config
}

// NewRotation creates a rotation scheduler.
func NewRotation(cfg Config) *Rotation {
	return &Rotation{cfg: cfg}
}

func (r *Rotation) Kind() Kind { return KindRotation }

// Generate places every topic's sessions inside [Start, cutoff]. It returns
// a *SchedulingFailure when hours remain after the rebalancing passes.
func (r *Rotation) Generate(ctx context.Context, in Input) (*Result, error) {
	if len(in.Topics) == 0 {
		return nil, &SchedulingFailure{Strategy: KindRotation, Reason: "no themes to schedule"}
	}
	run := newRotationRun(r.cfg, in)
	if len(run.slots) == 0 {
		return nil, &SchedulingFailure{
			Strategy:      KindRotation,
			UnplacedHours: TotalRequired(in.Topics),
			Reason:        "no available study days before the buffer cutoff",
		}
	}

	for si := range run.slots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.placeReviews(si)
		run.placeStudy(si)
		run.placeAssessments(si)
	}

	var warnings []string
	for pass := 1; pass <= r.cfg.RebalancePasses && run.leftover() > epsilon; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.sweep(passGranularity(pass))
		warnings = append(warnings, fmt.Sprintf("rebalancing pass %d applied", pass))
	}

	if left := run.leftover(); left > epsilon {
		return nil, &SchedulingFailure{Strategy: KindRotation, UnplacedHours: left}
	}

	sessions := compact(run.sessions, sessionCap(r.cfg, in.Week))
	AssignIDs(in.PlanID, sessions)
	return &Result{Strategy: KindRotation, Sessions: sessions, Warnings: warnings}, nil
}

// passGranularity is the piece size used by a rebalancing pass: the first
// keeps pieces whole, later ones split into half and quarter hours.
func passGranularity(pass int) float64 {
	switch pass {
	case 1:
		return 0
	case 2:
		return 0.5
	default:
		return minPiece
	}
}

type slot struct {
	date   time.Time
	cap    float64
	used   float64
	themes map[int]bool
}

func (s *slot) fits(h float64) bool { return h <= s.cap-s.used+epsilon }

type piece struct {
	typ   SessionType
	hours float64
}

type unit struct {
	topic       Topic
	order       int
	block       int
	study       []float64
	reviews     []piece
	assessments []piece
	noStudy     bool
	firstStudy  int
	reviewsDone int
	due         int
}

func (u *unit) started(si int) bool {
	return u.noStudy || (u.firstStudy >= 0 && u.firstStudy < si)
}

func (u *unit) left() float64 {
	total := 0.0
	for _, h := range u.study {
		total += h
	}
	for _, p := range u.reviews {
		total += p.hours
	}
	for _, p := range u.assessments {
		total += p.hours
	}
	return total
}

// group holds the units of one base theme; they share a rotation slot.
type group struct {
	units []*unit
	inner int
	block int
}

func (g *group) next() (int, *unit) {
	for k := 0; k < len(g.units); k++ {
		i := (g.inner + k) % len(g.units)
		if len(g.units[i].study) > 0 {
			return i, g.units[i]
		}
	}
	return -1, nil
}

type rotationRun struct {
	cfg      Config
	in       Input
	slots    []*slot
	units    []*unit
	groups   []*group
	cursor   int
	sessions []Session
}

func newRotationRun(cfg Config, in Input) *rotationRun {
	run := &rotationRun{cfg: cfg, in: in}
	if run.in.TopicsPerDay < 1 {
		run.in.TopicsPerDay = 1
	}

	for _, d := range DaysBetween(in.Start, Cutoff(in.Exam, cfg.BufferDays)) {
		if h := in.Week.For(d.Weekday()); h > 0 {
			run.slots = append(run.slots, &slot{date: d, cap: h, themes: make(map[int]bool)})
		}
	}

	limit := sessionCap(cfg, in.Week)
	byBase := make(map[int]*group)
	for _, t := range in.Topics {
		u := &unit{topic: t, firstStudy: -1, due: -1, block: t.BlockID}
		if in.OrderByBlock && u.block == 0 {
			u.block = int(^uint(0) >> 1)
		}
		var reviews, flashes []piece
		for _, a := range MixFor(t, limit) {
			for _, h := range a.Pieces {
				switch a.Type {
				case TypeStudy:
					u.study = append(u.study, h)
				case TypeReview:
					reviews = append(reviews, piece{typ: a.Type, hours: h})
				case TypeFlashReview:
					flashes = append(flashes, piece{typ: a.Type, hours: h})
				default:
					u.assessments = append(u.assessments, piece{typ: a.Type, hours: h})
				}
			}
		}
		u.reviews = interleave(reviews, flashes)
		if len(u.study) == 0 {
			u.noStudy = true
			u.due = 0
		}

		g, ok := byBase[t.Ref.BaseID]
		if !ok {
			g = &group{block: u.block}
			byBase[t.Ref.BaseID] = g
			run.groups = append(run.groups, g)
		}
		g.units = append(g.units, u)
	}

	for _, g := range run.groups {
		sort.SliceStable(g.units, func(i, j int) bool {
			return g.units[i].topic.Ref.Less(g.units[j].topic.Ref)
		})
	}
	sort.SliceStable(run.groups, func(i, j int) bool {
		a, b := run.groups[i].units[0].topic, run.groups[j].units[0].topic
		if in.OrderByBlock && run.groups[i].block != run.groups[j].block {
			return run.groups[i].block < run.groups[j].block
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Complexity.Rank() != b.Complexity.Rank() {
			return a.Complexity.Rank() < b.Complexity.Rank()
		}
		return a.Ref.BaseID < b.Ref.BaseID
	})
	for _, g := range run.groups {
		for _, u := range g.units {
			u.order = len(run.units)
			run.units = append(run.units, u)
		}
	}
	return run
}

// interleave alternates review and flash-review pieces.
func interleave(a, b []piece) []piece {
	out := make([]piece, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

func (run *rotationRun) offset(k int) int {
	offs := run.cfg.ReviewOffsets
	if len(offs) == 0 {
		return 1
	}
	if k >= len(offs) {
		k = len(offs) - 1
	}
	return offs[k]
}

// dueSlot returns the first slot on or after from+days, or the last slot
// when that date is past the cutoff.
func (run *rotationRun) dueSlot(from, days int) int {
	target := run.slots[from].date.AddDate(0, 0, days)
	i := sort.Search(len(run.slots), func(i int) bool {
		return !run.slots[i].date.Before(target)
	})
	if i >= len(run.slots) {
		return len(run.slots) - 1
	}
	return i
}

func (run *rotationRun) place(si int, u *unit, typ SessionType, h float64) {
	s := run.slots[si]
	s.used += h
	run.sessions = append(run.sessions, Session{
		Ref:       u.topic.Ref,
		PartLabel: partLabel(u.topic),
		Date:      s.date,
		Hours:     h,
		Type:      typ,
		Status:    StatusPending,
		Notes:     partNote(u.topic),
	})

	switch typ {
	case TypeStudy:
		s.themes[u.topic.Ref.BaseID] = true
		if u.firstStudy < 0 || si < u.firstStudy {
			u.firstStudy = si
		}
	case TypeReview, TypeFlashReview:
		u.reviewsDone++
	default:
		return
	}
	if len(u.reviews) > 0 {
		u.due = run.dueSlot(si, run.offset(u.reviewsDone))
	} else {
		u.due = -1
	}
}

func (run *rotationRun) placeReviews(si int) {
	var due []*unit
	for _, u := range run.units {
		if u.due >= 0 && u.due <= si && len(u.reviews) > 0 {
			due = append(due, u)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].order < due[j].order
	})
	s := run.slots[si]
	for _, u := range due {
		p := u.reviews[0]
		if !s.fits(p.hours) {
			continue
		}
		u.reviews = u.reviews[1:]
		run.place(si, u, p.typ, p.hours)
	}
}

// activeBlock is the lowest syllabus block that still has study left.
func (run *rotationRun) activeBlock() int {
	best, found := 0, false
	for _, g := range run.groups {
		if _, u := g.next(); u != nil && (!found || g.block < best) {
			best, found = g.block, true
		}
	}
	return best
}

func (run *rotationRun) placeStudy(si int) {
	s := run.slots[si]
	n := len(run.groups)
	for {
		block := 0
		if run.in.OrderByBlock {
			block = run.activeBlock()
		}
		placed := false
		for k := 0; k < n; k++ {
			gi := (run.cursor + k) % n
			g := run.groups[gi]
			if run.in.OrderByBlock && g.block != block {
				continue
			}
			pos, u := g.next()
			if u == nil {
				continue
			}
			h := u.study[0]
			if !s.fits(h) {
				continue
			}
			if !s.themes[u.topic.Ref.BaseID] && len(s.themes) >= run.in.TopicsPerDay {
				continue
			}
			u.study = u.study[1:]
			run.place(si, u, TypeStudy, h)
			g.inner = (pos + 1) % len(g.units)
			run.cursor = (gi + 1) % n
			placed = true
			break
		}
		if !placed {
			return
		}
	}
}

func (run *rotationRun) placeAssessments(si int) {
	s := run.slots[si]
	for _, studied := range []bool{true, false} {
		for _, u := range run.units {
			if len(u.assessments) == 0 || !u.started(si) || (len(u.study) == 0) != studied {
				continue
			}
			p := u.assessments[0]
			if !s.fits(p.hours) {
				continue
			}
			u.assessments = u.assessments[1:]
			run.place(si, u, p.typ, p.hours)
		}
	}
}

func (run *rotationRun) leftover() float64 {
	total := 0.0
	for _, u := range run.units {
		total += u.left()
	}
	return total
}

// sweep places leftover pieces into the earliest slot with spare capacity,
// optionally splitting them to the given size first.
func (run *rotationRun) sweep(size float64) {
	for _, u := range run.units {
		var kept []float64
		for _, h := range splitAll(u.study, size) {
			if si := run.findSlot(0, h, u, true); si >= 0 {
				run.place(si, u, TypeStudy, h)
				continue
			}
			kept = append(kept, h)
		}
		u.study = kept
	}
	for _, u := range run.units {
		u.reviews = run.sweepPieces(u, splitPieces(u.reviews, size))
		u.assessments = run.sweepPieces(u, splitPieces(u.assessments, size))
	}
}

func (run *rotationRun) sweepPieces(u *unit, pieces []piece) []piece {
	if !u.noStudy && u.firstStudy < 0 {
		return pieces
	}
	from := 0
	if !u.noStudy {
		from = u.firstStudy + 1
		if from >= len(run.slots) {
			from = len(run.slots) - 1
		}
	}
	var kept []piece
	for _, p := range pieces {
		if si := run.findSlot(from, p.hours, u, false); si >= 0 {
			run.place(si, u, p.typ, p.hours)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (run *rotationRun) findSlot(from int, h float64, u *unit, study bool) int {
	for si := from; si < len(run.slots); si++ {
		s := run.slots[si]
		if !s.fits(h) {
			continue
		}
		if study && !s.themes[u.topic.Ref.BaseID] && len(s.themes) >= run.in.TopicsPerDay {
			continue
		}
		return si
	}
	return -1
}

func splitAll(hours []float64, size float64) []float64 {
	if size <= 0 {
		return hours
	}
	var out []float64
	for _, h := range hours {
		out = append(out, chunk(h, size)...)
	}
	return out
}

func splitPieces(pieces []piece, size float64) []piece {
	if size <= 0 {
		return pieces
	}
	var out []piece
	for _, p := range pieces {
		for _, h := range chunk(p.hours, size) {
			out = append(out, piece{typ: p.typ, hours: h})
		}
	}
	return out
}

// compact merges same-day sessions of one topic and type while the merged
// length stays within limit. Day totals are unchanged.
func compact(sessions []Session, limit float64) []Session {
	SortSessions(sessions)
	type key struct {
		date time.Time
		ref  string
		typ  SessionType
	}
	index := make(map[key]int)
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		k := key{date: s.Date, ref: s.Ref.String(), typ: s.Type}
		if i, ok := index[k]; ok && out[i].Hours+s.Hours <= limit+epsilon {
			out[i].Hours += s.Hours
			continue
		}
		index[k] = len(out)
		out = append(out, s)
	}
	return out
}
