package schedule

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Linear is the fallback generator. It walks the days in order and fills
// each one with work from the topics in id order. Reviews follow study after
// a fixed gap instead of growing offsets. Work those rules strand is swept
// into whatever capacity is left, so any feasible input gets a schedule.
type Linear struct {
	cfg Config
}

// NewLinear creates a linear scheduler.
func NewLinear(cfg Config) *Linear {
	return &Linear{cfg: cfg}
}

func (l *Linear) Kind() Kind { return KindLinear }

type linearTopic struct {
	topic      Topic
	study      float64
	reviews    []piece
	tests      []piece
	firstStudy int
	lastStudy  int
}

// Generate runs in O(days × topics). It fails only when there are no
// topics or when the required hours exceed the available ones.
func (l *Linear) Generate(ctx context.Context, in Input) (*Result, error) {
	if len(in.Topics) == 0 {
		return nil, &SchedulingFailure{Strategy: KindLinear, Reason: "no themes to schedule"}
	}

	type day struct {
		si   int
		free float64
	}
	var days []*day
	var dates = DaysBetween(in.Start, Cutoff(in.Exam, l.cfg.BufferDays))
	var slotDates []int
	for i, d := range dates {
		if h := in.Week.For(d.Weekday()); h > 0 {
			days = append(days, &day{si: len(days), free: h})
			slotDates = append(slotDates, i)
		}
	}
	if len(days) == 0 {
		return nil, &SchedulingFailure{
			Strategy:      KindLinear,
			UnplacedHours: TotalRequired(in.Topics),
			Reason:        "no available study days before the buffer cutoff",
		}
	}
	last := len(days) - 1

	topics := make([]*linearTopic, 0, len(in.Topics))
	for _, t := range in.Topics {
		lt := &linearTopic{topic: t, firstStudy: -1, lastStudy: -1}
		for _, a := range MixFor(t, 0) {
			switch a.Type {
			case TypeStudy:
				lt.study = a.Hours
			case TypeReview, TypeFlashReview:
				lt.reviews = append(lt.reviews, piece{typ: a.Type, hours: a.Hours})
			default:
				lt.tests = append(lt.tests, piece{typ: a.Type, hours: a.Hours})
			}
		}
		topics = append(topics, lt)
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].topic.Ref.Less(topics[j].topic.Ref) })

	limit := sessionCap(l.cfg, in.Week)
	gap := l.cfg.LinearReviewGap
	var sessions []Session
	emit := func(d *day, lt *linearTopic, typ SessionType, h float64) {
		d.free -= h
		sessions = append(sessions, Session{
			Ref:       lt.topic.Ref,
			PartLabel: partLabel(lt.topic),
			Date:      dates[slotDates[d.si]],
			Hours:     h,
			Type:      typ,
			Status:    StatusPending,
			Notes:     partNote(lt.topic),
		})
	}
	// reviewFrom is the first day index a topic's reviews may use.
	reviewFrom := func(lt *linearTopic) int {
		if lt.lastStudy < 0 && lt.study > epsilon {
			return math.MaxInt
		}
		target := dates[slotDates[max(lt.lastStudy, 0)]].AddDate(0, 0, gap)
		i := sort.Search(len(days), func(i int) bool {
			return !dates[slotDates[i]].Before(target)
		})
		return min(i, last)
	}

	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, lt := range topics {
			for lt.study > epsilon && d.free > epsilon {
				h := math.Min(math.Min(lt.study, d.free), limit)
				lt.study -= h
				if lt.firstStudy < 0 {
					lt.firstStudy = d.si
				}
				lt.lastStudy = d.si
				emit(d, lt, TypeStudy, h)
			}
			if d.free <= epsilon {
				break
			}
			if len(lt.reviews) > 0 && d.si >= reviewFrom(lt) {
				lt.reviews = fill(d.free, limit, lt.reviews, func(typ SessionType, h float64) { emit(d, lt, typ, h) })
			}
			if lt.study <= epsilon && (lt.lastStudy < d.si || d.si == last) {
				lt.tests = fill(d.free, limit, lt.tests, func(typ SessionType, h float64) { emit(d, lt, typ, h) })
			}
			if d.free <= epsilon {
				break
			}
		}
	}

	// Sweep stranded pieces into spare capacity, after the topic's first
	// study day when there is room, otherwise anywhere.
	moved := 0.0
	sweep := func(lt *linearTopic, from int, pieces []piece) []piece {
		for _, d := range days[from:] {
			if len(pieces) == 0 {
				break
			}
			if d.free > epsilon {
				pieces = fill(d.free, limit, pieces, func(typ SessionType, h float64) {
					moved += h
					emit(d, lt, typ, h)
				})
			}
		}
		return pieces
	}
	for _, lt := range topics {
		if lt.study > epsilon {
			rest := sweep(lt, 0, []piece{{typ: TypeStudy, hours: lt.study}})
			lt.study = 0
			for _, p := range rest {
				lt.study += p.hours
			}
		}
		for _, from := range []int{min(lt.firstStudy+1, last), 0} {
			lt.reviews = sweep(lt, from, lt.reviews)
			lt.tests = sweep(lt, from, lt.tests)
		}
	}

	left := 0.0
	for _, lt := range topics {
		left += lt.study
		for _, p := range lt.reviews {
			left += p.hours
		}
		for _, p := range lt.tests {
			left += p.hours
		}
	}
	if left > epsilon {
		return nil, &SchedulingFailure{Strategy: KindLinear, UnplacedHours: left}
	}

	var warnings []string
	if moved > epsilon {
		warnings = append(warnings, fmt.Sprintf("%.2f hours swept into spare capacity to fit the calendar", roundHours(moved)))
	}
	AssignIDs(in.PlanID, sessions)
	return &Result{Strategy: KindLinear, Sessions: sessions, Warnings: warnings}, nil
}

// fill consumes pieces into free hours in sessions of at most limit hours,
// splitting pieces that do not fit whole, and returns what is left.
func fill(free, limit float64, pieces []piece, emit func(SessionType, float64)) []piece {
	for len(pieces) > 0 && free > epsilon {
		p := &pieces[0]
		h := math.Min(math.Min(p.hours, free), limit)
		emit(p.typ, h)
		free -= h
		p.hours -= h
		if p.hours <= epsilon {
			pieces = pieces[1:]
		}
	}
	return pieces
}
