package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/theme"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), opts...)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := time.Parse(schedule.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testPlan(id, userID string) *Plan {
	return &Plan{
		ID:           id,
		UserID:       userID,
		StartDate:    day("2025-01-06"),
		ExamDate:     day("2025-06-30"),
		Methodology:  MethodologyRotation,
		TopicsPerDay: 3,
		Status:       PlanActive,
		BufferDays:   30,
		Week:         schedule.WeeklyAvailability{Monday: 2, Tuesday: 2, Wednesday: 2, Thursday: 2, Friday: 2},
		Topics: []schedule.Topic{
			{Ref: theme.Ref{BaseID: 1}, Name: "Constitución", Hours: 10, Complexity: theme.ComplexityMedium},
			{Ref: theme.Ref{BaseID: 7, Part: 2}, Name: "Carrera militar", Hours: 4, Complexity: theme.ComplexityHigh},
		},
	}
}

func testSessions(n int) []schedule.Session {
	out := make([]schedule.Session, n)
	start := day("2025-01-06")
	for i := range out {
		out[i] = schedule.Session{
			ID:    fmt.Sprintf("s-%03d", i),
			Ref:   theme.Ref{BaseID: i%3 + 1},
			Date:  start.AddDate(0, 0, i/2),
			Hours: 1.5,
			Type:  schedule.TypeStudy,
		}
	}
	return out
}

func mustCreate(t *testing.T, s *Store, p *Plan) {
	t.Helper()
	if _, err := s.PlanRepo().CreateExclusive(context.Background(), p); err != nil {
		t.Fatalf("create plan %s: %v", p.ID, err)
	}
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked against a file database below.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "opoplan.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opoplan.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.ThemeRepo().Upsert(ctx, []theme.Theme{{ID: 3, Title: "Tema 3", EstimatedHours: 8}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.ThemeRepo().Get(ctx, 3)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Title != "Tema 3" {
		t.Errorf("title = %q, want Tema 3", got.Title)
	}
}

func TestDefaultDBPathFromEnv(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "plan.db")
	t.Setenv("OPOPLAN_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDefaultDBPathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPOPLAN_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if want := filepath.Join(dir, "opoplan", "opoplan.db"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestThemeUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	repo := s.ThemeRepo()
	ctx := context.Background()

	err := repo.Upsert(ctx, []theme.Theme{
		{ID: 9, Title: "Tema 9", EstimatedHours: 6, Complexity: "high"},
		{ID: 2, Title: "Tema 2", EstimatedHours: 4},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second upsert replaces by id.
	if err := repo.Upsert(ctx, []theme.Theme{{ID: 2, Title: "Tema 2 bis", EstimatedHours: 5, PartCount: 2}}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	themes, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(themes) != 2 {
		t.Fatalf("len = %d, want 2", len(themes))
	}
	if themes[0].ID != 2 || themes[1].ID != 9 {
		t.Errorf("order = %d,%d, want 2,9", themes[0].ID, themes[1].ID)
	}
	if themes[0].Title != "Tema 2 bis" || themes[0].PartCount != 2 {
		t.Errorf("theme 2 = %+v, want replaced values", themes[0])
	}
	if themes[0].BlockID != 1 || themes[1].BlockID != 2 {
		t.Errorf("block ids = %d,%d, want 1,2", themes[0].BlockID, themes[1].BlockID)
	}
	if themes[1].Complexity != theme.ComplexityHigh {
		t.Errorf("complexity = %q, want HIGH", themes[1].Complexity)
	}
}

func TestThemeGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ThemeRepo().Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPlanCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.PlanRepo()
	ctx := context.Background()

	p := testPlan("plan-1", "user-1")
	p.Warnings = []string{"tight"}
	mustCreate(t, s, p)

	got, err := repo.Get(ctx, "plan-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "user-1" || got.Status != PlanActive {
		t.Errorf("plan = %+v", got)
	}
	if !got.StartDate.Equal(p.StartDate) || !got.ExamDate.Equal(p.ExamDate) {
		t.Errorf("dates = %v..%v, want %v..%v", got.StartDate, got.ExamDate, p.StartDate, p.ExamDate)
	}
	if got.Week != p.Week {
		t.Errorf("week = %+v, want %+v", got.Week, p.Week)
	}
	if len(got.Topics) != 2 || got.Topics[1].Ref != (theme.Ref{BaseID: 7, Part: 2}) {
		t.Errorf("topics = %+v", got.Topics)
	}
	if got.GenerationState != GenerationQueued {
		t.Errorf("generation state = %q, want queued", got.GenerationState)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "tight" {
		t.Errorf("warnings = %v", got.Warnings)
	}
	if got.Blocks != nil {
		t.Errorf("blocks = %v, want nil", got.Blocks)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing plan err = %v, want ErrNotFound", err)
	}
}

func TestPlanBlocksRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := testPlan("plan-blocks", "user-1")
	p.Methodology = MethodologyCustomBlocks
	p.AvailableDailyMinutes = 180
	p.Blocks = []schedule.BlockConfig{{
		BlockNumber: 1,
		StartDate:   schedule.NewDate(day("2025-01-06")),
		EndDate:     schedule.NewDate(day("2025-01-31")),
		WeeklyPattern: schedule.WeeklyPattern{
			Monday: []schedule.Activity{{ThemeID: theme.Ref{BaseID: 1}, ActivityType: schedule.TypeStudy, DurationMinutes: 90}},
		},
	}}
	mustCreate(t, s, p)

	got, err := s.PlanRepo().Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(got.Blocks))
	}
	b := got.Blocks[0]
	if b.StartDate.String() != "2025-01-06" || len(b.WeeklyPattern.Monday) != 1 {
		t.Errorf("block = %+v", b)
	}
	if got.AvailableDailyMinutes != 180 {
		t.Errorf("available minutes = %d, want 180", got.AvailableDailyMinutes)
	}
}

func TestCreateExclusiveCancelsActive(t *testing.T) {
	s := openTestStore(t)
	repo := s.PlanRepo()
	ctx := context.Background()

	mustCreate(t, s, testPlan("old", "user-1"))
	mustCreate(t, s, testPlan("other-user", "user-2"))

	demoted, err := repo.CreateExclusive(ctx, testPlan("new", "user-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(demoted) != 1 || demoted[0] != "old" {
		t.Errorf("demoted = %v, want [old]", demoted)
	}

	old, _ := repo.Get(ctx, "old")
	if old.Status != PlanCancelled {
		t.Errorf("old status = %q, want CANCELLED", old.Status)
	}
	other, _ := repo.Get(ctx, "other-user")
	if other.Status != PlanActive {
		t.Errorf("other user's plan status = %q, want ACTIVE", other.Status)
	}

	active, err := repo.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != "new" {
		t.Errorf("active = %q, want new", active.ID)
	}
}

func TestActivatePausesOthers(t *testing.T) {
	s := openTestStore(t)
	repo := s.PlanRepo()
	ctx := context.Background()

	mustCreate(t, s, testPlan("a", "user-1"))
	if err := repo.SetStatus(ctx, "a", PlanPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	mustCreate(t, s, testPlan("b", "user-1"))

	if err := repo.Activate(ctx, "a"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	a, _ := repo.Get(ctx, "a")
	b, _ := repo.Get(ctx, "b")
	if a.Status != PlanActive || b.Status != PlanPaused {
		t.Errorf("statuses = %q,%q, want ACTIVE,PAUSED", a.Status, b.Status)
	}

	if err := repo.Activate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("activate missing err = %v, want ErrNotFound", err)
	}
}

func TestActiveNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.PlanRepo().Active(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testPlan("first", "user-1")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	mustCreate(t, s, first)
	mustCreate(t, s, testPlan("second", "user-1"))
	mustCreate(t, s, testPlan("foreign", "user-2"))

	plans, err := s.PlanRepo().ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("len = %d, want 2", len(plans))
	}
	if plans[0].ID != "second" || plans[1].ID != "first" {
		t.Errorf("order = %s,%s, want second,first", plans[0].ID, plans[1].ID)
	}
}

func TestSetGenerationAndPending(t *testing.T) {
	s := openTestStore(t)
	repo := s.PlanRepo()
	ctx := context.Background()

	mustCreate(t, s, testPlan("p1", "user-1"))
	mustCreate(t, s, testPlan("p2", "user-2"))

	pending, err := repo.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want 2 ids", pending)
	}

	err = repo.SetGeneration(ctx, "p1", GenerationUpdate{
		State:    GenerationSucceeded,
		Strategy: string(schedule.KindLinear),
		Warnings: []string{"fallback"},
	})
	if err != nil {
		t.Fatalf("set generation: %v", err)
	}
	err = repo.SetGeneration(ctx, "p2", GenerationUpdate{
		State:  GenerationFailed,
		Error:  "boom",
		Status: PlanPaused,
	})
	if err != nil {
		t.Fatalf("set generation: %v", err)
	}

	p1, _ := repo.Get(ctx, "p1")
	if p1.GenerationState != GenerationSucceeded || p1.Strategy != "LINEAR" || len(p1.Warnings) != 1 {
		t.Errorf("p1 = %+v", p1)
	}
	if p1.Status != PlanActive {
		t.Errorf("p1 status = %q, want unchanged ACTIVE", p1.Status)
	}
	p2, _ := repo.Get(ctx, "p2")
	if p2.GenerationState != GenerationFailed || p2.GenerationError != "boom" || p2.Status != PlanPaused {
		t.Errorf("p2 = %+v", p2)
	}

	pending, _ = repo.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after completion = %v", pending)
	}

	if err := repo.SetGeneration(ctx, "missing", GenerationUpdate{State: GenerationRunning}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing plan err = %v, want ErrNotFound", err)
	}
}

func TestReplaceForPlanChunks(t *testing.T) {
	s := openTestStore(t, WithBatchSize(4))
	repo := s.SessionRepo()
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))

	if err := repo.ReplaceForPlan(ctx, "plan-1", testSessions(10)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := repo.ListByPlan(ctx, "plan-1", SessionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i, sess := range got {
		if sess.ID != fmt.Sprintf("s-%03d", i) {
			t.Errorf("session %d id = %q, order not preserved", i, sess.ID)
		}
		if sess.PlanID != "plan-1" || sess.Status != schedule.StatusPending {
			t.Errorf("session %d = %+v", i, sess)
		}
		if sess.Hours != 1.5 {
			t.Errorf("session %d hours = %v, want 1.5", i, sess.Hours)
		}
	}

	// Replacing drops the previous rows.
	if err := repo.ReplaceForPlan(ctx, "plan-1", testSessions(3)); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	b, err := repo.Bounds(ctx, "plan-1")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b.Count != 3 {
		t.Errorf("count = %d, want 3", b.Count)
	}
	if !b.First.Equal(day("2025-01-06")) || !b.Last.Equal(day("2025-01-07")) {
		t.Errorf("bounds = %v..%v", b.First, b.Last)
	}
}

func TestReplaceForPlanFailedChunkLeavesNothing(t *testing.T) {
	s := openTestStore(t, WithBatchSize(2))
	repo := s.SessionRepo()
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))

	sessions := testSessions(5)
	sessions[3].ID = sessions[0].ID // primary key clash in the second chunk

	err := repo.ReplaceForPlan(ctx, "plan-1", sessions)
	if err == nil {
		t.Fatal("expected error for duplicate session id")
	}
	if !strings.Contains(err.Error(), "chunk 2/3") {
		t.Errorf("err = %v, want chunk 2/3", err)
	}
	b, _ := repo.Bounds(ctx, "plan-1")
	if b.Count != 0 {
		t.Errorf("count = %d, want 0 after failed replace", b.Count)
	}
}

func TestReplaceForUnknownPlanFails(t *testing.T) {
	s := openTestStore(t)
	err := s.SessionRepo().ReplaceForPlan(context.Background(), "ghost", testSessions(1))
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestBoundsEmpty(t *testing.T) {
	s := openTestStore(t)
	b, err := s.SessionRepo().Bounds(context.Background(), "none")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b.Count != 0 || !b.First.IsZero() || !b.Last.IsZero() {
		t.Errorf("bounds = %+v, want zero", b)
	}
}

func TestListByPlanFilters(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))

	sessions := testSessions(8)
	sessions[5].Type = schedule.TypeReview
	sessions[6].Type = schedule.TypeReview
	if err := repo.ReplaceForPlan(ctx, "plan-1", sessions); err != nil {
		t.Fatalf("replace: %v", err)
	}

	tests := []struct {
		name   string
		filter SessionFilter
		want   int
	}{
		{"all", SessionFilter{}, 8},
		{"from", SessionFilter{From: day("2025-01-08")}, 4},
		{"to", SessionFilter{To: day("2025-01-06")}, 2},
		{"range", SessionFilter{From: day("2025-01-07"), To: day("2025-01-08")}, 4},
		{"type", SessionFilter{Type: schedule.TypeReview}, 2},
		{"status", SessionFilter{Status: schedule.StatusCompleted}, 0},
		{"page", SessionFilter{Limit: 3, Offset: 6}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByPlan(ctx, "plan-1", tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSessionUpdate(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))
	if err := repo.ReplaceForPlan(ctx, "plan-1", testSessions(2)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	status := schedule.StatusCompleted
	hours := 1.25
	notes := "Tema 1. repaso"
	got, err := repo.Update(ctx, "s-001", SessionUpdate{Status: &status, CompletedHours: &hours, Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != schedule.StatusCompleted || got.Notes != notes {
		t.Errorf("session = %+v", got)
	}
	if got.CompletedHours == nil || *got.CompletedHours != 1.25 {
		t.Errorf("completed hours = %v, want 1.25", got.CompletedHours)
	}

	untouched, err := repo.Get(ctx, "s-000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if untouched.Status != schedule.StatusPending || untouched.CompletedHours != nil {
		t.Errorf("untouched session = %+v", untouched)
	}

	if _, err := repo.Update(ctx, "missing", SessionUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}

func TestSessionHoursParsedLeniently(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))
	if err := s.SessionRepo().ReplaceForPlan(ctx, "plan-1", testSessions(1)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// Rows edited by hand may carry textual hours.
	if _, err := s.DB().Exec(`UPDATE sessions SET hours = '2,5' WHERE id = 's-000'`); err != nil {
		t.Fatalf("raw update: %v", err)
	}
	got, err := s.SessionRepo().Get(ctx, "s-000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Hours != 2.5 {
		t.Errorf("hours = %v, want 2.5", got.Hours)
	}
}

func TestPlanDeleteRemovesSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, testPlan("plan-1", "user-1"))
	if err := s.SessionRepo().ReplaceForPlan(ctx, "plan-1", testSessions(4)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := s.PlanRepo().Delete(ctx, "plan-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	b, _ := s.SessionRepo().Bounds(ctx, "plan-1")
	if b.Count != 0 {
		t.Errorf("sessions left = %d, want 0", b.Count)
	}
	if err := s.PlanRepo().Delete(ctx, "plan-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDraftSaveLoad(t *testing.T) {
	s := openTestStore(t)
	repo := s.DraftRepo()
	ctx := context.Background()

	if _, _, err := repo.Load(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load empty err = %v, want ErrNotFound", err)
	}

	if err := repo.Save(ctx, "user-1", []byte(`{"blocks":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, "user-1", []byte(`{"blocks":[1]}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, updated, err := repo.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"blocks":[1]}` {
		t.Errorf("data = %s", data)
	}
	if updated.IsZero() {
		t.Error("updated_at not set")
	}
}
