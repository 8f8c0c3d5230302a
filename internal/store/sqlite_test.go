package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/tickos/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRun(id string) *model.Run {
	return &model.Run{
		ID:        id,
		Name:      "sensor-node",
		FPU:       "single",
		State:     model.RunStateRunning,
		Manifest:  "name: sensor-node\n",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func sampleReports() []model.TaskReport {
	return []model.TaskReport{
		{ID: 0, Name: "sampler", Policy: model.PolicyPeriodicCatchup, Period: 10, Runs: 19, Missed: 1,
			TicksUsed: 40, StackSize: 1024, StackUsed: 300, CanaryOK: true},
		{ID: 1, Name: "idle", Policy: model.PolicyOpportunistic, Runs: 120, TicksUsed: 150,
			StackSize: 216, StackUsed: 216, CanaryOK: false, WaitDesc: "MUTEX_WAIT"},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	ok, err := hasColumn(context.Background(), st.db, "runs", "manifest")
	if err != nil || !ok {
		t.Errorf("manifest column missing: %v", err)
	}
}

func TestRunCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_1")

	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	got, err := st.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.Name != run.Name || got.FPU != "single" || got.State != model.RunStateRunning || got.Manifest != run.Manifest {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil", got.CompletedAt)
	}

	done := time.Now().UTC().Truncate(time.Millisecond)
	run.State = model.RunStateHalted
	run.Ticks = 77
	run.Switches = 12
	run.HaltReason = "STACK_OVERFLOW"
	run.CompletedAt = &done
	if err := st.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	got, _ = st.GetRun(ctx, "run_1")
	if got.State != model.RunStateHalted || got.Ticks != 77 || got.Switches != 12 || got.HaltReason != "STACK_OVERFLOW" {
		t.Errorf("after update: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, done)
	}

	if err := st.DeleteRun(ctx, "run_1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if got, err := st.GetRun(ctx, "run_1"); err != nil || got != nil {
		t.Errorf("after delete: %v, %v", got, err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_missing")
	if err != nil || got != nil {
		t.Errorf("GetRun = %v, %v; want nil, nil", got, err)
	}
}

func TestUpdateRun_NotFound(t *testing.T) {
	st := testStore(t)
	if err := st.UpdateRun(context.Background(), sampleRun("run_missing")); err == nil {
		t.Error("expected error")
	}
}

func TestListRuns_Filters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run_%d", i))
		run.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if i%2 == 1 {
			run.State = model.RunStateCompleted
			run.Name = "blinky"
		}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	tests := []struct {
		name      string
		opts      model.ListOptions
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{"all", model.DefaultListOptions(), 5, "run_4", 5},
		{"paged", model.ListOptions{Limit: 2, Offset: 1}, 5, "run_3", 2},
		{"state", model.ListOptions{State: model.RunStateCompleted}, 2, "run_3", 2},
		{"name", model.ListOptions{Name: "sensor-node"}, 3, "run_4", 3},
		{"both", model.ListOptions{Name: "blinky", State: model.RunStateRunning}, 0, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, total, err := st.ListRuns(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if total != tt.wantTotal || len(runs) != tt.wantLen {
				t.Fatalf("total/len = %d/%d, want %d/%d", total, len(runs), tt.wantTotal, tt.wantLen)
			}
			if tt.wantLen > 0 && runs[0].ID != tt.wantFirst {
				t.Errorf("first = %s, want %s", runs[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestSwitches(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.CreateRun(ctx, sampleRun("run_1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	first := []model.SwitchEvent{{Tick: 10, From: 2, To: 0}, {Tick: 12, From: 0, To: 1}}
	second := []model.SwitchEvent{{Tick: 20, From: 1, To: 0}, {Tick: 31, From: 0, To: 2}}
	if err := st.AddSwitches(ctx, "run_1", first); err != nil {
		t.Fatalf("AddSwitches: %v", err)
	}
	if err := st.AddSwitches(ctx, "run_1", second); err != nil {
		t.Fatalf("AddSwitches (append): %v", err)
	}
	if err := st.AddSwitches(ctx, "run_1", nil); err != nil {
		t.Fatalf("AddSwitches (empty): %v", err)
	}

	all, err := st.ListSwitches(ctx, "run_1", 0, 0)
	if err != nil {
		t.Fatalf("ListSwitches: %v", err)
	}
	want := append(append([]model.SwitchEvent{}, first...), second...)
	if len(all) != len(want) {
		t.Fatalf("switches = %+v, want %+v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("switch %d = %+v, want %+v", i, all[i], want[i])
		}
	}

	window, err := st.ListSwitches(ctx, "run_1", 12, 20)
	if err != nil {
		t.Fatalf("ListSwitches window: %v", err)
	}
	if len(window) != 2 || window[0].Tick != 12 || window[1].Tick != 20 {
		t.Errorf("window = %+v", window)
	}
}

func TestSwitches_UnknownRun(t *testing.T) {
	st := testStore(t)
	err := st.AddSwitches(context.Background(), "run_missing", []model.SwitchEvent{{Tick: 1, From: 0, To: 1}})
	if err == nil {
		t.Error("expected foreign key error")
	}
}

func TestTaskReports(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.CreateRun(ctx, sampleRun("run_1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	reports := sampleReports()
	if err := st.SaveTaskReports(ctx, "run_1", reports); err != nil {
		t.Fatalf("SaveTaskReports: %v", err)
	}
	// Saving again replaces the set.
	if err := st.SaveTaskReports(ctx, "run_1", reports); err != nil {
		t.Fatalf("SaveTaskReports (replace): %v", err)
	}

	got, err := st.ListTaskReports(ctx, "run_1")
	if err != nil {
		t.Fatalf("ListTaskReports: %v", err)
	}
	if len(got) != len(reports) {
		t.Fatalf("reports = %d, want %d", len(got), len(reports))
	}
	for i := range reports {
		if got[i] != reports[i] {
			t.Errorf("report %d = %+v, want %+v", i, got[i], reports[i])
		}
	}

	run, err := st.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(run.Tasks) != 2 {
		t.Errorf("run tasks = %d, want 2", len(run.Tasks))
	}

	if err := st.DeleteRun(ctx, "run_1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if got, _ := st.ListTaskReports(ctx, "run_1"); len(got) != 0 {
		t.Errorf("reports survived run delete: %+v", got)
	}
}

func TestRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_rec")
	run.State = model.RunStateCompleted
	run.Tasks = sampleReports()
	events := []model.SwitchEvent{{Tick: 1, From: 1, To: 0}, {Tick: 3, From: 0, To: 1}}

	if err := Record(ctx, st, run, events); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := st.GetRun(ctx, "run_rec")
	if err != nil || got == nil {
		t.Fatalf("GetRun: %v, %v", got, err)
	}
	if got.State != model.RunStateCompleted || len(got.Tasks) != 2 {
		t.Errorf("run = %+v", got)
	}
	switches, _ := st.ListSwitches(ctx, "run_rec", 0, 0)
	if len(switches) != 2 {
		t.Errorf("switches = %+v", switches)
	}
	if err := Record(ctx, st, run, events); err == nil {
		t.Error("recording the same run twice should fail")
	}
}
