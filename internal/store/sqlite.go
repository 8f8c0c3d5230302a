package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/tickos/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Run CRUD ---

const runColumns = `id, name, fpu, state, ticks, switches, halt_reason, manifest, created_at, completed_at`

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.FPU, string(run.State), run.Ticks, run.Switches, run.HaltReason, run.Manifest,
		run.CreatedAt.Format(time.RFC3339Nano), formatTimePtr(run.CompletedAt),
	)
	return err
}

// GetRun returns the run with its task reports, or nil if it does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.Tasks, err = s.ListTaskReports(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load task reports: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	// Build WHERE clause dynamically based on filters.
	var whereClauses []string
	var countArgs []any

	if opts.State != "" {
		whereClauses = append(whereClauses, "state = ?")
		countArgs = append(countArgs, string(opts.State))
	}
	if opts.Name != "" {
		whereClauses = append(whereClauses, "name = ?")
		countArgs = append(countArgs, opts.Name)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + runColumns + ` FROM runs` + whereSQL + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID, "state", run.State)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, ticks = ?, switches = ?, halt_reason = ?, completed_at = ? WHERE id = ?`,
		string(run.State), run.Ticks, run.Switches, run.HaltReason, formatTimePtr(run.CompletedAt), run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// --- Trace operations ---

// AddSwitches appends events to the run's switch trace.
func (s *SQLiteStore) AddSwitches(ctx context.Context, runID string, events []model.SwitchEvent) error {
	s.logger.Debug("sql", "op", "insert", "table", "switch_events", "run_id", runID, "count", len(events))
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM switch_events WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO switch_events (run_id, seq, tick, from_task, to_task) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx, runID, next+i, e.Tick, int(e.From), int(e.To)); err != nil {
			return fmt.Errorf("insert switch %d: %w", next+i, err)
		}
	}
	return tx.Commit()
}

// ListSwitches returns the run's switches with from <= tick <= to, in order.
// A zero to means no upper bound.
func (s *SQLiteStore) ListSwitches(ctx context.Context, runID string, from, to uint32) ([]model.SwitchEvent, error) {
	s.logger.Debug("sql", "op", "list", "table", "switch_events", "run_id", runID, "from", from, "to", to)

	query := `SELECT tick, from_task, to_task FROM switch_events WHERE run_id = ? AND tick >= ?`
	args := []any{runID, from}
	if to > 0 {
		query += ` AND tick <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SwitchEvent
	for rows.Next() {
		var e model.SwitchEvent
		var fromTask, toTask int
		if err := rows.Scan(&e.Tick, &fromTask, &toTask); err != nil {
			return nil, err
		}
		e.From, e.To = model.TaskID(fromTask), model.TaskID(toTask)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveTaskReports replaces the run's task reports.
func (s *SQLiteStore) SaveTaskReports(ctx context.Context, runID string, reports []model.TaskReport) error {
	s.logger.Debug("sql", "op", "replace", "table", "task_reports", "run_id", runID, "count", len(reports))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_reports WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for _, r := range reports {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_reports (run_id, task_id, name, policy, priority, period, runs, missed,
				ticks_used, stack_size, stack_used, canary_ok, wait_desc)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, int(r.ID), r.Name, string(r.Policy), int(r.Priority), r.Period, r.Runs, r.Missed,
			r.TicksUsed, r.StackSize, r.StackUsed, boolToInt(r.CanaryOK), r.WaitDesc,
		)
		if err != nil {
			return fmt.Errorf("insert report for task %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListTaskReports(ctx context.Context, runID string) ([]model.TaskReport, error) {
	s.logger.Debug("sql", "op", "list", "table", "task_reports", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, name, policy, priority, period, runs, missed, ticks_used, stack_size, stack_used, canary_ok, wait_desc
		 FROM task_reports WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.TaskReport
	for rows.Next() {
		var r model.TaskReport
		var id, priority, canary int
		var policy string
		if err := rows.Scan(&id, &r.Name, &policy, &priority, &r.Period, &r.Runs, &r.Missed,
			&r.TicksUsed, &r.StackSize, &r.StackUsed, &canary, &r.WaitDesc); err != nil {
			return nil, err
		}
		r.ID = model.TaskID(id)
		r.Policy = model.Policy(policy)
		r.Priority = uint8(priority)
		r.CanaryOK = canary != 0
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var state, createdAt string
	var completedAt *string
	if err := row.Scan(&run.ID, &run.Name, &run.FPU, &state, &run.Ticks, &run.Switches,
		&run.HaltReason, &run.Manifest, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	run.State = model.RunState(state)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.CompletedAt = parseTimePtr(completedAt)
	return &run, nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
