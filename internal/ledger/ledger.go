// Package ledger implements the time-tracking ledger: named timers backed
// by SQLite, with start/stop/active operations.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrInconsistent reports a ledger state the dispatcher must not guess
// around, e.g. more than one open timer for the same task.
var ErrInconsistent = errors.New("ledger inconsistent")

// ErrNoActiveTimer is returned by StopLatest when nothing is running.
var ErrNoActiveTimer = errors.New("no active timer")

// Timer is one time entry. End is nil while the timer is running.
type Timer struct {
	ID       int64
	TaskRef  string
	Start    time.Time
	End      *time.Time
	Billable bool
	Notes    string
}

// Ledger wraps the time-tracking database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the time-tracking database under statePath.
func Open(statePath string) (*Ledger, error) {
	dbPath := filepath.Join(statePath, "time_tracking.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER REFERENCES clients(id),
			name TEXT NOT NULL,
			UNIQUE(client_id, name)
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER REFERENCES projects(id),
			description TEXT NOT NULL,
			tags TEXT
		);

		CREATE TABLE IF NOT EXISTS time_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER REFERENCES tasks(id),
			start_time TEXT NOT NULL,
			end_time TEXT,
			billable INTEGER DEFAULT 1,
			notes TEXT
		);
	`)
	return err
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start opens a timer for the given task description and returns its entry id.
// An existing task row with the same description is reused.
func (l *Ledger) Start(taskRef string, billable bool, notes string) (int64, error) {
	taskID, err := l.taskID(taskRef)
	if err != nil {
		return 0, err
	}

	res, err := l.db.Exec(
		`INSERT INTO time_entries (task_id, start_time, billable, notes) VALUES (?, ?, ?, ?)`,
		taskID, time.Now().UTC().Format(time.RFC3339), boolToInt(billable), notes,
	)
	if err != nil {
		return 0, fmt.Errorf("start timer: %w", err)
	}
	return res.LastInsertId()
}

// Stop closes the timer with the given id. Stopping an already-closed timer
// is a no-op, which keeps retries idempotent.
func (l *Ledger) Stop(id int64) error {
	_, err := l.db.Exec(
		`UPDATE time_entries SET end_time = ? WHERE id = ? AND end_time IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("stop timer %d: %w", id, err)
	}
	return nil
}

// Active returns all running timers, most recent start first.
func (l *Ledger) Active() ([]Timer, error) {
	rows, err := l.db.Query(
		`SELECT e.id, t.description, e.start_time, e.billable, e.notes
		 FROM time_entries e JOIN tasks t ON t.id = e.task_id
		 WHERE e.end_time IS NULL
		 ORDER BY e.start_time DESC, e.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active timers: %w", err)
	}
	defer rows.Close()

	var timers []Timer
	for rows.Next() {
		var tm Timer
		var start string
		var billable int
		if err := rows.Scan(&tm.ID, &tm.TaskRef, &start, &billable, &tm.Notes); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		tm.Start, _ = time.Parse(time.RFC3339, start)
		tm.Billable = billable != 0
		timers = append(timers, tm)
	}
	return timers, rows.Err()
}

// StopLatest stops the most-recently-started open timer and returns it.
// More than one open timer for the same task violates the ledger's invariant
// and is surfaced as ErrInconsistent rather than silently picking one.
func (l *Ledger) StopLatest() (*Timer, error) {
	active, err := l.Active()
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrNoActiveTimer
	}

	seen := make(map[string]bool, len(active))
	for _, tm := range active {
		if seen[tm.TaskRef] {
			return nil, fmt.Errorf("%w: task %q has more than one open timer", ErrInconsistent, tm.TaskRef)
		}
		seen[tm.TaskRef] = true
	}

	latest := active[0]
	if err := l.Stop(latest.ID); err != nil {
		return nil, err
	}
	return &latest, nil
}

// BillableToday returns the total billable hours logged today (UTC),
// counting running timers up to now.
func (l *Ledger) BillableToday() (float64, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	rows, err := l.db.Query(
		`SELECT start_time, end_time FROM time_entries
		 WHERE billable = 1 AND start_time >= ?`,
		dayStart,
	)
	if err != nil {
		return 0, fmt.Errorf("billable today: %w", err)
	}
	defer rows.Close()

	var total time.Duration
	now := time.Now().UTC()
	for rows.Next() {
		var start string
		var end sql.NullString
		if err := rows.Scan(&start, &end); err != nil {
			return 0, fmt.Errorf("scan entry: %w", err)
		}
		s, err := time.Parse(time.RFC3339, start)
		if err != nil {
			continue
		}
		e := now
		if end.Valid {
			if parsed, err := time.Parse(time.RFC3339, end.String); err == nil {
				e = parsed
			}
		}
		if e.After(s) {
			total += e.Sub(s)
		}
	}
	return total.Hours(), rows.Err()
}

func (l *Ledger) taskID(description string) (int64, error) {
	var id int64
	err := l.db.QueryRow(`SELECT id FROM tasks WHERE description = ?`, description).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup task: %w", err)
	}

	res, err := l.db.Exec(`INSERT INTO tasks (description) VALUES (?)`, description)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return res.LastInsertId()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
