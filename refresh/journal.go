package refresh

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/aphelion-labs/meteorid/errors"
)

// Entry is one row of the refresh journal: a single refresh attempt and how
// it ended. Provides history for debugging staleness decisions and failed
// fetches.
type Entry struct {
	ID           string     `json:"id"`
	Trigger      Trigger    `json:"trigger"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Outcome      Outcome    `json:"outcome"`
	RawRows      int        `json:"raw_rows"`
	RetainedRows int        `json:"retained_rows"`
	RemoteCount  *int       `json:"remote_count,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Trigger records what initiated a refresh attempt.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Outcome is the terminal state of a journal entry.
type Outcome string

const (
	OutcomeRunning Outcome = "running"
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped" // staleness check decided no refetch was needed
	OutcomeFailed  Outcome = "failed"
)

// Journal persists refresh history to the refresh_log table.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Begin opens a journal entry for a refresh attempt and returns its ID.
func (j *Journal) Begin(trigger Trigger) (string, error) {
	id := uuid.NewString()
	_, err := j.db.Exec(
		`INSERT INTO refresh_log (id, trigger_kind, started_at, outcome) VALUES (?, ?, ?, ?)`,
		id, string(trigger), time.Now().UTC(), string(OutcomeRunning),
	)
	if err != nil {
		return "", errors.Wrap(err, "begin journal entry")
	}
	return id, nil
}

// Finish closes a journal entry with its terminal outcome and counts.
// remoteCount may be nil when the upstream count query was unavailable.
func (j *Journal) Finish(id string, outcome Outcome, rawRows, retainedRows int, remoteCount *int, refreshErr error) error {
	var errText interface{}
	if refreshErr != nil {
		errText = refreshErr.Error()
	}
	var remote interface{}
	if remoteCount != nil {
		remote = *remoteCount
	}

	_, err := j.db.Exec(
		`UPDATE refresh_log
		 SET finished_at = ?, outcome = ?, raw_rows = ?, retained_rows = ?, remote_count = ?, error = ?
		 WHERE id = ?`,
		time.Now().UTC(), string(outcome), rawRows, retainedRows, remote, errText, id,
	)
	if err != nil {
		return errors.Wrap(err, "finish journal entry")
	}
	return nil
}

// LastSuccessRawRows returns the raw fetched row count of the most recent
// successful refresh, ok=false when none has ever succeeded. Staleness checks
// compare this to the remote count.
func (j *Journal) LastSuccessRawRows() (int, bool, error) {
	row := j.db.QueryRow(
		`SELECT raw_rows FROM refresh_log WHERE outcome = ?
		 ORDER BY started_at DESC, id LIMIT 1`, string(OutcomeSuccess))

	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "query last successful refresh")
	}
	return n, true, nil
}

// Recent returns the latest entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(
		`SELECT id, trigger_kind, started_at, finished_at, outcome, raw_rows, retained_rows, remote_count, error
		 FROM refresh_log ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query refresh journal")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var trigger, outcome string
		var finishedAt sql.NullTime
		var remoteCount sql.NullInt64
		var errText sql.NullString

		if err := rows.Scan(&e.ID, &trigger, &e.StartedAt, &finishedAt, &outcome,
			&e.RawRows, &e.RetainedRows, &remoteCount, &errText); err != nil {
			return nil, errors.Wrap(err, "scan journal entry")
		}
		e.Trigger = Trigger(trigger)
		e.Outcome = Outcome(outcome)
		if finishedAt.Valid {
			t := finishedAt.Time
			e.FinishedAt = &t
		}
		if remoteCount.Valid {
			n := int(remoteCount.Int64)
			e.RemoteCount = &n
		}
		if errText.Valid {
			e.Error = errText.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
