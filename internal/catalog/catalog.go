// Package catalog stores imported sessions in sqlite: session metadata, the
// trial table and the raw channel payloads.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/sessionio"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
)

var logf = monitoring.Tagged("catalog")

var (
	// ErrSessionNotFound is returned for an unknown session id or name.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession is returned when importing a name that exists.
	ErrDuplicateSession = errors.New("session already imported")
)

// Catalog is a sqlite-backed session store.
type Catalog struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the catalog at path and migrates it to the
// latest schema.
func Open(path string) (*Catalog, error) {
	c, err := OpenUnmigrated(path)
	if err != nil {
		return nil, err
	}
	if err := c.MigrateUp(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// OpenUnmigrated opens the catalog at path and leaves its schema as found,
// for schema management.
func OpenUnmigrated(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps ":memory:"
	// catalogs on one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	return &Catalog{DB: db, path: path}, nil
}

// Path returns the file the catalog was opened from.
func (c *Catalog) Path() string {
	return c.path
}

// SessionInfo describes one imported session.
type SessionInfo struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject,omitempty"`
	Frames       int       `json:"frames"`
	Trials       int       `json:"trials"`
	Correct      int       `json:"correct"`
	ChannelBytes int64     `json:"channel_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// Size returns the channel payload size in human-readable form.
func (s SessionInfo) Size() string {
	return datasize.ByteSize(s.ChannelBytes).HumanReadable()
}

// ImportOptions carries metadata not found in the session files.
type ImportOptions struct {
	Subject string
}

// Import validates s and stores it under a new session id. The session must
// open cleanly: every required channel present, trials well formed.
func (c *Catalog) Import(ctx context.Context, s *sessionio.Session, opts ImportOptions) (SessionInfo, error) {
	store, index, err := s.Open()
	if err != nil {
		return SessionInfo{}, fmt.Errorf("session %s: %w", s.Name, err)
	}

	id := uuid.New()
	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return SessionInfo{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE name = ?`, s.Name).Scan(&exists); err != nil {
		return SessionInfo{}, err
	}
	if exists > 0 {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrDuplicateSession, s.Name)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, name, subject, frames, channel_bytes) VALUES (?, ?, ?, ?, ?)`,
		id.String(), s.Name, opts.Subject, store.Len(), s.Bytes); err != nil {
		return SessionInfo{}, fmt.Errorf("inserting session: %w", err)
	}

	trialStmt, err := tx.PrepareContext(ctx, `INSERT INTO trials
		(session_id, trial_no, start_frame, stim_on_frame, feedback_frame, right_side, contrast, correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return SessionInfo{}, err
	}
	defer trialStmt.Close()
	for n, r := range index.Records() {
		if _, err := trialStmt.ExecContext(ctx, id.String(), n, r.Start, r.StimOn, r.Feedback, r.Right, r.Contrast, r.Correct); err != nil {
			return SessionInfo{}, fmt.Errorf("inserting trial %d: %w", n, err)
		}
	}

	names := make([]string, 0, len(s.Channels))
	for name := range s.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		payload := timeseries.Encode(s.Channels[name])
		if _, err := tx.ExecContext(ctx, `INSERT INTO channels (session_id, name, payload) VALUES (?, ?, ?)`,
			id.String(), name, payload); err != nil {
			return SessionInfo{}, fmt.Errorf("inserting channel %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SessionInfo{}, err
	}
	logf("imported %s as %s: %d trials, %d channels, %s", s.Name, id, index.Count(), len(names),
		datasize.ByteSize(s.Bytes).HumanReadable())
	return c.Session(ctx, id)
}

const sessionColumns = `s.session_id, s.name, s.subject, s.frames, s.channel_bytes, s.created_at,
	(SELECT COUNT(*) FROM trials t WHERE t.session_id = s.session_id),
	(SELECT COUNT(*) FROM trials t WHERE t.session_id = s.session_id AND t.correct)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionInfo, error) {
	var (
		info SessionInfo
		id   string
	)
	if err := row.Scan(&id, &info.Name, &info.Subject, &info.Frames, &info.ChannelBytes, &info.CreatedAt,
		&info.Trials, &info.Correct); err != nil {
		return SessionInfo{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("stored session id %q: %w", id, err)
	}
	info.ID = parsed
	return info, nil
}

// Sessions lists every session, newest first.
func (c *Catalog) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := c.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions s ORDER BY s.created_at DESC, s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Session returns one session by id.
func (c *Catalog) Session(ctx context.Context, id uuid.UUID) (SessionInfo, error) {
	row := c.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id.String())
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return info, err
}

// Resolve finds a session by id or, failing that, by name.
func (c *Catalog) Resolve(ctx context.Context, ref string) (SessionInfo, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return c.Session(ctx, id)
	}
	row := c.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.name = ?`, ref)
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
	}
	return info, err
}

// Trials returns the trial records of a session in order.
func (c *Catalog) Trials(ctx context.Context, id uuid.UUID) ([]trials.Record, error) {
	rows, err := c.QueryContext(ctx, `SELECT start_frame, stim_on_frame, feedback_frame, right_side, contrast, correct
		FROM trials WHERE session_id = ? ORDER BY trial_no`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trials.Record
	for rows.Next() {
		var r trials.Record
		if err := rows.Scan(&r.Start, &r.StimOn, &r.Feedback, &r.Right, &r.Contrast, &r.Correct); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if _, err := c.Session(ctx, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Load reads a whole session back, ready for Session.Open.
func (c *Catalog) Load(ctx context.Context, id uuid.UUID) (*sessionio.Session, error) {
	info, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := c.Trials(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := c.QueryContext(ctx, `SELECT name, payload FROM channels WHERE session_id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &sessionio.Session{Name: info.Name, Trials: recs, Channels: make(map[string][]float32)}
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, err
		}
		values, err := timeseries.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		s.Channels[name] = values
		s.Bytes += int64(len(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logf("loaded session %s (%s): %s", info.Name, id, datasize.ByteSize(s.Bytes).HumanReadable())
	return s, nil
}

// Delete removes a session and everything stored with it.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := c.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
