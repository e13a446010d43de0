// Package persistence provides the world snapshot slot: SQLite for durable
// runs and an in-memory slot for tests and ephemeral worlds.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/talgya/automon-world/internal/world"
)

// slotKey names the single snapshot row.
const slotKey = "world"

// encodingZstdJSON tags blobs written by this version.
const encodingZstdJSON = "zstd+json"

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn    *sqlx.DB
	backoff func() retry.Backoff
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, backoff: defaultBackoff}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS world_snapshot (
		slot TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		encoding TEXT NOT NULL,
		data BLOB NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		world_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		event_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		day INTEGER NOT NULL,
		category TEXT NOT NULL,
		trainer_id TEXT NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (world_id, seq)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(world_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Load implements Store.
func (db *DB) Load(ctx context.Context) (*world.GameState, error) {
	var row struct {
		Encoding string `db:"encoding"`
		Data     []byte `db:"data"`
	}
	err := db.conn.GetContext(ctx, &row, "SELECT encoding, data FROM world_snapshot WHERE slot = ?", slotKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if row.Encoding != encodingZstdJSON {
		return nil, fmt.Errorf("load snapshot: unknown encoding %q", row.Encoding)
	}

	raw, err := decoder.DecodeAll(row.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s world.GameState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Save implements Store. The snapshot row, the new events and the metadata
// are written in one transaction; a busy database is retried with backoff.
func (db *DB) Save(ctx context.Context, s *world.GameState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	blob := encoder.EncodeAll(raw, nil)

	err = retry.Do(ctx, db.backoff(), func(ctx context.Context) error {
		err := db.saveTx(ctx, s, blob)
		if isBusy(err) {
			slog.Debug("snapshot save busy, retrying", "tick", s.Tick)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (db *DB) saveTx(ctx context.Context, s *world.GameState, blob []byte) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO world_snapshot (slot, world_id, tick, encoding, data, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET world_id = excluded.world_id, tick = excluded.tick,
			encoding = excluded.encoding, data = excluded.data, saved_at = excluded.saved_at`,
		slotKey, s.WorldID, int64(s.Tick), encodingZstdJSON, blob, time.Now().Unix()); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	// A reseeded world replaces the archive of the one it supersedes.
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE world_id <> ?", s.WorldID); err != nil {
		return fmt.Errorf("drop superseded events: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT OR IGNORE INTO events
		(world_id, seq, event_id, tick, day, category, trainer_id, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range s.Events {
		if _, err := stmt.ExecContext(ctx, s.WorldID, int64(e.Seq), e.ID, int64(e.Tick), e.Day, e.Category, e.TrainerID, e.Message); err != nil {
			return fmt.Errorf("archive event %d: %w", e.Seq, err)
		}
	}

	for k, v := range map[string]string{
		"world_id":  s.WorldID,
		"last_tick": strconv.FormatUint(s.Tick, 10),
		"seed":      strconv.FormatInt(s.Seed, 10),
	} {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// GetMeta retrieves a metadata value. A missing key yields "".
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// RecentEvents returns up to limit archived events for a world, newest first.
// The archive outlives the bounded in-state log.
func (db *DB) RecentEvents(ctx context.Context, worldID string, limit int) ([]world.Event, error) {
	var rows []struct {
		Seq       int64  `db:"seq"`
		EventID   string `db:"event_id"`
		Tick      int64  `db:"tick"`
		Day       int    `db:"day"`
		Category  string `db:"category"`
		TrainerID string `db:"trainer_id"`
		Message   string `db:"message"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT seq, event_id, tick, day, category, trainer_id, message
		FROM events WHERE world_id = ? ORDER BY seq DESC LIMIT ?`,
		worldID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	events := make([]world.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, world.Event{
			ID:        r.EventID,
			Seq:       uint64(r.Seq),
			Tick:      uint64(r.Tick),
			Day:       r.Day,
			Category:  r.Category,
			TrainerID: r.TrainerID,
			Message:   r.Message,
		})
	}
	return events, nil
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
