package learning

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id          TEXT PRIMARY KEY,
		persona     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		post_key    TEXT NOT NULL UNIQUE,
		topic_key   TEXT NOT NULL DEFAULT '',
		text        TEXT NOT NULL DEFAULT '',
		likes       INTEGER NOT NULL DEFAULT 0,
		shares      INTEGER NOT NULL DEFAULT 0,
		replies     INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_persona ON outcomes(persona, kind, created_at DESC);

	CREATE TABLE IF NOT EXISTS keywords (
		post_key TEXT NOT NULL REFERENCES outcomes(post_key) ON DELETE CASCADE,
		keyword  TEXT NOT NULL,
		PRIMARY KEY (post_key, keyword)
	);
	CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts or updates an outcome keyed by PostKey.
func (s *SQLiteStore) Record(ctx context.Context, o Outcome) error {
	if o.PostKey == "" {
		return fmt.Errorf("record outcome: empty post key")
	}
	if o.Kind == "" {
		o.Kind = KindPost
	}
	at := o.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes (id, persona, kind, post_key, topic_key, text, likes, shares, replies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_key) DO UPDATE SET
			topic_key  = CASE WHEN excluded.topic_key != '' THEN excluded.topic_key ELSE outcomes.topic_key END,
			text       = CASE WHEN excluded.text != '' THEN excluded.text ELSE outcomes.text END,
			likes      = excluded.likes,
			shares     = excluded.shares,
			replies    = excluded.replies,
			updated_at = excluded.updated_at`,
		s.newID(at), string(o.PersonaID), string(o.Kind), o.PostKey, o.TopicKey, o.Text,
		o.Engagement.Likes, o.Engagement.Shares, o.Engagement.Replies, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert outcome: %w", err)
	}

	for _, kw := range Keywords(o.Text) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO keywords (post_key, keyword) VALUES (?, ?)`, o.PostKey, kw); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}
	return tx.Commit()
}

// Recommend computes keyword biases from the persona's post history.
func (s *SQLiteStore) Recommend(ctx context.Context, id types.PersonaID) (Biases, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(likes + shares + replies) FROM outcomes WHERE persona = ? AND kind = ?`,
		string(id), string(KindPost)).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("persona average: %w", err)
	}
	base := avg.Float64
	if base <= 0 {
		base = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT k.keyword, COUNT(*), AVG(o.likes + o.shares + o.replies)
		FROM keywords k JOIN outcomes o ON o.post_key = k.post_key
		WHERE o.persona = ? AND o.kind = ?
		GROUP BY k.keyword
		HAVING COUNT(*) >= ?`,
		string(id), string(KindPost), MinKeywordUses)
	if err != nil {
		return nil, fmt.Errorf("keyword effectiveness: %w", err)
	}
	defer rows.Close()

	biases := Biases{}
	for rows.Next() {
		var kw string
		var uses int
		var kwAvg float64
		if err := rows.Scan(&kw, &uses, &kwAvg); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		if b := BiasFor(uses, kwAvg/base); b > 0 {
			biases[kw] = b
		}
	}
	return biases, rows.Err()
}

// RecentPostKeys lists the persona's newest top-level post keys.
func (s *SQLiteStore) RecentPostKeys(ctx context.Context, id types.PersonaID, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_key FROM outcomes
		WHERE persona = ? AND kind = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, string(id), string(KindPost), limit)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
