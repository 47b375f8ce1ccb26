// Package database provides the durable Store implementations: SQLite
// (default, embedded) and Postgres, both storing codec-encoded record blobs
// with a version column for optimistic per-record concurrency.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"plaza/internal/database/migrations"
	"plaza/internal/model"
	"plaza/internal/record"
	"plaza/internal/social"
)

// casAttempts bounds the optimistic read-modify-write loop. A mutation that
// loses the version race this many times in a row surfaces ErrConflict.
const casAttempts = 5

// SQLiteStore implements social.Store on a SQLite database.
// Each record row holds the codec-encoded entity plus the columns needed for
// keying and ordering; atomic updates use compare-and-swap on the version
// column, so two concurrent mutations of the same record can never lose an
// update.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ social.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a store at path and brings the schema up
// to date. path can be ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, path), nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the connection's PRAGMA configuration and schema.
func NewSQLiteStoreFromDB(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, path: path}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store depends on. Exported for tests and tools.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the file; busy_timeout
	// bounds lock waits so contention surfaces as ErrBusy, not a hang.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring database: %w", err)
		}
	}

	// An in-memory database exists per connection, so the pool must never
	// open a second one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Account operations

func (s *SQLiteStore) GetAccount(username string) (*model.Account, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT record FROM accounts WHERE username = ?`, username).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %q: %w", username, social.ErrNotFound)
		}
		return nil, mapSQLiteErr(fmt.Errorf("reading account %q: %w", username, err))
	}
	a, err := record.DecodeAccount(data)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", username, err)
	}
	return a, nil
}

func (s *SQLiteStore) CreateAccount(a *model.Account) error {
	data, err := record.EncodeAccount(a)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO accounts (username, record, created_at) VALUES (?, ?, ?)`,
		a.Username, data, a.CreatedAt.UTC(),
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("account %q: %w", a.Username, social.ErrAlreadyExists)
		}
		return mapSQLiteErr(fmt.Errorf("creating account %q: %w", a.Username, err))
	}
	return nil
}

func (s *SQLiteStore) UpdateAccount(username string, mutate func(*model.Account) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.db.QueryRow(
			`SELECT record, version FROM accounts WHERE username = ?`, username,
		).Scan(&data, &version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("account %q: %w", username, social.ErrNotFound)
			}
			return mapSQLiteErr(fmt.Errorf("reading account %q: %w", username, err))
		}

		a, err := record.DecodeAccount(data)
		if err != nil {
			return fmt.Errorf("account %q: %w", username, err)
		}
		if err := mutate(a); err != nil {
			return err
		}
		newData, err := record.EncodeAccount(a)
		if err != nil {
			return err
		}

		res, err := s.db.Exec(
			`UPDATE accounts SET record = ?, version = version + 1 WHERE username = ? AND version = ?`,
			newData, username, version,
		)
		if err != nil {
			return mapSQLiteErr(fmt.Errorf("updating account %q: %w", username, err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		// Version moved under us; re-read and try again.
	}
	return fmt.Errorf("account %q: %w", username, social.ErrConflict)
}

func (s *SQLiteStore) ListAccounts() ([]*model.Account, error) {
	rows, err := s.db.Query(`SELECT username, record FROM accounts ORDER BY created_at, username`)
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("listing accounts: %w", err))
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		var username string
		var data []byte
		if err := rows.Scan(&username, &data); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		a, err := record.DecodeAccount(data)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", username, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Post operations

func (s *SQLiteStore) NextPostID() (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO sequences (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`,
		social.PostIDSequence,
	).Scan(&id)
	if err != nil {
		return 0, mapSQLiteErr(fmt.Errorf("allocating post id: %w", err))
	}
	return id, nil
}

func (s *SQLiteStore) CreatePost(p *model.Post) error {
	data, err := record.EncodePost(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO posts (id, author, record, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Author, data, p.CreatedAt.UTC(),
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("post %d: %w", p.ID, social.ErrAlreadyExists)
		}
		return mapSQLiteErr(fmt.Errorf("creating post %d: %w", p.ID, err))
	}
	return nil
}

func (s *SQLiteStore) GetPost(id int64) (*model.Post, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT record FROM posts WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, social.ErrNotFound)
		}
		return nil, mapSQLiteErr(fmt.Errorf("reading post %d: %w", id, err))
	}
	p, err := record.DecodePost(data)
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) UpdatePost(id int64, mutate func(*model.Post) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.db.QueryRow(`SELECT record, version FROM posts WHERE id = ?`, id).Scan(&data, &version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("post %d: %w", id, social.ErrNotFound)
			}
			return mapSQLiteErr(fmt.Errorf("reading post %d: %w", id, err))
		}

		p, err := record.DecodePost(data)
		if err != nil {
			return fmt.Errorf("post %d: %w", id, err)
		}
		if err := mutate(p); err != nil {
			return err
		}
		newData, err := record.EncodePost(p)
		if err != nil {
			return err
		}

		res, err := s.db.Exec(
			`UPDATE posts SET record = ?, author = ?, version = version + 1 WHERE id = ? AND version = ?`,
			newData, p.Author, id, version,
		)
		if err != nil {
			return mapSQLiteErr(fmt.Errorf("updating post %d: %w", id, err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("post %d: %w", id, social.ErrConflict)
}

func (s *SQLiteStore) DeletePost(id int64) error {
	res, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("deleting post %d: %w", id, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, social.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListPosts() ([]*model.Post, error) {
	return s.queryPosts(`SELECT id, record FROM posts ORDER BY id`)
}

func (s *SQLiteStore) ListPostsByAuthor(username string) ([]*model.Post, error) {
	return s.queryPosts(`SELECT id, record FROM posts WHERE author = ? ORDER BY id`, username)
}

func (s *SQLiteStore) queryPosts(query string, args ...any) ([]*model.Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("listing posts: %w", err))
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		var id int64
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		p, err := record.DecodePost(data)
		if err != nil {
			return nil, fmt.Errorf("post %d: %w", id, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Conversation operations

func (s *SQLiteStore) GetConversation(a, b string) (*model.Conversation, error) {
	low, high := model.PairKey(a, b)
	var data []byte
	err := s.db.QueryRow(
		`SELECT record FROM conversations WHERE low = ? AND high = ?`, low, high,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s/%s: %w", low, high, social.ErrNotFound)
		}
		return nil, mapSQLiteErr(fmt.Errorf("reading conversation %s/%s: %w", low, high, err))
	}
	c, err := record.DecodeConversation(data)
	if err != nil {
		return nil, fmt.Errorf("conversation %s/%s: %w", low, high, err)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateConversation(a, b string, mutate func(*model.Conversation) error) error {
	low, high := model.PairKey(a, b)
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.db.QueryRow(
			`SELECT record, version FROM conversations WHERE low = ? AND high = ?`, low, high,
		).Scan(&data, &version)

		if errors.Is(err, sql.ErrNoRows) {
			c := model.NewConversation(a, b)
			if err := mutate(c); err != nil {
				return err
			}
			newData, err := record.EncodeConversation(c)
			if err != nil {
				return err
			}
			_, err = s.db.Exec(
				`INSERT INTO conversations (low, high, record) VALUES (?, ?, ?)`,
				low, high, newData,
			)
			if err != nil {
				if isConstraint(err) {
					continue // lost the create race; re-read and retry
				}
				return mapSQLiteErr(fmt.Errorf("creating conversation %s/%s: %w", low, high, err))
			}
			return nil
		}
		if err != nil {
			return mapSQLiteErr(fmt.Errorf("reading conversation %s/%s: %w", low, high, err))
		}

		c, err := record.DecodeConversation(data)
		if err != nil {
			return fmt.Errorf("conversation %s/%s: %w", low, high, err)
		}
		if err := mutate(c); err != nil {
			return err
		}
		newData, err := record.EncodeConversation(c)
		if err != nil {
			return err
		}

		res, err := s.db.Exec(
			`UPDATE conversations SET record = ?, version = version + 1 WHERE low = ? AND high = ? AND version = ?`,
			newData, low, high, version,
		)
		if err != nil {
			return mapSQLiteErr(fmt.Errorf("updating conversation %s/%s: %w", low, high, err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("conversation %s/%s: %w", low, high, social.ErrConflict)
}

func (s *SQLiteStore) ListConversations(owner string) ([]*model.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT low, high, record FROM conversations WHERE low = ? OR high = ? ORDER BY low, high`,
		owner, owner,
	)
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("listing conversations for %q: %w", owner, err))
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		var low, high string
		var data []byte
		if err := rows.Scan(&low, &high, &data); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		c, err := record.DecodeConversation(data)
		if err != nil {
			return nil, fmt.Errorf("conversation %s/%s: %w", low, high, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sequence operations

func (s *SQLiteStore) SequenceValue(name string) (int64, error) {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM sequences WHERE name = ?`, name).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, mapSQLiteErr(fmt.Errorf("reading sequence %q: %w", name, err))
	}
	return v, nil
}

func (s *SQLiteStore) SetSequence(name string, value int64) error {
	_, err := s.db.Exec(
		`INSERT INTO sequences (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = max(value, excluded.value)`,
		name, value,
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("setting sequence %q: %w", name, err))
	}
	return nil
}

// VerifyRecords decodes every stored record, reporting failures per record
// without aborting the scan.
func (s *SQLiteStore) VerifyRecords(report func(kind, key string, err error)) error {
	type table struct {
		kind   string
		query  string
		decode func([]byte) error
	}
	tables := []table{
		{"account", `SELECT username, record FROM accounts`, func(d []byte) error {
			_, err := record.DecodeAccount(d)
			return err
		}},
		{"post", `SELECT CAST(id AS TEXT), record FROM posts`, func(d []byte) error {
			_, err := record.DecodePost(d)
			return err
		}},
		{"conversation", `SELECT low || '/' || high, record FROM conversations`, func(d []byte) error {
			_, err := record.DecodeConversation(d)
			return err
		}},
	}

	for _, t := range tables {
		rows, err := s.db.Query(t.query)
		if err != nil {
			return mapSQLiteErr(fmt.Errorf("scanning %s records: %w", t.kind, err))
		}
		for rows.Next() {
			var key string
			var data []byte
			if err := rows.Scan(&key, &data); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s row: %w", t.kind, err)
			}
			if err := t.decode(data); err != nil {
				report(t.kind, key, err)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("scanning %s records: %w", t.kind, err)
		}
		rows.Close()
	}
	return nil
}

// BackupTo writes a consistent copy of the database to destPath using
// SQLite's VACUUM INTO, safe to run while the store is open.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return mapSQLiteErr(fmt.Errorf("backing up database: %w", err))
	}
	return nil
}

// mapSQLiteErr translates engine-level lock contention into ErrBusy so the
// retry layer can recognize it.
func mapSQLiteErr(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", social.ErrBusy, err)
		}
	}
	return err
}

func isConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}
