package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"plaza/internal/model"
	"plaza/internal/record"
	"plaza/internal/social"
)

// postgresSchema is applied idempotently on open; the record layout matches
// the SQLite migrations.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    username   TEXT PRIMARY KEY,
    record     BYTEA NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id         BIGINT PRIMARY KEY,
    author     TEXT NOT NULL,
    record     BYTEA NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author);

CREATE TABLE IF NOT EXISTS conversations (
    low     TEXT NOT NULL,
    high    TEXT NOT NULL,
    record  BYTEA NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    PRIMARY KEY (low, high)
);

CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(high);

CREATE TABLE IF NOT EXISTS sequences (
    name  TEXT PRIMARY KEY,
    value BIGINT NOT NULL
);
`

// PostgresStore implements social.Store on a Postgres database through a
// pgx connection pool. Record layout and concurrency contract are identical
// to SQLiteStore: codec-encoded blobs with version compare-and-swap.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ social.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the given DSN, applies the schema, and
// returns a ready store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	// Cache prepared statements per connection to cut planning overhead on
	// the small fixed query set.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Account operations

func (s *PostgresStore) GetAccount(username string) (*model.Account, error) {
	var data []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT record FROM accounts WHERE username = $1`, username).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %q: %w", username, social.ErrNotFound)
		}
		return nil, mapPostgresErr(fmt.Errorf("reading account %q: %w", username, err))
	}
	a, err := record.DecodeAccount(data)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", username, err)
	}
	return a, nil
}

func (s *PostgresStore) CreateAccount(a *model.Account) error {
	data, err := record.EncodeAccount(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO accounts (username, record, created_at) VALUES ($1, $2, $3)`,
		a.Username, data, a.CreatedAt.UTC(),
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", a.Username, social.ErrAlreadyExists)
		}
		return mapPostgresErr(fmt.Errorf("creating account %q: %w", a.Username, err))
	}
	return nil
}

func (s *PostgresStore) UpdateAccount(username string, mutate func(*model.Account) error) error {
	ctx := context.Background()
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.pool.QueryRow(ctx,
			`SELECT record, version FROM accounts WHERE username = $1`, username,
		).Scan(&data, &version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("account %q: %w", username, social.ErrNotFound)
			}
			return mapPostgresErr(fmt.Errorf("reading account %q: %w", username, err))
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

		tag, err := s.pool.Exec(ctx,
			`UPDATE accounts SET record = $1, version = version + 1 WHERE username = $2 AND version = $3`,
			newData, username, version,
		)
		if err != nil {
			return mapPostgresErr(fmt.Errorf("updating account %q: %w", username, err))
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return fmt.Errorf("account %q: %w", username, social.ErrConflict)
}

func (s *PostgresStore) ListAccounts() ([]*model.Account, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT username, record FROM accounts ORDER BY created_at, username`)
	if err != nil {
		return nil, mapPostgresErr(fmt.Errorf("listing accounts: %w", err))
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

func (s *PostgresStore) NextPostID() (int64, error) {
	var id int64
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO sequences (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`,
		social.PostIDSequence,
	).Scan(&id)
	if err != nil {
		return 0, mapPostgresErr(fmt.Errorf("allocating post id: %w", err))
	}
	return id, nil
}

func (s *PostgresStore) CreatePost(p *model.Post) error {
	data, err := record.EncodePost(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO posts (id, author, record, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Author, data, p.CreatedAt.UTC(),
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("post %d: %w", p.ID, social.ErrAlreadyExists)
		}
		return mapPostgresErr(fmt.Errorf("creating post %d: %w", p.ID, err))
	}
	return nil
}

func (s *PostgresStore) GetPost(id int64) (*model.Post, error) {
	var data []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT record FROM posts WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, social.ErrNotFound)
		}
		return nil, mapPostgresErr(fmt.Errorf("reading post %d: %w", id, err))
	}
	p, err := record.DecodePost(data)
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePost(id int64, mutate func(*model.Post) error) error {
	ctx := context.Background()
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.pool.QueryRow(ctx,
			`SELECT record, version FROM posts WHERE id = $1`, id).Scan(&data, &version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("post %d: %w", id, social.ErrNotFound)
			}
			return mapPostgresErr(fmt.Errorf("reading post %d: %w", id, err))
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

		tag, err := s.pool.Exec(ctx,
			`UPDATE posts SET record = $1, author = $2, version = version + 1 WHERE id = $3 AND version = $4`,
			newData, p.Author, id, version,
		)
		if err != nil {
			return mapPostgresErr(fmt.Errorf("updating post %d: %w", id, err))
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return fmt.Errorf("post %d: %w", id, social.ErrConflict)
}

func (s *PostgresStore) DeletePost(id int64) error {
	tag, err := s.pool.Exec(context.Background(), `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapPostgresErr(fmt.Errorf("deleting post %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %d: %w", id, social.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListPosts() ([]*model.Post, error) {
	return s.queryPosts(`SELECT id, record FROM posts ORDER BY id`)
}

func (s *PostgresStore) ListPostsByAuthor(username string) ([]*model.Post, error) {
	return s.queryPosts(`SELECT id, record FROM posts WHERE author = $1 ORDER BY id`, username)
}

func (s *PostgresStore) queryPosts(query string, args ...any) ([]*model.Post, error) {
	rows, err := s.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, mapPostgresErr(fmt.Errorf("listing posts: %w", err))
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

func (s *PostgresStore) GetConversation(a, b string) (*model.Conversation, error) {
	low, high := model.PairKey(a, b)
	var data []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT record FROM conversations WHERE low = $1 AND high = $2`, low, high).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s/%s: %w", low, high, social.ErrNotFound)
		}
		return nil, mapPostgresErr(fmt.Errorf("reading conversation %s/%s: %w", low, high, err))
	}
	c, err := record.DecodeConversation(data)
	if err != nil {
		return nil, fmt.Errorf("conversation %s/%s: %w", low, high, err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateConversation(a, b string, mutate func(*model.Conversation) error) error {
	ctx := context.Background()
	low, high := model.PairKey(a, b)
	for attempt := 0; attempt < casAttempts; attempt++ {
		var data []byte
		var version int64
		err := s.pool.QueryRow(ctx,
			`SELECT record, version FROM conversations WHERE low = $1 AND high = $2`, low, high,
		).Scan(&data, &version)

		if errors.Is(err, pgx.ErrNoRows) {
			c := model.NewConversation(a, b)
			if err := mutate(c); err != nil {
				return err
			}
			newData, err := record.EncodeConversation(c)
			if err != nil {
				return err
			}
			_, err = s.pool.Exec(ctx,
				`INSERT INTO conversations (low, high, record) VALUES ($1, $2, $3)`,
				low, high, newData,
			)
			if err != nil {
				if isPgUniqueViolation(err) {
					continue // lost the create race; re-read and retry
				}
				return mapPostgresErr(fmt.Errorf("creating conversation %s/%s: %w", low, high, err))
			}
			return nil
		}
		if err != nil {
			return mapPostgresErr(fmt.Errorf("reading conversation %s/%s: %w", low, high, err))
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

		tag, err := s.pool.Exec(ctx,
			`UPDATE conversations SET record = $1, version = version + 1
			 WHERE low = $2 AND high = $3 AND version = $4`,
			newData, low, high, version,
		)
		if err != nil {
			return mapPostgresErr(fmt.Errorf("updating conversation %s/%s: %w", low, high, err))
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return fmt.Errorf("conversation %s/%s: %w", low, high, social.ErrConflict)
}

func (s *PostgresStore) ListConversations(owner string) ([]*model.Conversation, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT low, high, record FROM conversations WHERE low = $1 OR high = $1 ORDER BY low, high`,
		owner,
	)
	if err != nil {
		return nil, mapPostgresErr(fmt.Errorf("listing conversations for %q: %w", owner, err))
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

func (s *PostgresStore) SequenceValue(name string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(context.Background(),
		`SELECT value FROM sequences WHERE name = $1`, name).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, mapPostgresErr(fmt.Errorf("reading sequence %q: %w", name, err))
	}
	return v, nil
}

func (s *PostgresStore) SetSequence(name string, value int64) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO sequences (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = GREATEST(sequences.value, EXCLUDED.value)`,
		name, value,
	)
	if err != nil {
		return mapPostgresErr(fmt.Errorf("setting sequence %q: %w", name, err))
	}
	return nil
}

func (s *PostgresStore) VerifyRecords(report func(kind, key string, err error)) error {
	ctx := context.Background()
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
		{"post", `SELECT id::TEXT, record FROM posts`, func(d []byte) error {
			_, err := record.DecodePost(d)
			return err
		}},
		{"conversation", `SELECT low || '/' || high, record FROM conversations`, func(d []byte) error {
			_, err := record.DecodeConversation(d)
			return err
		}},
	}

	for _, t := range tables {
		rows, err := s.pool.Query(ctx, t.query)
		if err != nil {
			return mapPostgresErr(fmt.Errorf("scanning %s records: %w", t.kind, err))
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

// mapPostgresErr translates lock and serialization failures into ErrBusy.
func mapPostgresErr(err error) error {
	var perr *pgconn.PgError
	if errors.As(err, &perr) {
		switch perr.Code {
		case "55P03", "40P01", "40001": // lock_not_available, deadlock_detected, serialization_failure
			return fmt.Errorf("%w: %v", social.ErrBusy, err)
		}
	}
	return err
}

func isPgUniqueViolation(err error) bool {
	var perr *pgconn.PgError
	return errors.As(err, &perr) && perr.Code == "23505"
}
