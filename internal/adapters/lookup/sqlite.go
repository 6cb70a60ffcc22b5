package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/okian/oppsuggest/internal/domain/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	name  TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email ON users (email);

CREATE TABLE IF NOT EXISTS products (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_products (
	user_id    TEXT NOT NULL,
	product_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	PRIMARY KEY (user_id, product_id)
);
`

// SQLiteStore serves lookups from a SQLite database. Emails are stored
// normalized so lookups stay case-insensitive.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UserByEmail implements Store.
func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	defer observe(BackendSQLite, "user_by_email", time.Now())
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT id, email, name FROM users WHERE email = ?`, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// Users implements Store.
func (s *SQLiteStore) Users(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := s.db.SelectContext(ctx, &out, `SELECT id, email, name FROM users ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return out, nil
}

// Products implements Store.
func (s *SQLiteStore) Products(ctx context.Context, ids []string) ([]model.Product, error) {
	defer observe(BackendSQLite, "products", time.Now())
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT id, name FROM products WHERE id IN (?) ORDER BY rowid`, ids)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}
	var out []model.Product
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return out, nil
}

// UserProducts implements Store.
func (s *SQLiteStore) UserProducts(ctx context.Context, userIDs []string) ([]model.Product, error) {
	defer observe(BackendSQLite, "user_products", time.Now())
	if len(userIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
SELECT up.product_id AS id, COALESCE(p.name, '') AS name
FROM user_products up
LEFT JOIN products p ON p.id = up.product_id
WHERE up.user_id IN (?)
GROUP BY up.product_id
ORDER BY MIN(up.position)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("build user products query: %w", err)
	}
	var out []model.Product
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query user products: %w", err)
	}
	return out, nil
}

// PutUser inserts or replaces a user.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name`,
		u.ID, normalizeEmail(u.Email), u.Name)
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

// PutProduct inserts or replaces a catalog entry.
func (s *SQLiteStore) PutProduct(ctx context.Context, p model.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("put product %s: %w", p.ID, err)
	}
	return nil
}

// Assign links a product to a user. Re-assigning keeps the first position.
func (s *SQLiteStore) Assign(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_products (user_id, product_id, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM user_products))`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("assign %s to %s: %w", productID, userID, err)
	}
	return nil
}

// Import copies every user, product and assignment from src in one
// transaction and returns the number of users copied.
func (s *SQLiteStore) Import(ctx context.Context, src *CSVStore) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range src.users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name`,
			u.ID, normalizeEmail(u.Email), u.Name); err != nil {
			return 0, fmt.Errorf("import user %s: %w", u.ID, err)
		}
	}
	for _, p := range src.products {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, p.ID, p.Name); err != nil {
			return 0, fmt.Errorf("import product %s: %w", p.ID, err)
		}
	}
	for i, a := range src.assignments {
		if a.productID == "" {
			continue
		}
		if a.productName != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO products (id, name) VALUES (?, ?)`, a.productID, a.productName); err != nil {
				return 0, fmt.Errorf("import product %s: %w", a.productID, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_products (user_id, product_id, position) VALUES (?, ?, ?)`,
			a.userID, a.productID, i+1); err != nil {
			return 0, fmt.Errorf("import assignment %s/%s: %w", a.userID, a.productID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(src.users), nil
}
