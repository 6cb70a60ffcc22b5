// Package lookup resolves sales representatives and the products they sell.
//
// Two backends implement Store: CSVStore reads the users, products and
// assignment tables from a directory; SQLiteStore keeps the same tables in
// a SQLite database.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// Backend names.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

var (
	// ErrUserNotFound is returned when no user matches an email.
	ErrUserNotFound = errors.New("user not found")
	// ErrMissingColumn is returned when a table lacks a required column.
	ErrMissingColumn = errors.New("missing column")
)

// Store reads users and their product assignments.
type Store interface {
	// UserByEmail matches emails case-insensitively after trimming.
	UserByEmail(ctx context.Context, email string) (model.User, error)
	// Users lists every known user.
	Users(ctx context.Context) ([]model.User, error)
	// Products returns catalog entries for ids, in catalog order. Unknown ids are skipped.
	Products(ctx context.Context, ids []string) ([]model.Product, error)
	// UserProducts returns the products assigned to any of userIDs, without duplicates.
	UserProducts(ctx context.Context, userIDs []string) ([]model.Product, error)
	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(cfg config.LookupConfig) (Store, error) {
	switch cfg.Backend {
	case BackendCSV, "":
		return NewCSVStore(cfg.DataDir)
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown lookup backend %q", cfg.Backend)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func observe(backend, op string, start time.Time) {
	metrics.RecordLookupLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
