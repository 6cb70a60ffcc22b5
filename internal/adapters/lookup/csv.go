package lookup

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/oppsuggest/internal/domain/model"
)

// File names inside the CSV data directory.
const (
	UsersFile         = "users.csv"
	ProductsFile      = "products.csv"
	UserProductsFile  = "users_products.csv"
	columnID          = "Id"
	columnEmail       = "Email"
	columnName        = "Name"
	columnUserID      = "UserId"
	columnProductID   = "ProductId"
	columnProductName = "ProductName"
)

type assignment struct {
	userID      string
	productID   string
	productName string
}

// CSVStore serves lookups from tables loaded once at construction.
type CSVStore struct {
	users       []model.User
	byEmail     map[string]int
	products    []model.Product
	productByID map[string]int
	assignments []assignment
}

// NewCSVStore loads users.csv, products.csv and users_products.csv from dir.
// users.csv needs Id and Email, products.csv needs Id and Name, and
// users_products.csv needs UserId and ProductId. A missing products.csv or
// users_products.csv is treated as empty.
func NewCSVStore(dir string) (*CSVStore, error) {
	s := &CSVStore{
		byEmail:     make(map[string]int),
		productByID: make(map[string]int),
	}

	if err := readTable(filepath.Join(dir, UsersFile), []string{columnID, columnEmail}, func(row map[string]string) {
		u := model.User{ID: row[columnID], Email: row[columnEmail], Name: row[columnName]}
		key := normalizeEmail(u.Email)
		if _, dup := s.byEmail[key]; dup || key == "" {
			return
		}
		s.byEmail[key] = len(s.users)
		s.users = append(s.users, u)
	}); err != nil {
		return nil, err
	}

	if err := readOptionalTable(filepath.Join(dir, ProductsFile), []string{columnID, columnName}, func(row map[string]string) {
		p := model.Product{ID: row[columnID], Name: row[columnName]}
		if _, dup := s.productByID[p.ID]; dup || p.ID == "" {
			return
		}
		s.productByID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}); err != nil {
		return nil, err
	}

	if err := readOptionalTable(filepath.Join(dir, UserProductsFile), []string{columnUserID, columnProductID}, func(row map[string]string) {
		s.assignments = append(s.assignments, assignment{
			userID:      row[columnUserID],
			productID:   row[columnProductID],
			productName: row[columnProductName],
		})
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// UserByEmail implements Store.
func (s *CSVStore) UserByEmail(_ context.Context, email string) (model.User, error) {
	defer observe(BackendCSV, "user_by_email", time.Now())
	i, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return s.users[i], nil
}

// Users implements Store.
func (s *CSVStore) Users(context.Context) ([]model.User, error) {
	out := make([]model.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

// Products implements Store.
func (s *CSVStore) Products(_ context.Context, ids []string) ([]model.Product, error) {
	defer observe(BackendCSV, "products", time.Now())
	want := toSet(ids)
	var out []model.Product
	for _, p := range s.products {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// UserProducts implements Store. Names come from the catalog, falling back to
// the assignment row's ProductName column.
func (s *CSVStore) UserProducts(_ context.Context, userIDs []string) ([]model.Product, error) {
	defer observe(BackendCSV, "user_products", time.Now())
	users := toSet(userIDs)
	seen := make(map[string]struct{})
	var out []model.Product
	for _, a := range s.assignments {
		if _, ok := users[a.userID]; !ok || a.productID == "" {
			continue
		}
		if _, dup := seen[a.productID]; dup {
			continue
		}
		seen[a.productID] = struct{}{}

		p := model.Product{ID: a.productID, Name: a.productName}
		if i, ok := s.productByID[a.productID]; ok {
			p.Name = s.products[i].Name
		}
		out = append(out, p)
	}
	return out, nil
}

// Close implements Store.
func (s *CSVStore) Close() error { return nil }

func readOptionalTable(path string, required []string, fn func(map[string]string)) error {
	err := readTable(path, required, fn)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// readTable streams a header-led CSV file, calling fn per row keyed by header.
func readTable(path string, required []string, fn func(map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w: empty file", filepath.Base(path), ErrMissingColumn)
		}
		return fmt.Errorf("read %s header: %w", filepath.Base(path), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	for _, col := range required {
		if !contains(header, col) {
			return fmt.Errorf("%s: %w %q", filepath.Base(path), ErrMissingColumn, col)
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			}
		}
		fn(row)
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
