package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// schema is applied on startup. Vendors must exist before bills due to the foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS vendors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL UNIQUE,
    category TEXT
);

CREATE TABLE IF NOT EXISTS bills (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    vendor_id INTEGER NOT NULL,
    amount REAL NOT NULL CHECK (amount > 0),
    transaction_date TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    file_reference TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (vendor_id) REFERENCES vendors(id)
);

CREATE INDEX IF NOT EXISTS idx_bills_vendor_id ON bills(vendor_id);
CREATE INDEX IF NOT EXISTS idx_bills_transaction_date ON bills(transaction_date);
CREATE INDEX IF NOT EXISTS idx_bills_file_reference ON bills(file_reference);
`

const billViewQuery = `
SELECT b.id, b.vendor_id, v.name, v.category, b.amount, b.transaction_date, b.description, b.file_reference
FROM bills b
JOIN vendors v ON v.id = b.vendor_id`

// Ensure SQLiteDB implements DB
var _ DB = (*SQLiteDB)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database at path and runs migrations
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; keeps the per-connection pragmas in effect
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// AddOrUpdateVendor finds or creates a vendor
func (s *SQLiteDB) AddOrUpdateVendor(ctx context.Context, name string, category *Category) (bool, *Vendor, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	created, vendor, err := upsertVendor(ctx, tx, name, category)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, vendor, nil
}

func upsertVendor(ctx context.Context, q querier, name string, category *Category) (bool, *Vendor, error) {
	key := string(nameKey(name))
	vendor, err := scanVendor(q.QueryRowContext(ctx, "SELECT id, name, category FROM vendors WHERE name_key = ?", key))
	if errors.Is(err, ErrNotFound) {
		res, err := q.ExecContext(ctx, "INSERT INTO vendors (name, name_key, category) VALUES (?, ?, ?)", name, key, nullCategory(category))
		if err != nil {
			return false, nil, fmt.Errorf("inserting vendor: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return false, nil, fmt.Errorf("reading vendor id: %w", err)
		}
		return true, &Vendor{ID: id, Name: name, Category: category}, nil
	}
	if err != nil {
		return false, nil, err
	}

	if vendor.Category == nil && category != nil {
		if _, err := q.ExecContext(ctx, "UPDATE vendors SET category = ? WHERE id = ?", string(*category), vendor.ID); err != nil {
			return false, nil, fmt.Errorf("updating vendor category: %w", err)
		}
		vendor.Category = category
	}
	return false, vendor, nil
}

// GetVendor retrieves a vendor by ID
func (s *SQLiteDB) GetVendor(ctx context.Context, id int64) (*Vendor, error) {
	return scanVendor(s.db.QueryRowContext(ctx, "SELECT id, name, category FROM vendors WHERE id = ?", id))
}

// GetVendorByName retrieves a vendor by case-insensitive name
func (s *SQLiteDB) GetVendorByName(ctx context.Context, name string) (*Vendor, error) {
	return scanVendor(s.db.QueryRowContext(ctx, "SELECT id, name, category FROM vendors WHERE name_key = ?", string(nameKey(name))))
}

// ListVendors returns all vendors ordered by name
func (s *SQLiteDB) ListVendors(ctx context.Context) ([]*Vendor, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, category FROM vendors ORDER BY name_key, id")
	if err != nil {
		return nil, fmt.Errorf("querying vendors: %w", err)
	}
	defer rows.Close()

	vendors := make([]*Vendor, 0)
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}

// SetVendorCategory overwrites a vendor's category
func (s *SQLiteDB) SetVendorCategory(ctx context.Context, id int64, category *Category) error {
	res, err := s.db.ExecContext(ctx, "UPDATE vendors SET category = ? WHERE id = ?", nullCategory(category), id)
	if err != nil {
		return fmt.Errorf("updating vendor category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("vendor %d: %w", id, ErrNotFound)
	}
	return nil
}

// AddBill inserts a bill
func (s *SQLiteDB) AddBill(ctx context.Context, bill *Bill) (*Bill, error) {
	return insertBill(ctx, s.db, *bill)
}

func insertBill(ctx context.Context, q querier, bill Bill) (*Bill, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO bills (vendor_id, amount, transaction_date, description, file_reference) VALUES (?, ?, ?, ?, ?)",
		bill.VendorID, bill.Amount, bill.TransactionDate.String(), bill.Description, bill.FileReference,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading bill id: %w", err)
	}
	bill.ID = id
	return &bill, nil
}

// GetBill retrieves a bill joined with its vendor
func (s *SQLiteDB) GetBill(ctx context.Context, id int64) (*BillView, error) {
	return scanBillView(s.db.QueryRowContext(ctx, billViewQuery+" WHERE b.id = ?", id))
}

// ListBills returns bills matching filter, newest first
func (s *SQLiteDB) ListBills(ctx context.Context, filter BillFilter) ([]*BillView, error) {
	var (
		where []string
		args  []any
	)
	if filter.VendorQuery != "" {
		// name_key is folded in Go; LIKE alone only folds ASCII
		where = append(where, `v.name_key LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(filter.VendorQuery))+"%")
	}
	if !filter.From.IsZero() {
		where = append(where, "b.transaction_date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "b.transaction_date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.Category != nil {
		where = append(where, "v.category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.MinAmount != nil {
		where = append(where, "b.amount >= ?")
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		where = append(where, "b.amount <= ?")
		args = append(args, *filter.MaxAmount)
	}
	if filter.FileReference != "" {
		where = append(where, "b.file_reference = ?")
		args = append(args, filter.FileReference)
	}

	query := billViewQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.transaction_date DESC, b.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}
	defer rows.Close()

	bills := make([]*BillView, 0)
	for rows.Next() {
		view, err := scanBillView(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, view)
	}
	return bills, rows.Err()
}

// UpdateBill applies update and returns the stored bill, or nil if id does not exist
func (s *SQLiteDB) UpdateBill(ctx context.Context, id int64, update BillUpdate) (*Bill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		set  []string
		args []any
	)
	if update.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, *update.Amount)
	}
	if update.TransactionDate != nil {
		set = append(set, "transaction_date = ?")
		args = append(args, update.TransactionDate.String())
	}
	if update.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *update.Description)
	}

	if len(set) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, "UPDATE bills SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
			return nil, fmt.Errorf("updating bill: %w", err)
		}
	}

	bill, err := scanBill(tx.QueryRowContext(ctx,
		"SELECT id, vendor_id, amount, transaction_date, description, file_reference FROM bills WHERE id = ?", id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return bill, nil
}

// DeleteBill removes a bill and reports whether it existed
func (s *SQLiteDB) DeleteBill(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

// SaveReceipt upserts the vendor and inserts the bill in one transaction
func (s *SQLiteDB) SaveReceipt(ctx context.Context, vendor Vendor, bill Bill) (*SavedReceipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	created, saved, err := upsertVendor(ctx, tx, vendor.Name, vendor.Category)
	if err != nil {
		return nil, err
	}

	bill.VendorID = saved.ID
	inserted, err := insertBill(ctx, tx, bill)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &SavedReceipt{Vendor: saved, Bill: inserted, VendorCreated: created}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func scanVendor(row rowScanner) (*Vendor, error) {
	var (
		vendor   Vendor
		category sql.NullString
	)
	if err := row.Scan(&vendor.ID, &vendor.Name, &category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vendor: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning vendor: %w", err)
	}
	vendor.Category = categoryFromNull(category)
	return &vendor, nil
}

func scanBill(row rowScanner) (*Bill, error) {
	var (
		bill Bill
		date string
	)
	if err := row.Scan(&bill.ID, &bill.VendorID, &bill.Amount, &date, &bill.Description, &bill.FileReference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bill: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning bill: %w", err)
	}
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	bill.TransactionDate = d
	return &bill, nil
}

func scanBillView(row rowScanner) (*BillView, error) {
	var (
		view     BillView
		category sql.NullString
		date     string
	)
	err := row.Scan(&view.ID, &view.VendorID, &view.VendorName, &category,
		&view.Amount, &date, &view.Description, &view.FileReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bill: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning bill: %w", err)
	}
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	view.TransactionDate = d
	view.Category = categoryFromNull(category)
	return &view, nil
}

func nullCategory(c *Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func categoryFromNull(s sql.NullString) *Category {
	if !s.Valid {
		return nil
	}
	return categoryPtr(Category(s.String))
}

// escapeLike escapes LIKE wildcards so the query is matched literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
