package receipt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	vendorBucket     = []byte("vendors")
	vendorNameBucket = []byte("vendor_names")
	billBucket       = []byte("bills")
)

// Ensure BoltDB implements DB
var _ DB = (*BoltDB)(nil)

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{vendorBucket, vendorNameBucket, billBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob encodes an id as a sortable big-endian key
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// nameKey is the case-insensitive index key for a vendor name
func nameKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

func getVendorTx(tx *bbolt.Tx, id int64) (*Vendor, error) {
	data := tx.Bucket(vendorBucket).Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("vendor %d: %w", id, ErrNotFound)
	}
	var vendor Vendor
	if err := json.Unmarshal(data, &vendor); err != nil {
		return nil, fmt.Errorf("unmarshaling vendor: %w", err)
	}
	return &vendor, nil
}

func putVendorTx(tx *bbolt.Tx, vendor *Vendor) error {
	data, err := json.Marshal(vendor)
	if err != nil {
		return fmt.Errorf("marshaling vendor: %w", err)
	}
	return tx.Bucket(vendorBucket).Put(itob(vendor.ID), data)
}

func upsertVendorTx(tx *bbolt.Tx, name string, category *Category) (bool, *Vendor, error) {
	names := tx.Bucket(vendorNameBucket)
	if idBytes := names.Get(nameKey(name)); idBytes != nil {
		vendor, err := getVendorTx(tx, int64(binary.BigEndian.Uint64(idBytes)))
		if err != nil {
			return false, nil, err
		}
		if vendor.Category == nil && category != nil {
			vendor.Category = category
			if err := putVendorTx(tx, vendor); err != nil {
				return false, nil, err
			}
		}
		return false, vendor, nil
	}

	seq, err := tx.Bucket(vendorBucket).NextSequence()
	if err != nil {
		return false, nil, fmt.Errorf("allocating vendor id: %w", err)
	}
	vendor := &Vendor{ID: int64(seq), Name: name, Category: category}
	if err := putVendorTx(tx, vendor); err != nil {
		return false, nil, err
	}
	if err := names.Put(nameKey(name), itob(vendor.ID)); err != nil {
		return false, nil, fmt.Errorf("indexing vendor name: %w", err)
	}
	return true, vendor, nil
}

func getBillTx(tx *bbolt.Tx, id int64) (*Bill, error) {
	data := tx.Bucket(billBucket).Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	var bill Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, fmt.Errorf("unmarshaling bill: %w", err)
	}
	return &bill, nil
}

func putBillTx(tx *bbolt.Tx, bill *Bill) error {
	data, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("marshaling bill: %w", err)
	}
	return tx.Bucket(billBucket).Put(itob(bill.ID), data)
}

func insertBillTx(tx *bbolt.Tx, bill Bill) (*Bill, error) {
	// Bolt has no foreign keys; check the vendor inside the same transaction
	if _, err := getVendorTx(tx, bill.VendorID); err != nil {
		return nil, err
	}
	seq, err := tx.Bucket(billBucket).NextSequence()
	if err != nil {
		return nil, fmt.Errorf("allocating bill id: %w", err)
	}
	bill.ID = int64(seq)
	if err := putBillTx(tx, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func viewOf(bill *Bill, vendor *Vendor) *BillView {
	return &BillView{
		ID:              bill.ID,
		VendorID:        bill.VendorID,
		VendorName:      vendor.Name,
		Amount:          bill.Amount,
		TransactionDate: bill.TransactionDate,
		Category:        vendor.Category,
		Description:     bill.Description,
		FileReference:   bill.FileReference,
	}
}

// AddOrUpdateVendor finds or creates a vendor
func (b *BoltDB) AddOrUpdateVendor(ctx context.Context, name string, category *Category) (bool, *Vendor, error) {
	var (
		created bool
		vendor  *Vendor
	)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		created, vendor, err = upsertVendorTx(tx, name, category)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return created, vendor, nil
}

// GetVendor retrieves a vendor by ID
func (b *BoltDB) GetVendor(ctx context.Context, id int64) (*Vendor, error) {
	var vendor *Vendor
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		vendor, err = getVendorTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// GetVendorByName retrieves a vendor by case-insensitive name
func (b *BoltDB) GetVendorByName(ctx context.Context, name string) (*Vendor, error) {
	var vendor *Vendor
	err := b.db.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket(vendorNameBucket).Get(nameKey(name))
		if idBytes == nil {
			return fmt.Errorf("vendor %q: %w", name, ErrNotFound)
		}
		var err error
		vendor, err = getVendorTx(tx, int64(binary.BigEndian.Uint64(idBytes)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// ListVendors returns all vendors ordered by name
func (b *BoltDB) ListVendors(ctx context.Context) ([]*Vendor, error) {
	vendors := make([]*Vendor, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(vendorBucket).ForEach(func(k, v []byte) error {
			var vendor Vendor
			if err := json.Unmarshal(v, &vendor); err != nil {
				return fmt.Errorf("unmarshaling vendor: %w", err)
			}
			vendors = append(vendors, &vendor)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(vendors, func(a, b *Vendor) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return vendors, nil
}

// SetVendorCategory overwrites a vendor's category
func (b *BoltDB) SetVendorCategory(ctx context.Context, id int64, category *Category) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		vendor, err := getVendorTx(tx, id)
		if err != nil {
			return err
		}
		vendor.Category = category
		return putVendorTx(tx, vendor)
	})
}

// AddBill inserts a bill
func (b *BoltDB) AddBill(ctx context.Context, bill *Bill) (*Bill, error) {
	var inserted *Bill
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		inserted, err = insertBillTx(tx, *bill)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// GetBill retrieves a bill joined with its vendor
func (b *BoltDB) GetBill(ctx context.Context, id int64) (*BillView, error) {
	var view *BillView
	err := b.db.View(func(tx *bbolt.Tx) error {
		bill, err := getBillTx(tx, id)
		if err != nil {
			return err
		}
		vendor, err := getVendorTx(tx, bill.VendorID)
		if err != nil {
			return err
		}
		view = viewOf(bill, vendor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListBills scans every bill and keeps those matching filter, newest first
func (b *BoltDB) ListBills(ctx context.Context, filter BillFilter) ([]*BillView, error) {
	bills := make([]*BillView, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		vendors := make(map[int64]*Vendor)
		return tx.Bucket(billBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			vendor, ok := vendors[bill.VendorID]
			if !ok {
				var err error
				if vendor, err = getVendorTx(tx, bill.VendorID); err != nil {
					return err
				}
				vendors[bill.VendorID] = vendor
			}
			if view := viewOf(&bill, vendor); filter.matches(view) {
				bills = append(bills, view)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(bills, compareRecency)
	if filter.Limit > 0 && len(bills) > filter.Limit {
		bills = bills[:filter.Limit]
	}
	return bills, nil
}

// UpdateBill applies update and returns the stored bill, or nil if id does not exist
func (b *BoltDB) UpdateBill(ctx context.Context, id int64, update BillUpdate) (*Bill, error) {
	var updated *Bill
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bill, err := getBillTx(tx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if update.Amount != nil {
			bill.Amount = *update.Amount
		}
		if update.TransactionDate != nil {
			bill.TransactionDate = *update.TransactionDate
		}
		if update.Description != nil {
			bill.Description = *update.Description
		}
		if err := putBillTx(tx, bill); err != nil {
			return err
		}
		updated = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBill removes a bill and reports whether it existed
func (b *BoltDB) DeleteBill(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(billBucket)
		if bucket.Get(itob(id)) == nil {
			return nil
		}
		existed = true
		return bucket.Delete(itob(id))
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// SaveReceipt upserts the vendor and inserts the bill in one transaction
func (b *BoltDB) SaveReceipt(ctx context.Context, vendor Vendor, bill Bill) (*SavedReceipt, error) {
	var saved SavedReceipt
	err := b.db.Update(func(tx *bbolt.Tx) error {
		created, v, err := upsertVendorTx(tx, vendor.Name, vendor.Category)
		if err != nil {
			return err
		}
		bill.VendorID = v.ID
		inserted, err := insertBillTx(tx, bill)
		if err != nil {
			return err
		}
		saved = SavedReceipt{Vendor: v, Bill: inserted, VendorCreated: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
