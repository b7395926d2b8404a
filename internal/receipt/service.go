package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-ledger/internal/scanning"
)

// IDGenerator generates unique IDs for stored uploads
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Extraction is an uploaded file turned into a validated, not yet saved, record
type Extraction struct {
	Vendor            Vendor    `json:"vendor"`
	Bill              Bill      `json:"bill"`
	FileReference     string    `json:"file_reference"`
	SuggestedCategory *Category `json:"suggested_category"`
	ExtractedText     string    `json:"extracted_text"`
}

// SaveResult reports the outcome of SaveExtractedData
type SaveResult struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	Bill          *Bill   `json:"bill,omitempty"`
	Vendor        *Vendor `json:"vendor,omitempty"`
	VendorCreated bool    `json:"vendor_created"`
	Err           error   `json:"-"`
}

// Service handles receipt operations
type Service struct {
	db          DB
	storage     Storage
	extractor   scanning.TextExtractor
	parser      scanning.FieldParser
	validator   *Validator
	limits      UploadLimits
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, extractor scanning.TextExtractor, parser scanning.FieldParser, limits UploadLimits) *Service {
	return NewServiceWithDeps(db, storage, extractor, parser, limits, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, extractor scanning.TextExtractor, parser scanning.FieldParser,
	limits UploadLimits, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		parser:      parser,
		validator:   NewValidator(timeSrc),
		limits:      limits,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameJunk   = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameJunk.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")

	// Truncate to reasonable length (50 chars for base, plus extension)
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessUpload stores an uploaded file, extracts its text and validates the fields found in it
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte) (*Extraction, error) {
	if err := s.limits.Check(filename, int64(len(data))); err != nil {
		return nil, err
	}
	kind, err := scanning.KindFromFilename(filename)
	if err != nil {
		return nil, &UploadError{Message: fmt.Sprintf("Unsupported file type: %s", filepath.Ext(filename))}
	}

	ref, err := s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename)), data)
	if err != nil {
		return nil, &StorageError{Op: "saving upload", Err: err}
	}

	extraction, err := s.extract(ctx, data, kind)
	if err != nil {
		slog.Error("Failed to process receipt",
			"filename", filename,
			"kind", kind,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the saved file since processing failed
		if delErr := s.storage.Delete(ref); delErr != nil {
			slog.Warn("Failed to delete upload", "file_reference", ref, "error", delErr)
		}
		return nil, err
	}

	extraction.FileReference = ref
	extraction.Bill.FileReference = ref
	slog.Info("Receipt extracted",
		"file_reference", ref,
		"vendor", extraction.Vendor.Name,
		"amount", extraction.Bill.Amount,
		"date", extraction.Bill.TransactionDate.String(),
	)
	return extraction, nil
}

func (s *Service) extract(ctx context.Context, data []byte, kind scanning.FileKind) (*Extraction, error) {
	text, err := s.extractor.Extract(ctx, data, kind)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, &scanning.ExtractionError{Op: "extracting text", Err: errors.New("no text found in file")}
	}

	fields, err := s.parser.Parse(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	validated, err := s.validator.Validate(*fields)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Vendor:            validated.Vendor,
		Bill:              validated.Bill,
		SuggestedCategory: SuggestCategory(validated.Vendor.Name),
		ExtractedText:     text,
	}, nil
}

// SaveExtractedData validates a (possibly user-edited) record and stores it.
// Failures are reported in the result rather than returned.
func (s *Service) SaveExtractedData(ctx context.Context, record Validated, fileReference string) SaveResult {
	record.Vendor.Name = strings.TrimSpace(record.Vendor.Name)
	if err := s.validator.ValidateRecord(record.Vendor, record.Bill); err != nil {
		return SaveResult{Success: false, Message: err.Error(), Err: err}
	}

	record.Bill.FileReference = fileReference
	saved, err := s.db.SaveReceipt(ctx, record.Vendor, record.Bill)
	if err != nil {
		storageErr := &StorageError{Op: "saving receipt", Err: err}
		slog.Error("Failed to save receipt", "vendor", record.Vendor.Name, "error", err)
		return SaveResult{Success: false, Message: storageErr.Error(), Err: storageErr}
	}

	slog.Info("Receipt saved",
		"bill_id", saved.Bill.ID,
		"vendor_id", saved.Vendor.ID,
		"vendor_created", saved.VendorCreated,
	)
	return SaveResult{
		Success:       true,
		Message:       fmt.Sprintf("Saved %.2f from %s", saved.Bill.Amount, saved.Vendor.Name),
		Bill:          saved.Bill,
		Vendor:        saved.Vendor,
		VendorCreated: saved.VendorCreated,
	}
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(ctx context.Context, id int64) (*BillView, error) {
	bill, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// UpdateBill edits amount, date or description of a bill
func (s *Service) UpdateBill(ctx context.Context, id int64, update BillUpdate) (*Bill, error) {
	var problems []error
	if update.Amount != nil && *update.Amount <= 0 {
		problems = append(problems, fmt.Errorf("%w: must be greater than zero, got %v", ErrInvalidAmount, *update.Amount))
	}
	if update.TransactionDate != nil && update.TransactionDate.IsZero() {
		problems = append(problems, errors.New("transaction date cannot be empty"))
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	bill, err := s.db.UpdateBill(ctx, id, update)
	if err != nil {
		return nil, &StorageError{Op: "updating bill", Err: err}
	}
	if bill == nil {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}
	return bill, nil
}

// DeleteBill removes a bill and, when nothing else references it, its stored upload
func (s *Service) DeleteBill(ctx context.Context, id int64) (bool, error) {
	bill, err := s.db.GetBill(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "getting bill for deletion", Err: err}
	}

	deleted, err := s.db.DeleteBill(ctx, id)
	if err != nil {
		return false, &StorageError{Op: "deleting bill", Err: err}
	}
	if !deleted || bill.FileReference == "" {
		return deleted, nil
	}

	others, err := s.db.ListBills(ctx, BillFilter{FileReference: bill.FileReference, Limit: 1})
	if err != nil {
		slog.Warn("Failed to check file references", "file_reference", bill.FileReference, "error", err)
		return true, nil
	}
	if len(others) == 0 {
		if err := s.storage.Delete(bill.FileReference); err != nil {
			// Log error but the bill is already gone
			slog.Warn("Failed to delete file", "file_reference", bill.FileReference, "error", err)
		}
	}
	return true, nil
}

// ListVendors returns all vendors
func (s *Service) ListVendors(ctx context.Context) ([]*Vendor, error) {
	vendors, err := s.db.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	return vendors, nil
}

// SetVendorCategory overrides a vendor's category
func (s *Service) SetVendorCategory(ctx context.Context, vendorID int64, category *Category) (*Vendor, error) {
	if err := s.db.SetVendorCategory(ctx, vendorID, category); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "setting vendor category", Err: err}
	}
	vendor, err := s.db.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("getting vendor: %w", err)
	}
	return vendor, nil
}

// GetFile retrieves the stored bytes of an upload
func (s *Service) GetFile(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.storage.Get(ref)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return data, nil
}
