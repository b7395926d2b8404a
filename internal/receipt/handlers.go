package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-ledger/internal/scanning"
)

const (
	defaultSearchLimit = 50
	defaultTopVendors  = 10
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var (
		uploadErr     *UploadError
		validationErr *ValidationError
		extractionErr *scanning.ExtractionError
		missingErr    *scanning.MissingFieldError
	)
	switch {
	case errors.As(err, &uploadErr), errors.Is(err, scanning.ErrUnsupportedFileType):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidAmount),
		errors.As(err, &extractionErr), errors.As(err, &missingErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the matching status code
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, "Internal server error", status)
		return
	}
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		writeJSONError(w, uploadErr.Message, status)
		return
	}
	writeJSONError(w, err.Error(), status)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func parseOptionalFloat(v string, name string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, v)
	}
	return &f, nil
}

// parseBillFilter reads q, from, to, category, min and max from the query string
func parseBillFilter(r *http.Request) (BillFilter, error) {
	q := r.URL.Query()
	filter := BillFilter{VendorQuery: strings.TrimSpace(q.Get("q"))}

	var err error
	if v := q.Get("from"); v != "" {
		if filter.From, err = ParseDate(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("to"); v != "" {
		if filter.To, err = ParseDate(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("category"); v != "" {
		c, ok := LookupCategory(v)
		if !ok {
			return filter, fmt.Errorf("unknown category %q", v)
		}
		filter.Category = &c
	}
	if filter.MinAmount, err = parseOptionalFloat(q.Get("min"), "min"); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseOptionalFloat(q.Get("max"), "max"); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseSearchQuery adds limit, sort and order to parseBillFilter
func parseSearchQuery(r *http.Request) (SearchQuery, error) {
	filter, err := parseBillFilter(r)
	if err != nil {
		return SearchQuery{}, err
	}
	query := SearchQuery{BillFilter: filter}
	q := r.URL.Query()

	query.Limit = defaultSearchLimit
	if v := q.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil || query.Limit < 0 {
			return query, fmt.Errorf("invalid limit %q", v)
		}
	}
	if query.SortBy, err = ParseSortKey(q.Get("sort")); err != nil {
		return query, err
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		query.Ascending = true
	default:
		return query, fmt.Errorf("invalid order %q", q.Get("order"))
	}
	return query, nil
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUploadReceipt extracts a record from an uploaded file without saving it
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.service.limits.MaxBytes
	if maxBytes > 0 {
		// Leave room for the multipart envelope
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, &UploadError{Message: fmt.Sprintf("File is too large. Maximum size is %s.", formatBytes(maxBytes))})
			return
		}
		writeJSONError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	extraction, err := s.service.ProcessUpload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, extraction)
}

// handleGetReceiptFile returns the stored bytes of an upload
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetFile(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// saveBillRequest is the body of POST /api/bills
type saveBillRequest struct {
	Vendor        Vendor `json:"vendor"`
	Bill          Bill   `json:"bill"`
	FileReference string `json:"file_reference"`
}

// handleSaveBill stores a reviewed record
func (s *Server) handleSaveBill(w http.ResponseWriter, r *http.Request) {
	var req saveBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Vendor.Category != nil {
		req.Vendor.Category = ParseCategory(string(*req.Vendor.Category))
	}
	if req.FileReference == "" {
		req.FileReference = req.Bill.FileReference
	}

	result := s.service.SaveExtractedData(r.Context(), Validated{Vendor: req.Vendor, Bill: req.Bill}, req.FileReference)
	status := http.StatusCreated
	if !result.Success {
		status = statusFor(result.Err)
	}
	writeJSON(w, status, result)
}

// handleListBills searches bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	bills, err := s.service.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	bill, err := s.service.GetBill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleUpdateBill applies a partial update to a bill
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var update BillUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if update.IsEmpty() {
		writeJSONError(w, "Nothing to update", http.StatusBadRequest)
		return
	}
	bill, err := s.service.UpdateBill(r.Context(), id, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleDeleteBill deletes a bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	deleted, err := s.service.DeleteBill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSONError(w, "Bill not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListVendors returns every vendor
func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.service.ListVendors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

// handleSetVendorCategory overrides a vendor's category; null clears it
func (s *Server) handleSetVendorCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Category *string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var category *Category
	if req.Category != nil {
		c, ok := LookupCategory(*req.Category)
		if !ok {
			writeJSONError(w, fmt.Sprintf("unknown category %q", *req.Category), http.StatusBadRequest)
			return
		}
		category = &c
	}

	vendor, err := s.service.SetVendorCategory(r.Context(), id, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

// handleListCategories returns the category enumeration
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Categories)
}

// filteredBills runs an unlimited search using the request's filters
func (s *Server) filteredBills(w http.ResponseWriter, r *http.Request, filter BillFilter) ([]*BillView, bool) {
	bills, err := s.service.Search(r.Context(), SearchQuery{BillFilter: filter})
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return bills, true
}

// handleStatistics summarizes the amounts of the matching bills
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBillFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	bills, ok := s.filteredBills(w, r, filter)
	if !ok {
		return
	}
	stats := ComputeStatistics(bills)
	if stats == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleMonthlySpending totals the matching bills per month
func (s *Server) handleMonthlySpending(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBillFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	bills, ok := s.filteredBills(w, r, filter)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MonthlySpending(bills))
}

// handleCategorySpending totals bills per category, defaulting to the current year to date
func (s *Server) handleCategorySpending(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBillFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.From.IsZero() && filter.To.IsZero() {
		today := DateOf(s.service.timeSource.Now())
		filter.From = NewDate(today.Year(), time.January, 1)
		filter.To = today
	}
	bills, ok := s.filteredBills(w, r, filter)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CategorySpending(bills))
}

// handleTopVendors ranks vendors by spend
func (s *Server) handleTopVendors(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBillFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	top := defaultTopVendors
	if v := r.URL.Query().Get("top"); v != "" {
		if top, err = strconv.Atoi(v); err != nil || top < 1 {
			writeJSONError(w, fmt.Sprintf("invalid top %q", v), http.StatusBadRequest)
			return
		}
	}
	bills, ok := s.filteredBills(w, r, filter)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TopVendors(bills, top))
}

// handleExport downloads the matching bills as CSV, JSON or XLSX
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := ParseExportFormat(q.Get("format"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	columns, err := ParseColumns(q.Get("columns"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter, err := parseBillFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	bills, ok := s.filteredBills(w, r, filter)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := Export(&buf, format, bills, columns); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("receipts-%s.%s", DateOf(s.service.timeSource.Now()), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}
