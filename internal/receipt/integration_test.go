package receipt_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/scanning"
)

// scriptedCompleter answers every prompt with the same tagged response
type scriptedCompleter struct {
	response string
	prompts  []string
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.response, nil
}

func (c *scriptedCompleter) Close() error {
	return nil
}

var _ = Describe("Receipt ledger", func() {
	var (
		db          *receipt.SQLiteDB
		completer   *scriptedCompleter
		server      *receipt.Server
		ghttpServer *ghttp.Server
	)

	do := func(req *http.Request) *http.Response {
		ghttpServer.AppendHandlers(server.ServeHTTP)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	get := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+path, nil)
		Expect(err).NotTo(HaveOccurred())
		return do(req)
	}

	decode := func(resp *http.Response, v any) {
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed(), string(body))
	}

	BeforeEach(func() {
		dir := GinkgoT().TempDir()

		var err error
		db, err = receipt.NewSQLiteDB(filepath.Join(dir, "ledger.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		store, err := receipt.NewLocalStorage(filepath.Join(dir, "uploads"))
		Expect(err).NotTo(HaveOccurred())

		completer = &scriptedCompleter{response: `<vendor>ACME Hardware</vendor>
<date>03/14/2024</date>
<amount>$45.00</amount>
<category>shopping</category>
<description>Screws and a hammer</description>`}

		service := receipt.NewService(db, store,
			scanning.NewExtractor(nil, 0),
			scanning.NewParser(completer),
			receipt.DefaultUploadLimits(),
		)
		server = receipt.NewServer(service, receipt.BasicAuth{})
		ghttpServer = ghttp.NewServer()
		DeferCleanup(ghttpServer.Close)
	})

	It("takes a text receipt from upload to export", func() {
		By("uploading the receipt")
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "acme receipt.txt")
		Expect(err).NotTo(HaveOccurred())
		_, err = io.WriteString(part, "ACME HARDWARE\n03/14/2024\nScrews 10.00\nHammer 35.00\nTotal: $45.00\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/receipts", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp := do(req)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var extraction receipt.Extraction
		decode(resp, &extraction)
		Expect(extraction.Vendor.Name).To(Equal("ACME Hardware"))
		Expect(extraction.Bill.Amount).To(Equal(45.0))
		Expect(extraction.Bill.TransactionDate).To(Equal(receipt.NewDate(2024, time.March, 14)))
		Expect(extraction.FileReference).To(HaveSuffix("_acme_receipt.txt"))
		Expect(completer.prompts).To(HaveLen(1))
		Expect(completer.prompts[0]).To(ContainSubstring("Total: $45.00"))

		By("saving the reviewed record")
		payload, err := json.Marshal(map[string]any{
			"vendor":         extraction.Vendor,
			"bill":           extraction.Bill,
			"file_reference": extraction.FileReference,
		})
		Expect(err).NotTo(HaveOccurred())
		req, err = http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/bills", bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		resp = do(req)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		vendors, err := db.ListVendors(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(vendors).To(HaveLen(1))
		Expect(*vendors[0].Category).To(Equal(receipt.CategoryShopping))

		By("searching by part of the vendor name")
		var bills []*receipt.BillView
		decode(get("/api/bills?q=acme"), &bills)
		Expect(bills).To(HaveLen(1))
		Expect(bills[0].Amount).To(Equal(45.0))
		Expect(bills[0].FileReference).To(Equal(extraction.FileReference))

		By("downloading the original upload")
		resp = get("/api/receipts/" + extraction.FileReference + "/file")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		original, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(original)).To(HavePrefix("ACME HARDWARE"))

		By("exporting the same search")
		resp = get("/api/export?q=acme")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		records, err := csv.NewReader(resp.Body).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(len(bills) + 1))
		Expect(strings.Join(records[1], ",")).To(Equal("2024-03-14,ACME Hardware,45.00,Shopping,Screws and a hammer"))
	})

	It("rejects a receipt whose amount cannot be read", func() {
		completer.response = strings.Replace(completer.response, "$45.00", "see attached", 1)

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.txt")
		Expect(err).NotTo(HaveOccurred())
		_, err = io.WriteString(part, "ACME HARDWARE\nTotal: see attached\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/receipts", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		Expect(do(req).StatusCode).To(Equal(http.StatusUnprocessableEntity))

		var bills []*receipt.BillView
		decode(get("/api/bills"), &bills)
		Expect(bills).To(BeEmpty())
	})
})
