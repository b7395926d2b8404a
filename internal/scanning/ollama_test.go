package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		ollama *Ollama
		text   string
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		ollama, newErr = NewOllama(server.URL()+"/", "llama3.1")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = ollama.Complete(context.Background(), "extract this")
	})

	When("the API responds", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/generate"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"model":   "llama3.1",
					"prompt":  "extract this",
					"system":  "You are an expert at reading receipts and invoices and extracting accurate information from them.",
					"stream":  false,
					"options": map[string]any{"temperature": 0},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"response": "<vendor>Shop</vendor>",
					"done":     true,
				}),
			))
		})

		It("returns the response text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("<vendor>Shop</vendor>"))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "model not found"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 404")))
			Expect(err).To(MatchError(ContainSubstring("model not found")))
		})
	})
})
