package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/llm"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LLM Suite")
}

var _ = Describe("New", func() {
	It("builds an ollama client without contacting the server", func() {
		client, err := llm.New(internal.LLMConfig{Provider: "ollama", Model: "llama3.2", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(client).To(BeAssignableToTypeOf(&llm.OllamaClient{}))
	})

	It("builds an openai client", func() {
		client, err := llm.New(internal.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(client).To(BeAssignableToTypeOf(&llm.OpenAIClient{}))
	})

	It("rejects unknown providers", func() {
		_, err := llm.New(internal.LLMConfig{Provider: "carrier-pigeon"}, logger.Discard())
		Expect(err).To(MatchError(ContainSubstring("carrier-pigeon")))
	})
})

var _ = Describe("OpenAIClient", func() {
	var (
		server   *httptest.Server
		received map[string]interface{}
		status   int
		choices  []map[string]interface{}
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		choices = []map[string]interface{}{
			{"index": 0, "finish_reason": "stop", "message": map[string]interface{}{"role": "assistant", "content": "```sql\nSELECT 1;\n```"}},
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer secret"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]interface{}{"message": "quota exceeded", "type": "insufficient_quota"}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"model":   "gpt-4o-mini",
				"choices": choices,
			})
		}))
		DeferCleanup(server.Close)
	})

	newClient := func() *llm.OpenAIClient {
		return llm.NewOpenAIClient(internal.LLMConfig{Model: "gpt-4o-mini", APIKey: "secret", BaseURL: server.URL + "/v1"}, logger.Discard())
	}

	It("returns the first choice", func() {
		text, err := newClient().Generate(context.Background(), "which users?")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("```sql\nSELECT 1;\n```"))

		Expect(received["model"]).To(Equal("gpt-4o-mini"))
		messages := received["messages"].([]interface{})
		Expect(messages).To(HaveLen(2))
		Expect(messages[1].(map[string]interface{})["content"]).To(Equal("which users?"))
	})

	It("fails when there are no choices", func() {
		choices = []map[string]interface{}{}
		_, err := newClient().Generate(context.Background(), "q")
		Expect(err).To(MatchError(ContainSubstring("no choices")))
	})

	It("wraps API errors", func() {
		status = http.StatusTooManyRequests
		_, err := newClient().Generate(context.Background(), "q")
		Expect(err).To(MatchError(ContainSubstring("openai chat completion failed")))
	})
})
