package copilot_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/copilot"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/transport"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type MockService struct {
	Answer   *copilot.Answer
	Topics   []copilot.TopicSummary
	Err      error
	ThreadID string
	Question string
}

func (m *MockService) Ask(_ context.Context, threadID, question string) (*copilot.Answer, error) {
	m.ThreadID, m.Question = threadID, question
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Answer, nil
}

func (m *MockService) RiskTopics(context.Context) ([]copilot.TopicSummary, error) {
	return m.Topics, m.Err
}

var _ = Describe("Handler", func() {
	var (
		service *MockService
		handler *copilot.Handler
	)

	BeforeEach(func() {
		service = &MockService{Answer: &copilot.Answer{ThreadID: "t-1", Response: "U1", SQL: "SELECT 1"}}
		handler = copilot.NewHandler(transport.NewBaseHandler(logger.Discard()), service)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.Chat(w, req)
		return w
	}

	Describe("POST /chat", func() {
		It("returns the answer and the thread id", func() {
			w := post(`{"query": "who has no MFA?", "thread_id": "t-1"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

			var resp copilot.ChatResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp).To(Equal(copilot.ChatResponse{Response: "U1", ThreadID: "t-1", SQL: "SELECT 1"}))
			Expect(service.ThreadID).To(Equal("t-1"))
			Expect(service.Question).To(Equal("who has no MFA?"))
		})

		It("passes an empty thread id through", func() {
			w := post(`{"query": "hi"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(service.ThreadID).To(BeEmpty())
		})

		It("rejects malformed JSON", func() {
			w := post(`{"query": `)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a missing query with field details", func() {
			w := post(`{"thread_id": "t-1"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("query is required"))
			Expect(service.Question).To(BeEmpty())
		})

		It("maps a missing database to its status", func() {
			service.Err = internal.ErrStoreMissing
			w := post(`{"query": "who?"}`)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeStoreMissing)))
		})

		It("hides unexpected errors", func() {
			service.Err = context.DeadlineExceeded
			w := post(`{"query": "who?"}`)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).NotTo(ContainSubstring("deadline"))
		})
	})

	Describe("GET /risk-topics", func() {
		It("lists the vocabulary with counts", func() {
			service.Topics = []copilot.TopicSummary{
				{Topic: risk.WeakMFAUsers, Description: risk.WeakMFAUsers.Description(), Users: 3},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/risk-topics", nil)
			w := httptest.NewRecorder()
			handler.GetRiskTopics(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp copilot.RiskTopicsResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Topics).To(ConsistOf(copilot.RiskTopicResponse{
				Topic:       "WEAK_MFA_USERS",
				Description: risk.WeakMFAUsers.Description(),
				Users:       3,
			}))
		})
	})
})
