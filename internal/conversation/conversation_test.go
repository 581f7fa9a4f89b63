package conversation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/frahmantamala/iam-copilot/internal/conversation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConversation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Conversation Suite")
}

func contents(msgs []conversation.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Content)
	}
	return out
}

var _ = Describe("Tail", func() {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleHuman, "a"),
		conversation.NewMessage(conversation.RoleAssistant, "b"),
		conversation.NewMessage(conversation.RoleHuman, "c"),
	}

	It("keeps the trailing messages", func() {
		Expect(contents(conversation.Tail(msgs, 2))).To(Equal([]string{"assistant:b", "human:c"}))
	})

	It("keeps everything when the limit is not positive or not reached", func() {
		Expect(conversation.Tail(msgs, 0)).To(HaveLen(3))
		Expect(conversation.Tail(msgs, 10)).To(HaveLen(3))
	})
})

var _ = Describe("MemoryStore", func() {
	var (
		ctx   context.Context
		store *conversation.MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = conversation.NewMemoryStore(4)
	})

	It("returns an empty history for an unknown thread", func() {
		history, err := store.History(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(BeEmpty())
	})

	It("appends in order and keeps threads apart", func() {
		Expect(store.Append(ctx, "t1",
			conversation.NewMessage(conversation.RoleHuman, "q1"),
			conversation.NewMessage(conversation.RoleAssistant, "a1"),
		)).To(Succeed())
		Expect(store.Append(ctx, "t2", conversation.NewMessage(conversation.RoleHuman, "other"))).To(Succeed())

		history, err := store.History(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(contents(history)).To(Equal([]string{"human:q1", "assistant:a1"}))
	})

	It("drops the oldest messages past the limit", func() {
		for i := 1; i <= 3; i++ {
			Expect(store.Append(ctx, "t1",
				conversation.NewMessage(conversation.RoleHuman, fmt.Sprintf("q%d", i)),
				conversation.NewMessage(conversation.RoleAssistant, fmt.Sprintf("a%d", i)),
			)).To(Succeed())
		}

		history, _ := store.History(ctx, "t1")
		Expect(contents(history)).To(Equal([]string{"human:q2", "assistant:a2", "human:q3", "assistant:a3"}))
	})

	It("returns a copy the caller may modify", func() {
		Expect(store.Append(ctx, "t1", conversation.NewMessage(conversation.RoleHuman, "q"))).To(Succeed())
		history, _ := store.History(ctx, "t1")
		history[0].Content = "changed"

		again, _ := store.History(ctx, "t1")
		Expect(again[0].Content).To(Equal("q"))
	})

	It("forgets a thread on reset", func() {
		Expect(store.Append(ctx, "t1", conversation.NewMessage(conversation.RoleHuman, "q"))).To(Succeed())
		Expect(store.Reset(ctx, "t1")).To(Succeed())

		history, _ := store.History(ctx, "t1")
		Expect(history).To(BeEmpty())
	})

	It("is safe for concurrent appends", func() {
		unbounded := conversation.NewMemoryStore(0)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				Expect(unbounded.Append(ctx, "t", conversation.NewMessage(conversation.RoleHuman, fmt.Sprint(i)))).To(Succeed())
			}(i)
		}
		wg.Wait()

		history, _ := unbounded.History(ctx, "t")
		Expect(history).To(HaveLen(20))
	})
})
