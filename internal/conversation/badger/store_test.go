package badger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/frahmantamala/iam-copilot/internal/conversation"
	convbadger "github.com/frahmantamala/iam-copilot/internal/conversation/badger"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBadgerStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Conversation Badger Suite")
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *convbadger.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = convbadger.Open(convbadger.Config{InMemory: true, MaxMessages: 3, Logger: logger.Discard()})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
	})

	It("satisfies the conversation store contract", func() {
		var _ conversation.Store = store
	})

	It("returns an empty history for an unknown thread", func() {
		history, err := store.History(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(BeEmpty())
	})

	It("appends and trims to the most recent messages", func() {
		Expect(store.Append(ctx, "t1",
			conversation.NewMessage(conversation.RoleHuman, "q1"),
			conversation.NewMessage(conversation.RoleAssistant, "a1"),
		)).To(Succeed())
		Expect(store.Append(ctx, "t1",
			conversation.NewMessage(conversation.RoleHuman, "q2"),
			conversation.NewMessage(conversation.RoleAssistant, "a2"),
		)).To(Succeed())

		history, err := store.History(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(3))
		Expect(history[0].Content).To(Equal("a1"))
		Expect(history[2].Role).To(Equal(conversation.RoleAssistant))
	})

	It("deletes a thread on reset", func() {
		Expect(store.Append(ctx, "t1", conversation.NewMessage(conversation.RoleHuman, "q"))).To(Succeed())
		Expect(store.Reset(ctx, "t1")).To(Succeed())

		history, err := store.History(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(BeEmpty())
	})

	It("honours a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		Expect(store.Append(cancelled, "t1", conversation.NewMessage(conversation.RoleHuman, "q"))).To(MatchError(context.Canceled))
	})

	It("keeps every message when one thread is written concurrently", func() {
		unbounded, err := convbadger.Open(convbadger.Config{InMemory: true})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(unbounded.Close)

		const writers = 50
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				if err := unbounded.Append(ctx, "t1", conversation.NewMessage(conversation.RoleHuman, fmt.Sprintf("q%d", i))); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Expect(errs).To(BeEmpty())
		history, err := unbounded.History(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(writers))
	})

	It("persists threads across reopen", func() {
		dir := GinkgoT().TempDir()
		first, err := convbadger.Open(convbadger.Config{Path: dir})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Append(ctx, "t1", conversation.NewMessage(conversation.RoleHuman, "kept"))).To(Succeed())
		Expect(first.Close()).To(Succeed())

		second, err := convbadger.Open(convbadger.Config{Path: dir})
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		history, err := second.History(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
		Expect(history[0].Content).To(Equal("kept"))
	})

	It("requires a path unless in memory", func() {
		_, err := convbadger.Open(convbadger.Config{})
		Expect(err).To(HaveOccurred())
	})
})
