package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logger Suite")
}

var _ = Describe("Logger", func() {
	DescribeTable("ParseLevel",
		func(in string, want slog.Level) {
			Expect(logger.ParseLevel(in)).To(Equal(want))
		},
		Entry("debug", "DEBUG", slog.LevelDebug),
		Entry("warn", "warn", slog.LevelWarn),
		Entry("error", "error", slog.LevelError),
		Entry("unknown falls back to info", "loud", slog.LevelInfo),
	)

	It("writes JSON when asked", func() {
		var buf bytes.Buffer
		logger.New(&buf, "info", "json").Info("hello", "k", "v")
		Expect(buf.String()).To(ContainSubstring(`"msg":"hello"`))
		Expect(buf.String()).To(ContainSubstring(`"k":"v"`))
	})

	It("uses the fallback only when the context carries no logger", func() {
		var buf bytes.Buffer
		fallback := logger.New(&buf, "info", "text")
		Expect(logger.FromOr(context.Background(), fallback)).To(BeIdenticalTo(fallback))

		logger.Init("error", "text")
		ctx := logger.With(context.Background(), "trace_id", "t1")
		Expect(logger.FromOr(ctx, fallback)).NotTo(BeIdenticalTo(fallback))
		Expect(logger.From(ctx)).To(BeIdenticalTo(logger.FromOr(ctx, fallback)))
	})
})
