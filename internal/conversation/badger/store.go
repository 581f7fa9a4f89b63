// Package badger persists conversation threads in an embedded badger database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/frahmantamala/iam-copilot/internal/conversation"
	pkglogger "github.com/frahmantamala/iam-copilot/pkg/logger"
)

const (
	keyPrefix = "thread/"
	lockCount = 64
)

type Config struct {
	Path string
	// InMemory keeps everything in RAM; Path is ignored.
	InMemory    bool
	MaxMessages int
	Logger      *slog.Logger
}

type Store struct {
	db          *badger.DB
	maxMessages int
	logger      *slog.Logger

	// locks serialize writers of one thread; concurrent read-modify-write
	// transactions on the same key would otherwise fail with badger.ErrConflict.
	locks [lockCount]sync.Mutex
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent conversation store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create conversation directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = pkglogger.Discard()
	}
	return &Store{db: db, maxMessages: cfg.MaxMessages, logger: logger}, nil
}

func (s *Store) lockThread(threadID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(threadID))
	mu := &s.locks[h.Sum32()%lockCount]
	mu.Lock()
	return mu.Unlock
}

func threadKey(threadID string) []byte {
	return []byte(keyPrefix + threadID)
}

func (s *Store) History(ctx context.Context, threadID string) ([]conversation.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []conversation.Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		msgs, err = readThread(txn, threadID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read thread %s: %w", threadID, err)
	}
	return msgs, nil
}

func (s *Store) Append(ctx context.Context, threadID string, msgs ...conversation.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := readThread(txn, threadID)
		if err != nil {
			return err
		}
		thread := conversation.Tail(append(existing, msgs...), s.maxMessages)

		data, err := json.Marshal(thread)
		if err != nil {
			return err
		}
		return txn.Set(threadKey(threadID), data)
	})
	if err != nil {
		return fmt.Errorf("append to thread %s: %w", threadID, err)
	}
	s.logger.Debug("conversation updated", "thread_id", threadID, "appended", len(msgs))
	return nil
}

func (s *Store) Reset(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(threadKey(threadID))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func readThread(txn *badger.Txn, threadID string) ([]conversation.Message, error) {
	item, err := txn.Get(threadKey(threadID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []conversation.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []conversation.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msgs)
	})
	return msgs, err
}
