// Package badgerstore implements storage.Store on an embedded BadgerDB. It
// mirrors the relational layout with key prefixes:
//
//	u/{user}                user profile
//	c/{candidate}           candidate
//	m/{candidate}/{ref}     photo
//	r/{user}/{candidate}    relation flags
//	rc/{candidate}/{user}   reverse relation index
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/storage"
)

const maxTxnRetries = 10

var errClosed = errors.New("storage is closed")

// Options configures the embedded store.
type Options struct {
	Dir string
	// InMemory keeps all data in RAM. Used by tests and the chat command.
	InMemory bool
	Logger   *zap.Logger
}

type Store struct {
	db     *badger.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func New(opts Options) (*Store, error) {
	const op = "storage/badgerstore/New"

	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	// Quiet logger, zap covers our own events.
	badgerOpts = badgerOpts.WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{db: db, logger: logger}, nil
}

// NewInMemory creates a store that is lost on Close.
func NewInMemory(logger *zap.Logger) (*Store, error) {
	return New(Options{InMemory: true, Logger: logger})
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing badger", zap.Error(err))
	}
}

// update runs fn in a read-write transaction and retries on conflicts with
// concurrent writers.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}

	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func userKey(id int64) []byte {
	return []byte("u/" + strconv.FormatInt(id, 10))
}

func candidateKey(id int64) []byte {
	return []byte("c/" + strconv.FormatInt(id, 10))
}

func mediaPrefix(candidateID int64) []byte {
	return []byte("m/" + strconv.FormatInt(candidateID, 10) + "/")
}

func mediaKey(candidateID int64, ref string) []byte {
	return append(mediaPrefix(candidateID), ref...)
}

func relationPrefix(userID int64) []byte {
	return []byte("r/" + strconv.FormatInt(userID, 10) + "/")
}

func relationKey(userID, candidateID int64) []byte {
	return append(relationPrefix(userID), strconv.FormatInt(candidateID, 10)...)
}

func reversePrefix(candidateID int64) []byte {
	return []byte("rc/" + strconv.FormatInt(candidateID, 10) + "/")
}

func reverseKey(candidateID, userID int64) []byte {
	return append(reversePrefix(candidateID), strconv.FormatInt(userID, 10)...)
}

func idFromKey(key, prefix []byte) (int64, error) {
	return strconv.ParseInt(string(key[len(prefix):]), 10, 64)
}

func getJSON(txn *badger.Txn, key []byte, target any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, target)
	})
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// keys returns every key with the prefix. Values are not fetched.
func keys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var result [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		result = append(result, it.Item().KeyCopy(nil))
	}
	return result
}

var _ storage.Store = (*Store)(nil)
