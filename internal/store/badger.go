package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"go.uber.org/zap"
)

// BadgerStore is the local-first replica backing the store boundary in a
// single-node deployment. Records are JSON values keyed by full path.
// Acknowledgements are asynchronous, matching the boundary contract: a put
// returns immediately and the ack callback fires from a background
// goroutine once the write lands (or is rejected).
type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger
}

// OpenBadger opens (or creates) the replica at dir. An empty dir opens an
// in-memory instance for development and tests.
func OpenBadger(dir string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerZap{log: log.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

// Close flushes and closes the replica.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// RunGC runs one value-log garbage collection pass. Intended to be called
// periodically from a maintenance loop.
func (b *BadgerStore) RunGC() error {
	err := b.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite || err == badger.ErrRejected {
		return nil
	}
	return err
}

// Get implements Store.
func (b *BadgerStore) Get(path string, fn func(value Record, ok bool)) {
	go func() {
		var rec Record
		found := false
		err := b.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(path))
			if err == badger.ErrKeyNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			found = true
			return nil
		})
		if err != nil {
			b.log.Error("badger get failed", zap.String("path", path), zap.Error(err))
			fn(nil, false)
			return
		}
		fn(rec, found)
	}()
}

// Put implements Store: read-merge-write inside one transaction, async ack.
func (b *BadgerStore) Put(path string, value Record, ack func(err error)) {
	fields := CloneRecord(value)
	go func() {
		err := b.db.Update(func(txn *badger.Txn) error {
			existing := make(Record)
			item, err := txn.Get([]byte(path))
			if err == nil {
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &existing); err != nil {
					// Unreadable prior value: last write wins.
					existing = make(Record)
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			MergeRecord(existing, fields)
			raw, err := json.Marshal(existing)
			if err != nil {
				return err
			}
			return txn.Set([]byte(path), raw)
		})
		if err != nil {
			b.log.Error("badger put failed", zap.String("path", path), zap.Error(err))
		}
		if ack != nil {
			ack(err)
		}
	}()
}

// Subscribe implements Store: replays the records currently under prefix,
// then streams live writes via badger's prefix subscription until stop is
// called.
func (b *BadgerStore) Subscribe(prefix string, fn func(key string, value Record)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				key := string(item.KeyCopy(nil))
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				var rec Record
				if err := json.Unmarshal(raw, &rec); err != nil {
					continue
				}
				fn(key, rec)
			}
			return nil
		})
		if err != nil {
			b.log.Error("badger replay failed", zap.String("prefix", prefix), zap.Error(err))
		}

		matches := []pb.Match{{Prefix: []byte(prefix)}}
		err = b.db.Subscribe(ctx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.Kv {
				var rec Record
				if err := json.Unmarshal(kv.Value, &rec); err != nil {
					continue
				}
				fn(string(kv.Key), rec)
			}
			return nil
		}, matches)
		if err != nil && ctx.Err() == nil {
			b.log.Error("badger subscription ended", zap.String("prefix", prefix), zap.Error(err))
		}
	}()

	return cancel
}

// badgerZap adapts zap to badger's logger interface.
type badgerZap struct {
	log *zap.SugaredLogger
}

func (l badgerZap) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
func (l badgerZap) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}
func (l badgerZap) Infof(format string, args ...interface{})  { l.log.Debugf(format, args...) }
func (l badgerZap) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
