// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/storage"
)

// Journal implements storage.Journal for BadgerDB.
//
// Each entry is stored as two records keyed by position: the document and
// the waveform. A count record tracks the journal length so appends can
// verify that positions continue it.
type Journal struct {
	backend *Backend
	logger  *slog.Logger

	// Serializes appends so the count check and the write are atomic.
	appendMu sync.Mutex
}

var _ storage.Journal = (*Journal)(nil)

// NewJournal creates a journal on top of an open backend.
func NewJournal(backend *Backend) *Journal {
	return &Journal{
		backend: backend,
		logger:  backend.logger.With("component", "journal"),
	}
}

// Close is a no-op; the backend owns the database handle.
func (j *Journal) Close() error {
	return nil
}

// AppendEntries appends entries, stamping InsertedAt when unset, and returns
// the number committed.
//
// Large appends are split across several transactions when a single one
// would exceed badger's limits. Each committed transaction also advances the
// count, so a failure partway leaves a consistent prefix of committed entries.
func (j *Journal) AppendEntries(ctx context.Context, entries ...core.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if j.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	j.appendMu.Lock()
	defer j.appendMu.Unlock()

	count, err := j.CountEntries(ctx)
	if err != nil {
		return 0, err
	}
	for i, entry := range entries {
		if entry.Document.Position != count+i {
			return 0, fmt.Errorf("%w: entry %d has position %d, expected %d",
				storage.ErrOutOfOrder, i, entry.Document.Position, count+i)
		}
	}

	now := time.Now().UTC()
	tx := j.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	committed := 0
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		entry := &entries[i]
		if entry.Document.InsertedAt.IsZero() {
			entry.Document.InsertedAt = now
		}

		err := j.setEntry(tx, entry, count+i+1)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return committed, err
			}
			committed = i
			j.logger.Debug("split journal append", "committed", count+committed)
			tx = j.backend.db.NewTransaction(true)
			err = j.setEntry(tx, entry, count+i+1)
		}
		if err != nil {
			return committed, err
		}
	}

	if err := tx.Commit(); err != nil {
		return committed, err
	}
	return len(entries), nil
}

// setEntry writes an entry and the count that includes it.
func (j *Journal) setEntry(tx *badger.Txn, entry *core.Entry, count int) error {
	pos := entry.Document.Position
	if err := tx.Set(makePositionKey(entryDocPrefix, pos), storage.MarshalDocument(&entry.Document)); err != nil {
		return err
	}
	if err := tx.Set(makePositionKey(entryWavePrefix, pos), storage.MarshalWaveform(entry.Wave)); err != nil {
		return err
	}
	return tx.Set([]byte(countKey), encodeCount(count))
}

// CountEntries returns the number of journaled entries.
func (j *Journal) CountEntries(ctx context.Context) (int, error) {
	if j.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	var count int
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = readCount(tx)
		return err
	}, false)
	return count, err
}

// ForEachEntry calls fn for every entry at or after start, in position order.
func (j *Journal) ForEachEntry(ctx context.Context, start int, fn func(entry core.Entry) error) error {
	if j.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return j.backend.WithTx(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryDocPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makePositionKey(entryDocPrefix, start)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			pos, err := positionFromKey(entryDocPrefix, item.Key())
			if err != nil {
				return err
			}
			// Records past the count belong to an append that never committed its count.
			if pos >= count {
				return nil
			}

			var doc *core.Document
			if err := item.Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			}); err != nil {
				return fmt.Errorf("position %d: %w", pos, err)
			}

			wave, err := readWaveform(tx, pos)
			if err != nil {
				return err
			}

			if err := fn(core.Entry{Document: *doc, Wave: wave}); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// GetDocument retrieves the document at a position.
func (j *Journal) GetDocument(ctx context.Context, position int) (*core.Document, error) {
	if j.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var result *core.Document
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, position)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: document at position %d", storage.ErrNotFound, position)
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves documents by position, skipping missing ones.
func (j *Journal) GetDocuments(ctx context.Context, positions ...int) ([]*core.Document, error) {
	if j.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var result []*core.Document
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		for _, pos := range positions {
			doc, err := readDocument(tx, pos)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// SaveConfig records the index configuration.
func (j *Journal) SaveConfig(ctx context.Context, config storage.IndexConfig) error {
	if j.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return j.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(configKey), storage.MarshalIndexConfig(&config)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadConfig returns the recorded configuration, or storage.ErrNotFound.
func (j *Journal) LoadConfig(ctx context.Context) (*storage.IndexConfig, error) {
	if j.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var config *storage.IndexConfig
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(configKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			config, err = storage.UnmarshalIndexConfig(val)
			return err
		})
	}, false)
	return config, err
}

func readCount(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(countKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		var err error
		count, err = decodeCount(val)
		return err
	})
	return count, err
}

// readDocument reads the document at pos. Returns nil, nil if absent.
func readDocument(tx *badger.Txn, pos int) (*core.Document, error) {
	item, err := tx.Get(makePositionKey(entryDocPrefix, pos))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

func readWaveform(tx *badger.Txn, pos int) (core.Waveform, error) {
	item, err := tx.Get(makePositionKey(entryWavePrefix, pos))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: waveform at position %d", storage.ErrNotFound, pos)
		}
		return nil, err
	}
	var wave core.Waveform
	err = item.Value(func(val []byte) error {
		var err error
		wave, err = storage.UnmarshalWaveform(val)
		return err
	})
	return wave, err
}
