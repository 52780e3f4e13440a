// Package store persists committed translation records. Records are encoded
// with msgpack and kept in BadgerDB under "translation:<id>" keys.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"lensd/pkg/types"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("store: not found")

const keyPrefix = "translation:"

// Options configures the BadgerDB store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string
	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool
	// Logger receives badger's warnings and errors; info and debug output is
	// dropped.
	Logger zerolog.Logger
}

// Badger is the durable record store.
type Badger struct {
	db *badger.DB
}

// Open creates or opens a store.
func Open(opts Options) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: opts.Logger.With().Str("component", "store").Logger()})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Badger{db: db}, nil
}

func recordKey(id string) []byte { return []byte(keyPrefix + id) }

// Insert stores rec, replacing any record with the same id.
func (b *Badger) Insert(_ context.Context, rec types.TranslationRecord) error {
	if rec.ID == "" {
		return errors.New("store: record id is required")
	}
	val, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", rec.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), val)
	})
}

// Delete removes a record. Deleting a missing record is not an error.
func (b *Badger) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// FetchThread returns the record with the given id together with its
// follow-up messages.
func (b *Badger) FetchThread(_ context.Context, id string) (types.TranslationRecord, error) {
	var rec types.TranslationRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.TranslationRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns all records, newest first.
func (b *Badger) List(_ context.Context) ([]types.TranslationRecord, error) {
	var out []types.TranslationRecord
	prefix := []byte(keyPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec types.TranslationRecord
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Close releases the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger forwards badger's own log lines to zerolog.
type badgerLogger struct{ log zerolog.Logger }

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
