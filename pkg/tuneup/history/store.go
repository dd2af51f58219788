package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes
const (
	prefixRun   = "r:" // r:<8-byte start time><id> -> Record
	prefixIndex = "i:" // i:<id> -> run key
	schemaKey   = "m:__schema__"
)

// CurrentSchemaVersion is the record layout version written by this build.
const CurrentSchemaVersion = 1

// ErrNotFound is returned when no run matches an ID.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguousID is returned when an ID prefix matches more than one run.
var ErrAmbiguousID = errors.New("run ID prefix is ambiguous")

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the run history backed by Badger DB.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if s.GetSchema() == nil {
		if err := s.SetSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()}); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(r *Record) []byte {
	key := make([]byte, 0, len(prefixRun)+8+len(r.ID))
	key = append(key, prefixRun...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.StartedAt.UnixNano()))
	return append(key, r.ID...)
}

// Save stores or replaces a record.
func (s *Store) Save(r *Record) error {
	if r.ID == "" {
		return errors.New("record ID cannot be empty")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	key := runKey(r)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixIndex+r.ID), key)
	})
}

// List returns records newest first. A limit of 0 or less returns all.
func (s *Store) List(limit int) ([]Record, error) {
	records := []Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixRun)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key.
		seek := append([]byte(prefixRun), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}

			var r Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				// Skip records that can't be parsed
				continue
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return records, nil
}

// Get returns the run with id. A unique prefix of an ID is accepted.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("run ID cannot be empty")
	}

	var r *Record
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveID(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r = &Record{}
			return json.Unmarshal(val, r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

// resolveID finds the run key for an exact ID or a unique ID prefix.
func resolveID(txn *badger.Txn, id string) ([]byte, error) {
	opts := badger.DefaultIteratorOptions
	prefix := []byte(prefixIndex + id)
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var key []byte
	var matches int
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		matches++
		if string(it.Item().Key()) == prefixIndex+id {
			// Exact match wins over longer IDs sharing the prefix.
			return it.Item().ValueCopy(nil)
		}
		if matches == 1 {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return nil, err
			}
			key = v
		}
	}

	switch {
	case matches == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case matches > 1:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	default:
		return key, nil
	}
}

// Cleanup removes runs that started more than retentionDays ago and
// returns how many were removed. retentionDays of 0 or less removes all.
func (s *Store) Cleanup(retentionDays int, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	if retentionDays <= 0 {
		cutoff = now.Add(time.Hour * 24 * 365 * 100)
	}

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixRun)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			started := time.Unix(0, int64(binary.BigEndian.Uint64(key[len(prefixRun):len(prefixRun)+8])))
			if !started.Before(cutoff) {
				// Keys are time ordered; everything after is newer.
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning runs: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		id := string(key[len(prefixRun)+8:])
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if err := wb.Delete([]byte(prefixIndex + id)); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}

	return len(stale), nil
}

// Count returns the number of stored runs.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixRun)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// GetSchema returns the stored schema, or nil if not set.
func (s *Store) GetSchema() *Schema {
	var schema *Schema

	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})

	return schema
}

// SetSchema stores the schema version.
func (s *Store) SetSchema(schema *Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}
