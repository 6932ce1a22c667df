// internal/journal/journal.go
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

var ErrTurnNotFound = errors.New("turn not found")

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Entry is one journaled turn: the aggregate diff the tracker
// synthesized when the turn ended.
type Entry struct {
	TurnID     string    `json:"turn_id"`
	Diff       string    `json:"diff"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal persists per-turn diffs for later replay. The tracker itself
// persists nothing; recording is the driver's concern.
type Journal struct {
	db     *badger.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
}

func New(db *badger.DB, logger *zap.Logger) (*Journal, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Journal{db: db, enc: enc, dec: dec, logger: logger}, nil
}

// Open opens (or creates) a journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	j, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Record stores one turn's aggregate diff. An empty turnID gets a
// generated one; the used ID is returned either way.
func (j *Journal) Record(turnID, diffText string) (string, error) {
	if turnID == "" {
		turnID = uuid.New().String()
	}

	entry := Entry{
		TurnID:     turnID,
		Diff:       diffText,
		RecordedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling entry: %w", err)
	}
	compressed := j.enc.EncodeAll(data, nil)

	err = j.db.Update(func(txn *badger.Txn) error {
		key := []byte(fmt.Sprintf("turn:%s", entry.TurnID))
		if err := txn.Set(key, compressed); err != nil {
			return fmt.Errorf("storing turn: %w", err)
		}

		timeKey := []byte(fmt.Sprintf("turn_time:%d:%s", entry.RecordedAt.UnixNano(), entry.TurnID))
		if err := txn.Set(timeKey, nil); err != nil {
			return fmt.Errorf("storing time index: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	j.logger.Debug("turn recorded",
		zap.String("turn_id", entry.TurnID),
		zap.Int("diff_bytes", len(diffText)),
		zap.Int("stored_bytes", len(compressed)))
	return entry.TurnID, nil
}

// Get loads one journaled turn by ID.
func (j *Journal) Get(turnID string) (*Entry, error) {
	var entry Entry

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("turn:%s", turnID)))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrTurnNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return j.decode(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// List returns all journaled turns in recording order.
func (j *Journal) List() ([]Entry, error) {
	var ids []string

	prefix := []byte("turn_time:")
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			// turn_time:<nanos>:<id>
			parts := bytes.SplitN([]byte(key), []byte(":"), 3)
			if len(parts) == 3 {
				ids = append(ids, string(parts[2]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := j.Get(id)
		if err != nil {
			return nil, fmt.Errorf("loading turn %s: %w", id, err)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// decode unmarshals a stored value, decompressing when the zstd magic
// bytes are present so plain values still load.
func (j *Journal) decode(val []byte, entry *Entry) error {
	data := val
	if len(val) > 4 && bytes.Equal(val[:4], zstdMagic) {
		decoded, err := j.dec.DecodeAll(val, nil)
		if err != nil {
			return fmt.Errorf("decompressing entry: %w", err)
		}
		data = decoded
	}
	return json.Unmarshal(data, entry)
}

func (j *Journal) Close() error {
	j.enc.Close()
	j.dec.Close()
	return j.db.Close()
}
