package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

var badgerPrefix = []byte("chop:")

// Badger журнал в BadgerDB. Записи сжимаются zstd, ключи упорядочены по времени завершения.
type Badger struct {
	db      *badger.DB
	mu      sync.RWMutex
	isReady bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenBadger открывает журнал в каталоге dataPath/journal
func OpenBadger(dataPath string) (*Badger, error) {
	if dataPath == "" {
		dataPath = "data"
	}
	opts := badger.DefaultOptions(filepath.Join(dataPath, "journal"))
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Badger{db: db, isReady: true, enc: enc, dec: dec}, nil
}

func badgerKey(r Record) []byte {
	key := make([]byte, 0, len(badgerPrefix)+8+1+len(r.ID))
	key = append(key, badgerPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.FinishedAt.UnixNano()))
	key = append(key, ':')
	return append(key, r.ID...)
}

// Append сохраняет запись
func (b *Badger) Append(_ context.Context, r Record) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.isReady {
		return ErrClosed
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}
	packed := b.enc.EncodeAll(data, nil)

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(r), packed)
	})
}

// Recent читает последние записи обратным обходом ключей
func (b *Badger) Recent(ctx context.Context, n int) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.isReady {
		return nil, ErrClosed
	}

	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = badgerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), badgerPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(badgerPrefix); it.Next() {
			if n > 0 && len(out) >= n {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				raw, err := b.dec.DecodeAll(val, nil)
				if err != nil {
					return fmt.Errorf("zstd: %w", err)
				}
				var r Record
				if err := json.Unmarshal(raw, &r); err != nil {
					return fmt.Errorf("ошибка десериализации записи: %w", err)
				}
				out = append(out, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Close закрывает хранилище
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isReady {
		return nil
	}
	b.isReady = false
	b.enc.Close()
	b.dec.Close()
	return b.db.Close()
}
