package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
)

// Store provides pebble-based persistence for account state.
// Serialization of conflicting writes happens in Ledger, not here.
type Store struct {
	db *pebble.DB
}

// NewStore opens a pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 500,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// NewMemStore opens an in-memory database. For tests and throwaway devnets.
func NewMemStore() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: memFS()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory pebble db: %w", err)
	}
	return &Store{db: db}, nil
}

func memFS() vfs.FS { return vfs.NewMem() }

func (s *Store) Close() error { return s.db.Close() }

// SaveAccount persists an account envelope.
func (s *Store) SaveAccount(acc *tx.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account %s: %w", acc.Address, err)
	}
	if err := s.db.Set(accountKey(acc.Address), data, pebble.Sync); err != nil {
		return fmt.Errorf("save account %s: %w", acc.Address, err)
	}
	return nil
}

// LoadAccount loads an account envelope. Returns (nil, nil) when the
// address is Nonexistent.
func (s *Store) LoadAccount(addr pda.Address) (*tx.Account, error) {
	data, closer, err := s.db.Get(accountKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	defer closer.Close()

	var acc tx.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("unmarshal account %s: %w", addr, err)
	}
	return &acc, nil
}

// DeleteAccount removes an account.
func (s *Store) DeleteAccount(addr pda.Address) error {
	if err := s.db.Delete(accountKey(addr), pebble.Sync); err != nil {
		return fmt.Errorf("delete account %s: %w", addr, err)
	}
	return nil
}

// ForEachAccount iterates every stored account envelope.
func (s *Store) ForEachAccount(fn func(*tx.Account) error) error {
	prefix := accountPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var acc tx.Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue // skip invalid entries
		}
		if err := fn(&acc); err != nil {
			return err
		}
	}
	return nil
}

// NextTxSeq atomically bumps and returns the submission counter used to
// salt transaction identifiers.
func (s *Store) NextTxSeq() (uint64, error) {
	var seq uint64
	data, closer, err := s.db.Get([]byte(keyTxSeq))
	if err == nil {
		seq = binary.LittleEndian.Uint64(data)
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return 0, fmt.Errorf("get tx seq: %w", err)
	}
	seq++

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seq)
	if err := s.db.Set([]byte(keyTxSeq), buf[:], pebble.NoSync); err != nil {
		return 0, fmt.Errorf("bump tx seq: %w", err)
	}
	return seq, nil
}
