package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"daochain/core/queue"
	"daochain/storage"
)

// Manager provides typed access to chain state on top of a key/value
// database. Every value is rlp encoded under a keccak256 hash of its logical
// key. The runtime builds one Manager per overlay so a Manager never commits
// anything by itself.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the backing store.
func (m *Manager) Database() storage.Database { return m.db }

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) raw(hashed []byte) ([]byte, error) {
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key. Missing keys are not an error.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVRemove drops value from the list stored under key, deleting the key
// once the list is empty. Order of the remaining entries is preserved.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(list) {
		return nil
	}
	if len(kept) == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, kept)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.raw(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

func pauseKey(module string) []byte {
	return []byte("system/paused/" + module)
}

// IsPaused reports whether the module has been halted. Read failures are
// treated as not paused; the write path surfaces storage errors.
func (m *Manager) IsPaused(module string) bool {
	if m == nil || module == "" {
		return false
	}
	var paused bool
	ok, err := m.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

// SetPaused persists the halt flag of module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if module == "" {
		return fmt.Errorf("state: module name required")
	}
	if !paused {
		return m.KVDelete(pauseKey(module))
	}
	return m.KVPut(pauseKey(module), true)
}

// Queue returns the persisted FIFO named topic.
func (m *Manager) Queue(topic string) *queue.Queue {
	return queue.New(m, topic)
}
