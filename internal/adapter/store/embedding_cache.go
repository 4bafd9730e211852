package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"github.com/darshil0/DineAI/internal/port"
)

// CurrentSchemaVersion is bumped whenever the on-disk vector encoding
// changes. Opening a cache written with another version clears it.
const CurrentSchemaVersion = 1

var (
	bucketEmbeddings = []byte("embeddings")
	bucketMeta       = []byte("meta")
	keySchemaVersion = []byte("schema_version")
)

// EmbeddingCache persists embeddings in a bbolt file so restarts do not pay
// for the same provider calls twice.
type EmbeddingCache struct {
	db *bbolt.DB
	mu sync.RWMutex
	// Hot entries read or written during this process.
	mem map[string][]float32
}

var _ port.EmbeddingCache = (*EmbeddingCache)(nil)

type storedVector struct {
	Vector []float32 `json:"v"`
}

func OpenEmbeddingCache(path string) (*EmbeddingCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEmbeddings, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &EmbeddingCache{db: db, mem: make(map[string][]float32)}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *EmbeddingCache) migrate() error {
	version, err := c.SchemaVersion()
	if err != nil {
		return err
	}
	if version == CurrentSchemaVersion {
		return nil
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache for schema %d: %w", CurrentSchemaVersion, err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

// SchemaVersion returns 0 for a fresh file.
func (c *EmbeddingCache) SchemaVersion() (int, error) {
	var version int
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaVersion)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &version)
	})
	return version, err
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool, error) {
	c.mu.RLock()
	vec, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return vec, true, nil
	}

	var stored storedVector
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding %s: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}

	c.mu.Lock()
	c.mem[key] = stored.Vector
	c.mu.Unlock()
	return stored.Vector, true, nil
}

func (c *EmbeddingCache) Put(key string, vector []float32) error {
	data, err := json.Marshal(storedVector{Vector: vector})
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write embedding %s: %w", key, err)
	}

	c.mu.Lock()
	c.mem[key] = vector
	c.mu.Unlock()
	return nil
}

func (c *EmbeddingCache) Count() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear drops every cached embedding.
func (c *EmbeddingCache) Clear() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEmbeddings); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketEmbeddings)
		return err
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.mem = make(map[string][]float32)
	c.mu.Unlock()
	return nil
}

func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}
