// Package hashcache memoizes file content hashes.
//
// Each path is hashed at most once per process lifetime unless explicitly
// invalidated. A bbolt-backed layer persists hashes across runs; entries
// are keyed by path plus file size, so a size change is automatically a
// cache miss. Persistence is best-effort: a cache that cannot be opened or
// written degrades to memo-only operation, never fails the run.
package hashcache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "hashes"
	// blockSize is the read buffer size for streaming hashing, so memory
	// use is independent of file size.
	blockSize = 32 * 1024
	// hashSize is the length of a hex-encoded xxhash sum.
	hashSize = 16
)

// Cache provides memoized content hashing with optional bbolt persistence.
// Not safe for concurrent use; all engine operations run on one goroutine.
type Cache struct {
	memo map[string]string
	db   *bolt.DB
}

// Open creates a Cache backed by the bbolt file at path. An empty path
// disables persistence. If the database cannot be opened or initialized,
// Open still returns a usable memo-only Cache together with the error so
// the caller can log it and continue.
func Open(path string) (*Cache, error) {
	c := &Cache{memo: make(map[string]string)}
	if path == "" {
		return c, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return c, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return c, fmt.Errorf("open hash cache (locked by another instance?): %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return c, fmt.Errorf("init hash cache: %w", err)
	}

	c.db = db
	return c, nil
}

// Close closes the underlying database, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	return db.Close()
}

// makeKey builds a deterministic byte key for bbolt lookup.
// Key = path + NUL + fileSize(8). Size in the key means a changed file
// never resolves to its stale hash.
func makeKey(path string, size int64) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, size)
	return buf.Bytes()
}

// Hash returns the content hash for path, computing it at most once per
// process. Lookup order: in-memory memo, persisted cache, full read.
// An unreadable file yields an error, never a partial hash.
func (c *Cache) Hash(path string, size int64) (string, error) {
	if h, ok := c.memo[path]; ok {
		return h, nil
	}

	if h := c.lookup(path, size); h != "" {
		c.memo[path] = h
		return h, nil
	}

	h, err := hashFile(path)
	if err != nil {
		return "", err
	}

	c.memo[path] = h
	c.store(path, size, h)
	return h, nil
}

// Invalidate removes all cached hashes for path, so a re-created file at
// the same path is never served a stale hash.
func (c *Cache) Invalidate(path string) {
	delete(c.memo, path)
	if c.db == nil {
		return
	}
	prefix := append([]byte(path), 0)
	_ = c.db.Update(func(tx *bolt.Tx) error {
		cur := tx.Bucket([]byte(bucketName)).Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Seek(prefix) {
			if err := cur.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// lookup reads a persisted hash, returning "" on miss or any read error.
func (c *Cache) lookup(path string, size int64) string {
	if c.db == nil {
		return ""
	}
	var h string
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(makeKey(path, size))
		if len(data) == hashSize {
			h = string(data)
		}
		return nil
	})
	return h
}

// store persists a hash, best-effort.
func (c *Cache) store(path string, size int64, h string) {
	if c.db == nil || len(h) != hashSize {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(makeKey(path, size), []byte(h))
	})
}

// hashFile computes the xxhash digest of the full byte stream, read in
// fixed-size blocks.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	digest := xxhash.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return "", err
	}

	sum := make([]byte, 0, 8)
	sum = digest.Sum(sum)
	return hex.EncodeToString(sum), nil
}
