package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of memoized trees.
const DefaultCacheSize = 256

// Cache memoizes Build keyed on a fingerprint of (records, options).
// Returned trees are shared between callers and must not be mutated.
type Cache struct {
	trees *lru.Cache[string, *Tree]
	group singleflight.Group
}

// NewCache constructs a Cache holding at most size trees.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	trees, err := lru.New[string, *Tree](size)
	if err != nil {
		return nil, err
	}
	return &Cache{trees: trees}, nil
}

// Build returns the memoized tree for records, computing it on a miss.
func (c *Cache) Build(records []Record, opts Options) *Tree {
	if c == nil {
		return Build(records, opts)
	}
	key, err := Fingerprint(records, opts)
	if err != nil {
		return Build(records, opts)
	}
	if tree, ok := c.trees.Get(key); ok {
		return tree
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		tree := Build(records, opts)
		c.trees.Add(key, tree)
		return tree, nil
	})
	return v.(*Tree)
}

// Len reports the number of cached trees.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.trees.Len()
}

// Fingerprint hashes the canonical JSON of records and options.
func Fingerprint(records []Record, opts Options) (string, error) {
	h := sha256.New()
	if opts.HideZero {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if err := json.NewEncoder(h).Encode(records); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
