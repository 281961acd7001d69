package watch

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

// ContentCache remembers the last content hash audited per path so saves
// that do not change a file are not re-audited.
type ContentCache struct {
	entries *lru.Cache[string, [sha256.Size]byte]
}

func NewContentCache(size int) (*ContentCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, [sha256.Size]byte](size)
	if err != nil {
		return nil, err
	}
	return &ContentCache{entries: c}, nil
}

// Changed records content for path and reports whether it differs from what
// was recorded before.
func (c *ContentCache) Changed(path string, content []byte) bool {
	sum := sha256.Sum256(content)
	if prev, ok := c.entries.Get(path); ok && prev == sum {
		return false
	}
	c.entries.Add(path, sum)
	return true
}

func (c *ContentCache) Forget(path string) {
	c.entries.Remove(path)
}

func (c *ContentCache) Len() int { return c.entries.Len() }
