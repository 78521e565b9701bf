package server

import (
	"encoding/json"
	"strconv"

	"github.com/opencontainers/go-digest"
	"github.com/syndtr/goleveldb/leveldb"
)

// ResultCache keeps the prediction of single images in leveldb.
type ResultCache struct {
	db *leveldb.DB
}

type cachedRow struct {
	Classes       []int64   `json:"classes"`
	Probabilities []float32 `json:"probabilities"`
	Labels        []string  `json:"labels,omitempty"`
}

func OpenResultCache(dir string) (*ResultCache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &ResultCache{db: db}, nil
}

// CacheKey ties a result to the bundle content, the image content and k.
func CacheKey(bundle digest.Digest, image []byte, k int) []byte {
	return []byte(bundle.String() + "/" + digest.FromBytes(image).String() + "/" + strconv.Itoa(k))
}

func (c *ResultCache) Get(key []byte) (cachedRow, bool) {
	raw, err := c.db.Get(key, nil)
	if err != nil {
		return cachedRow{}, false
	}
	row := cachedRow{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return cachedRow{}, false
	}
	return row, true
}

func (c *ResultCache) Put(key []byte, row cachedRow) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return c.db.Put(key, raw, nil)
}

func (c *ResultCache) Close() error {
	return c.db.Close()
}
