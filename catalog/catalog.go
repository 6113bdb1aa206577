// Package catalog provides the minimal name-to-index façade a full SQL
// catalog would otherwise own: it maps index names to B+ tree roots
// persisted on a single header page, fronted by a small root-id cache.
package catalog

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"coredb/index/bplustree"
	"coredb/logging"
	"coredb/storage/buffer"
	"coredb/types"
)

// HeaderPageID is the well-known page id holding the (name, root) record
// array. It is allocated once, on the first Catalog ever opened against a
// given file.
const HeaderPageID types.PageID = 0

// Catalog opens and tracks named B+ tree indexes over a shared buffer pool.
// It implements bplustree.RootPersister so trees can report root-id
// changes back to it without the bplustree package depending on this one.
type Catalog struct {
	pool  *buffer.PoolManager
	cache *ristretto.Cache[string, types.PageID]

	mu    sync.Mutex
	trees map[string]*bplustree.Tree
}

// Open constructs a Catalog over pool, allocating the header page if this
// is a brand new file.
func Open(pool *buffer.PoolManager) (*Catalog, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, types.PageID]{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: building root-id cache: %w", err)
	}

	c := &Catalog{pool: pool, cache: cache, trees: make(map[string]*bplustree.Tree)}

	if err := c.ensureHeaderPage(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) ensureHeaderPage() error {
	if _, err := c.pool.Fetch(HeaderPageID); err == nil {
		return c.pool.Unpin(HeaderPageID, false)
	}

	frame, id, err := c.pool.NewPage()
	if err != nil {
		return fmt.Errorf("catalog: allocating header page: %w", err)
	}
	if id != HeaderPageID {
		return fmt.Errorf("catalog: expected header page id %d, got %d (file not empty)", HeaderPageID, id)
	}
	if err := encodeHeaderPage(frame.Data, nil); err != nil {
		return err
	}
	return c.pool.Unpin(id, true)
}

func (c *Catalog) records() ([]headerRecord, error) {
	frame, err := c.pool.Fetch(HeaderPageID)
	if err != nil {
		return nil, err
	}
	defer c.pool.Unpin(HeaderPageID, false)
	return decodeHeaderPage(frame.Data)
}

func (c *Catalog) writeRecords(records []headerRecord) error {
	frame, err := c.pool.Fetch(HeaderPageID)
	if err != nil {
		return err
	}
	if err := encodeHeaderPage(frame.Data, records); err != nil {
		c.pool.Unpin(HeaderPageID, false)
		return err
	}
	return c.pool.Unpin(HeaderPageID, true)
}

func (c *Catalog) lookupRoot(name string) (types.PageID, bool, error) {
	if root, ok := c.cache.Get(name); ok {
		return root, true, nil
	}
	records, err := c.records()
	if err != nil {
		return types.InvalidPageID, false, err
	}
	for _, r := range records {
		if r.name == name {
			c.cache.Set(name, r.root, 1)
			return r.root, true, nil
		}
	}
	return types.InvalidPageID, false, nil
}

// UpdateRootPageID implements bplustree.RootPersister: it is called by a
// Tree whenever a structural operation changes its root page id.
func (c *Catalog) UpdateRootPageID(name string, root types.PageID, insert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.records()
	if err != nil {
		return err
	}

	for i, r := range records {
		if r.name == name {
			records[i].root = root
			if err := c.writeRecords(records); err != nil {
				return err
			}
			c.cache.Set(name, root, 1)
			return nil
		}
	}

	if !insert {
		return fmt.Errorf("catalog: index %q: %w", name, types.ErrIndexNotFound)
	}
	records = append(records, headerRecord{name: name, root: root})
	if err := c.writeRecords(records); err != nil {
		return err
	}
	c.cache.Set(name, root, 1)
	return nil
}

// OpenIndex returns the named index, opening it from the header page's
// recorded root (or creating a brand new empty tree) on first use.
func (c *Catalog) OpenIndex(name string, cmp bplustree.Comparator, leafMaxSize, internalMaxSize int) (*bplustree.Tree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.trees[name]; ok {
		return t, nil
	}

	root, exists, err := c.lookupRoot(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		root = types.InvalidPageID
		records, err := c.records()
		if err != nil {
			return nil, err
		}
		records = append(records, headerRecord{name: name, root: root})
		if err := c.writeRecords(records); err != nil {
			return nil, err
		}
		logging.Infof("catalog: created index %q", name)
	}

	t := bplustree.NewTree(name, c.pool, c, cmp, leafMaxSize, internalMaxSize, root)
	c.trees[name] = t
	return t, nil
}

// DropIndex removes an index's record from the header page and evicts it
// from the in-process tree cache. It does not reclaim the tree's pages.
func (c *Catalog) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.records()
	if err != nil {
		return err
	}

	kept := records[:0]
	found := false
	for _, r := range records {
		if r.name == name {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("catalog: index %q: %w", name, types.ErrIndexNotFound)
	}

	if err := c.writeRecords(kept); err != nil {
		return err
	}
	c.cache.Del(name)
	delete(c.trees, name)
	return nil
}
