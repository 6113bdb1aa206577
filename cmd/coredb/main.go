// Command coredb wires the storage engine together end to end: load
// config, open the disk file, build the buffer pool, open a named index
// through the catalog, and run one operation against it.
//
// Usage:
//
//	coredb [-config coredb.toml] -index <name> insert <key> <pageID> <slot>
//	coredb [-config coredb.toml] -index <name> get <key>
//	coredb [-config coredb.toml] -index <name> delete <key>
//	coredb [-config coredb.toml] -index <name> scan
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"coredb/catalog"
	"coredb/config"
	"coredb/index/bplustree"
	"coredb/logging"
	"coredb/storage/buffer"
	"coredb/storage/disk"
	"coredb/types"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	indexName := flag.String("index", "primary", "index name to operate on")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "coredb: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logging.Configure(cfg.LogLevel)

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: coredb [-config path] [-index name] <insert|get|delete|scan> [args...]")
		os.Exit(1)
	}

	diskMgr, err := disk.NewFileManager(cfg.DataFile, cfg.PageSize)
	if err != nil {
		fail(err)
	}
	defer diskMgr.Close()

	pool := buffer.NewPoolManager(cfg.PoolSize, cfg.PageSize, diskMgr)

	cat, err := catalog.Open(pool)
	if err != nil {
		fail(err)
	}

	tree, err := cat.OpenIndex(*indexName, bplustree.DefaultComparator, cfg.LeafMaxSize, cfg.InternalMaxSize)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "insert":
		runInsert(tree, args[1:])
	case "get":
		runGet(tree, args[1:])
	case "delete":
		runDelete(tree, args[1:])
	case "scan":
		runScan(tree)
	default:
		fmt.Fprintf(os.Stderr, "coredb: unknown command %q\n", args[0])
		os.Exit(1)
	}

	if err := pool.FlushAll(); err != nil {
		fail(err)
	}
	if err := diskMgr.Sync(); err != nil {
		fail(err)
	}
}

func runInsert(tree *bplustree.Tree, args []string) {
	if len(args) != 3 {
		fail(fmt.Errorf("insert requires <key> <pageID> <slot>"))
	}
	key := mustInt64(args[0])
	pageID := mustInt64(args[1])
	slot := mustInt64(args[2])

	ok, err := tree.Insert(key, types.RID{PageID: types.PageID(pageID), SlotIndex: uint32(slot)})
	if err != nil {
		fail(err)
	}
	if !ok {
		fmt.Printf("key %d already exists\n", key)
		return
	}
	fmt.Printf("inserted %d\n", key)
}

func runGet(tree *bplustree.Tree, args []string) {
	if len(args) != 1 {
		fail(fmt.Errorf("get requires <key>"))
	}
	key := mustInt64(args[0])

	values, err := tree.GetValue(key)
	if err != nil {
		fail(err)
	}
	if len(values) == 0 {
		fmt.Printf("key %d not found\n", key)
		return
	}
	for _, v := range values {
		fmt.Printf("%d -> page %d slot %d\n", key, v.PageID, v.SlotIndex)
	}
}

func runDelete(tree *bplustree.Tree, args []string) {
	if len(args) != 1 {
		fail(fmt.Errorf("delete requires <key>"))
	}
	key := mustInt64(args[0])

	if err := tree.Remove(key); err != nil {
		fail(err)
	}
	fmt.Printf("removed %d\n", key)
}

func runScan(tree *bplustree.Tree) {
	it, err := tree.Begin()
	if err != nil {
		fail(err)
	}
	defer it.Close()

	for !it.IsEnd() {
		key, rid := it.Item()
		fmt.Printf("%d -> page %d slot %d\n", key, rid.PageID, rid.SlotIndex)
		if err := it.Next(); err != nil {
			fail(err)
		}
	}
}

func mustInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid integer %q: %w", s, err))
	}
	return v
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "coredb: %v\n", err)
	os.Exit(1)
}
