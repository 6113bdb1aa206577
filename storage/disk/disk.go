// Package disk provides the fixed-size-page disk manager the buffer pool
// drives. The buffer pool never looks past this interface: it reads pages,
// writes pages, and allocates or frees page identifiers.
package disk

import "coredb/types"

// Manager is the disk-side collaborator the buffer pool depends on. All
// errors returned from a Manager are treated as fatal by callers.
type Manager interface {
	ReadPage(id types.PageID, dst []byte) error
	WritePage(id types.PageID, src []byte) error
	AllocatePage() (types.PageID, error)
	DeallocatePage(id types.PageID) error
	Sync() error
	Close() error
}
