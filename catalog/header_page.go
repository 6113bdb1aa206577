package catalog

import (
	"encoding/binary"
	"fmt"

	"coredb/types"
)

// The header page is a single fixed-size page holding a linear array of
// (index name, root page id) records: a 4-byte record count followed by
// records of nameLen(2) + name(nameLen) + rootPageID(4).
const maxNameLen = 64

type headerRecord struct {
	name string
	root types.PageID
}

func decodeHeaderPage(data []byte) ([]headerRecord, error) {
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	off := 4
	records := make([]headerRecord, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(data) {
			return nil, fmt.Errorf("catalog: header page truncated at record %d", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if off+nameLen+4 > len(data) {
			return nil, fmt.Errorf("catalog: header page truncated reading record %d", i)
		}
		name := string(data[off : off+nameLen])
		off += nameLen
		root := types.PageID(int32(binary.LittleEndian.Uint32(data[off : off+4])))
		off += 4
		records = append(records, headerRecord{name: name, root: root})
	}
	return records, nil
}

func encodeHeaderPage(dst []byte, records []headerRecord) error {
	for i := range dst {
		dst[i] = 0
	}
	binary.LittleEndian.PutUint32(dst[0:4], uint32(len(records)))
	off := 4
	for _, r := range records {
		if len(r.name) > maxNameLen {
			return fmt.Errorf("catalog: index name %q exceeds %d bytes", r.name, maxNameLen)
		}
		need := off + 2 + len(r.name) + 4
		if need > len(dst) {
			return fmt.Errorf("catalog: header page capacity exceeded at %d records", len(records))
		}
		binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(r.name)))
		off += 2
		copy(dst[off:off+len(r.name)], r.name)
		off += len(r.name)
		binary.LittleEndian.PutUint32(dst[off:off+4], uint32(int32(r.root)))
		off += 4
	}
	return nil
}
