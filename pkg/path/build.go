package path

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/bgrewell/iso9660-studio/pkg/directory"
)

// BuildPathTable flattens a directory tree into the ordered (identifier, extent,
// parent-index) list ECMA-119 6.9 requires: the root first with the self-parent
// convention (parent index 1), then breadth-first by depth, siblings in the byte
// order AddChild already sorted them into. Both the L- and M-path-table copies
// are re-emitted from this same list, so BuildPathTable runs once per volume
// descriptor, not once per endianness.
func BuildPathTable(root *directory.DirectoryRecord) []*PathTableRecord {
	type queued struct {
		rec       *directory.DirectoryRecord
		parentIdx uint16
	}

	var result []*PathTableRecord
	queue := []queued{{root, 1}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		result = append(result, &PathTableRecord{
			DirectoryIdentifierLength: byte(len(item.rec.FileIdentifier)),
			LocationOfExtent:          item.rec.LocationOfExtent,
			ParentDirectoryNumber:     item.parentIdx,
			DirectoryIdentifier:       item.rec.FileIdentifier,
		})
		ownIdx := uint16(len(result))

		for _, child := range item.rec.Children {
			if child.IsDirectory() {
				queue = append(queue, queued{child, ownIdx})
			}
		}
	}

	return result
}

// identifierBytes returns the on-disk identifier bytes: UTF-16BE for a Joliet path
// table, raw d-characters otherwise. The root's "\x00" identifier is never
// transcoded, matching DirectoryRecord's identifierBytes special case.
func (ptr *PathTableRecord) identifierBytes(joliet bool) []byte {
	if len(ptr.DirectoryIdentifier) == 1 && ptr.DirectoryIdentifier[0] == 0x00 {
		return []byte{0x00}
	}
	if !joliet {
		return []byte(ptr.DirectoryIdentifier)
	}
	runes := utf16.Encode([]rune(ptr.DirectoryIdentifier))
	buf := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		buf = append(buf, byte(r>>8), byte(r))
	}
	return buf
}

// Len returns the on-disk length of this path table record, padded to an even
// total per ECMA-119 9.4.
func (ptr *PathTableRecord) Len(joliet bool) int {
	n := 8 + len(ptr.identifierBytes(joliet))
	if n%2 != 0 {
		n++
	}
	return n
}

// Marshal encodes the record in either byte order: LE for the L-path-table,
// BE for the M-path-table. The two copies must be byte-for-byte transcriptions
// of one another, which this shared encoder guarantees by construction.
func (ptr *PathTableRecord) Marshal(bigEndian bool, joliet bool) []byte {
	identBytes := ptr.identifierBytes(joliet)
	buf := make([]byte, ptr.Len(joliet))

	buf[0] = byte(len(identBytes))
	buf[1] = ptr.ExtendedAttributeRecordLength
	if bigEndian {
		binary.BigEndian.PutUint32(buf[2:6], ptr.LocationOfExtent)
		binary.BigEndian.PutUint16(buf[6:8], ptr.ParentDirectoryNumber)
	} else {
		binary.LittleEndian.PutUint32(buf[2:6], ptr.LocationOfExtent)
		binary.LittleEndian.PutUint16(buf[6:8], ptr.ParentDirectoryNumber)
	}
	copy(buf[8:8+len(identBytes)], identBytes)

	return buf
}

// MarshalPathTable encodes an entire ordered path table list as one contiguous
// byte slice, ready to be padded to a whole number of blocks by the layout engine.
func MarshalPathTable(records []*PathTableRecord, bigEndian bool, joliet bool) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r.Marshal(bigEndian, joliet)...)
	}
	return out
}
