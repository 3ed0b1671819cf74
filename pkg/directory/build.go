package directory

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/bgrewell/iso9660-studio/pkg/encoding"
)

// ContentID identifies a file's byte content in the layout engine's content table.
// Two DirectoryRecord trees (the plain-ISO tree and, when Joliet is requested, the
// parallel UCS-2 tree) can both carry a record with the same ContentID; the layout
// engine resolves ContentID to an extent location once, after which both trees'
// records agree on LocationOfExtent, satisfying the "file extents are shared
// between the PVD and Joliet views" requirement without either tree owning the
// file bytes directly.
type ContentID int

// NoContent marks a DirectoryRecord that does not back a file (directories, and
// the synthesized dot/dotdot entries).
const NoContent ContentID = -1

// NewDirectory creates a write-side directory node ready for AddChild and, once
// the layout engine assigns LocationOfExtent/DataLength, Marshal.
func NewDirectory(identifier string) *DirectoryRecord {
	return &DirectoryRecord{
		FileIdentifier: identifier,
		FileFlags:      &FileFlags{Directory: true},
		ContentID:      NoContent,
	}
}

// NewFile creates a write-side file node carrying contentID bytes of length size.
func NewFile(identifier string, contentID ContentID, size uint32) *DirectoryRecord {
	return &DirectoryRecord{
		FileIdentifier: identifier,
		FileFlags:      &FileFlags{},
		ContentID:      contentID,
		DataLength:     size,
	}
}

// AddChild inserts child preserving the byte-order sibling sort of ECMA-119's path
// table ordering and invalidates any extent assignment the parent may already
// have carried, since a directory's data length depends on its child count.
// Returns an error if dr is not a directory.
func (dr *DirectoryRecord) AddChild(child *DirectoryRecord) error {
	if dr.FileFlags == nil || !dr.FileFlags.Directory {
		return fmt.Errorf("%q is not a directory", dr.FileIdentifier)
	}
	child.Parent = dr
	idx := sort.Search(len(dr.Children), func(i int) bool {
		return dr.Children[i].FileIdentifier >= child.FileIdentifier
	})
	dr.Children = append(dr.Children, nil)
	copy(dr.Children[idx+1:], dr.Children[idx:])
	dr.Children[idx] = child
	dr.LocationOfExtent = 0
	dr.DataLength = 0
	return nil
}

// Child looks up an immediate child by its on-disk identifier.
func (dr *DirectoryRecord) Child(identifier string) (*DirectoryRecord, bool) {
	for _, c := range dr.Children {
		if c.FileIdentifier == identifier {
			return c, true
		}
	}
	return nil, false
}

// IsDirectory reports whether this record represents a directory.
func (dr *DirectoryRecord) IsDirectory() bool {
	return dr.FileFlags != nil && dr.FileFlags.Directory
}

// IsDot reports whether this is the synthesized "\x00" (self) record.
func (dr *DirectoryRecord) IsDot() bool {
	return dr.FileIdentifier == "\x00"
}

// IsDotDot reports whether this is the synthesized "\x01" (parent) record.
func (dr *DirectoryRecord) IsDotDot() bool {
	return dr.FileIdentifier == "\x01"
}

// IsRootRecord reports whether this is the volume's root directory record.
func (dr *DirectoryRecord) IsRootRecord() bool {
	return dr.IsRoot
}

// DotEntries synthesizes the "\x00" and "\x01" records a directory's own extent
// carries as its first two records: dot points at the directory itself, dotdot
// at its parent (or at itself, for the root). Neither is ever stored in
// Children; the writer calls this when it lays down a directory's extent.
func (dr *DirectoryRecord) DotEntries() (dot, dotdot *DirectoryRecord) {
	parent := dr.Parent
	if parent == nil {
		parent = dr
	}
	dot = &DirectoryRecord{
		FileIdentifier:       "\x00",
		FileFlags:            &FileFlags{Directory: true},
		ContentID:            NoContent,
		LocationOfExtent:     dr.LocationOfExtent,
		DataLength:           dr.DataLength,
		RecordingDateAndTime: dr.RecordingDateAndTime,
		VolumeSequenceNumber: dr.VolumeSequenceNumber,
	}
	dotdot = &DirectoryRecord{
		FileIdentifier:       "\x01",
		FileFlags:            &FileFlags{Directory: true},
		ContentID:            NoContent,
		LocationOfExtent:     parent.LocationOfExtent,
		DataLength:           parent.DataLength,
		RecordingDateAndTime: parent.RecordingDateAndTime,
		VolumeSequenceNumber: dr.VolumeSequenceNumber,
	}
	return dot, dotdot
}

// sectorSize is ECMA-119's fixed logical block size.
const sectorSize = 2048

// PackDirectoryExtent lays out a directory's dot, dotdot and child records into
// its on-disk extent, applying ECMA-119 6.8.1.1's no-crossing-boundary rule:
// when the next record would cross a block boundary, the remainder of the
// block is zero-padded and the record starts the next block. The result is
// always a whole number of sectorSize blocks. Called twice per directory over
// a build: once by the layout engine (to learn DataLength, before dir.Parent's
// own DataLength is final — harmless, since record length never depends on the
// *value* of a both-endian field, only its presence) and once by the writer
// (for the final bytes, after every extent in the tree is assigned).
func PackDirectoryExtent(dir *DirectoryRecord, joliet bool) []byte {
	dot, dotdot := dir.DotEntries()
	records := make([][]byte, 0, len(dir.Children)+2)
	records = append(records, dot.Marshal(joliet), dotdot.Marshal(joliet))
	for _, c := range dir.Children {
		records = append(records, c.Marshal(joliet))
	}

	var out []byte
	var cur []byte
	for _, rb := range records {
		if len(cur)+len(rb) > sectorSize {
			out = append(out, cur...)
			out = append(out, make([]byte, sectorSize-len(cur))...)
			cur = nil
		}
		cur = append(cur, rb...)
	}
	out = append(out, cur...)
	if rem := len(out) % sectorSize; rem != 0 {
		out = append(out, make([]byte, sectorSize-rem)...)
	}
	if len(out) == 0 {
		out = make([]byte, sectorSize)
	}
	return out
}

// identifierBytes returns the on-disk bytes for FileIdentifier: UTF-16BE for a
// Joliet record whose identifier isn't one of the single-byte special entries,
// raw d-character bytes otherwise.
func (dr *DirectoryRecord) identifierBytes(joliet bool) []byte {
	if len(dr.FileIdentifier) == 1 && (dr.FileIdentifier[0] == 0x00 || dr.FileIdentifier[0] == 0x01) {
		return []byte(dr.FileIdentifier)
	}
	if !joliet {
		return []byte(dr.FileIdentifier)
	}
	runes := utf16.Encode([]rune(dr.FileIdentifier))
	var buf bytes.Buffer
	for _, r := range runes {
		buf.WriteByte(byte(r >> 8))
		buf.WriteByte(byte(r))
	}
	return buf.Bytes()
}

// Len returns the on-disk length of this record: 33 + len(ident), padded to an
// even total.
func (dr *DirectoryRecord) Len(joliet bool) int {
	n := 33 + len(dr.identifierBytes(joliet))
	if n%2 != 0 {
		n++
	}
	return n
}

// Marshal encodes the record into its on-disk byte form (ECMA-119 9.1). joliet
// selects UTF-16BE identifier encoding; the rest of the layout is identical
// between the plain and Joliet trees.
func (dr *DirectoryRecord) Marshal(joliet bool) []byte {
	identBytes := dr.identifierBytes(joliet)
	recLen := dr.Len(joliet)
	buf := make([]byte, recLen)

	buf[0] = byte(recLen)
	buf[1] = dr.ExtendedAttributeRecord
	encoding.WriteInt32LSBMSB(buf[2:10], int32(dr.LocationOfExtent))
	encoding.WriteInt32LSBMSB(buf[10:18], int32(dr.DataLength))
	if len(dr.RecordingDateAndTime) == 7 {
		copy(buf[18:25], dr.RecordingDateAndTime)
	}
	if dr.FileFlags != nil {
		buf[25] = dr.FileFlags.Byte()
	}
	buf[26] = dr.FileUnitSize
	buf[27] = dr.InterleaveGapSize
	seq := dr.VolumeSequenceNumber
	if seq == 0 {
		seq = 1
	}
	encoding.WriteInt16LSBMSB(buf[28:32], int16(seq))
	buf[32] = byte(len(identBytes))
	copy(buf[33:33+len(identBytes)], identBytes)
	// trailing pad byte (if any) is left zero by make([]byte, recLen)

	return buf
}
