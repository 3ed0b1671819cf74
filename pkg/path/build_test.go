package path

import (
	"testing"

	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPathTable_RootUsesSelfParentConvention(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true

	table := BuildPathTable(root)
	require.Len(t, table, 1)
	assert.Equal(t, uint16(1), table[0].ParentDirectoryNumber)
	assert.Equal(t, "\x00", table[0].DirectoryIdentifier)
}

func TestBuildPathTable_OrdersEntriesBreadthFirstByDepth(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true
	dir1 := directory.NewDirectory("DIR1")
	dir2 := directory.NewDirectory("DIR2")
	require.NoError(t, root.AddChild(dir1))
	require.NoError(t, root.AddChild(dir2))
	sub := directory.NewDirectory("SUBDIR1")
	require.NoError(t, dir1.AddChild(sub))

	table := BuildPathTable(root)
	require.Len(t, table, 4)
	assert.Equal(t, "\x00", table[0].DirectoryIdentifier)
	assert.Equal(t, "DIR1", table[1].DirectoryIdentifier)
	assert.Equal(t, "DIR2", table[2].DirectoryIdentifier)
	assert.Equal(t, "SUBDIR1", table[3].DirectoryIdentifier)
	// SUBDIR1's parent is DIR1, the second entry in the table (1-indexed).
	assert.EqualValues(t, 2, table[3].ParentDirectoryNumber)
}

func TestBuildPathTable_SkipsFileChildren(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true
	require.NoError(t, root.AddChild(directory.NewFile("FOO.;1", directory.ContentID(0), 4)))

	table := BuildPathTable(root)
	assert.Len(t, table, 1)
}

func TestPathTableRecord_Len_PadsOddIdentifierLength(t *testing.T) {
	ptr := &PathTableRecord{DirectoryIdentifier: "DIR1"} // 4 bytes -> 8+4=12, already even
	assert.Equal(t, 12, ptr.Len(false))

	ptr2 := &PathTableRecord{DirectoryIdentifier: "SUB"} // 3 bytes -> 8+3=11, padded to 12
	assert.Equal(t, 12, ptr2.Len(false))
}

func TestPathTableRecord_Marshal_LEAndBEAreByteForByteTranscriptions(t *testing.T) {
	ptr := &PathTableRecord{
		DirectoryIdentifier:   "DIR1",
		LocationOfExtent:      24,
		ParentDirectoryNumber: 1,
	}

	le := ptr.Marshal(false, false)
	be := ptr.Marshal(true, false)

	require.Len(t, le, len(be))
	assert.Equal(t, le[0], be[0])             // identifier length byte matches
	assert.Equal(t, le[8:], be[8:])           // identifier bytes match
	assert.NotEqual(t, le[2:6], be[2:6])       // extent byte order differs
	assert.Equal(t, uint32(24), readLE32(le[2:6]))
	assert.Equal(t, uint32(24), readBE32(be[2:6]))
}

func TestMarshalPathTable_ConcatenatesEveryRecord(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true
	dir1 := directory.NewDirectory("DIR1")
	require.NoError(t, root.AddChild(dir1))

	table := BuildPathTable(root)
	out := MarshalPathTable(table, false, false)

	var want int
	for _, r := range table {
		want += r.Len(false)
	}
	assert.Len(t, out, want)
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readBE32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}
