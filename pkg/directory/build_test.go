package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFile_FileFlagsByteIsZero(t *testing.T) {
	f := NewFile("FOO.;1", ContentID(0), 4)
	assert.Equal(t, byte(0), f.FileFlags.Byte())
	assert.False(t, f.IsDirectory())
}

func TestNewDirectory_FileFlagsCarryOnlyDirectoryBit(t *testing.T) {
	d := NewDirectory("DIR1")
	assert.Equal(t, byte(0x02), d.FileFlags.Byte())
	assert.True(t, d.IsDirectory())
}

func TestAddChild_SortsSiblingsByIdentifier(t *testing.T) {
	root := NewDirectory("\x00")
	root.IsRoot = true
	require.NoError(t, root.AddChild(NewFile("B.TXT;1", ContentID(1), 1)))
	require.NoError(t, root.AddChild(NewFile("A.TXT;1", ContentID(0), 1)))

	require.Len(t, root.Children, 2)
	assert.Equal(t, "A.TXT;1", root.Children[0].FileIdentifier)
	assert.Equal(t, "B.TXT;1", root.Children[1].FileIdentifier)
}

func TestAddChild_RejectsNonDirectoryParent(t *testing.T) {
	file := NewFile("FOO.;1", ContentID(0), 4)
	err := file.AddChild(NewFile("BAR.;1", ContentID(1), 4))
	assert.Error(t, err)
}

func TestAddChild_InvalidatesParentExtentAssignment(t *testing.T) {
	root := NewDirectory("\x00")
	root.LocationOfExtent = 23
	root.DataLength = 2048
	require.NoError(t, root.AddChild(NewFile("FOO.;1", ContentID(0), 4)))

	assert.Zero(t, root.LocationOfExtent)
	assert.Zero(t, root.DataLength)
}

func TestDotEntries_RootPointsToItself(t *testing.T) {
	root := NewDirectory("\x00")
	root.IsRoot = true
	root.LocationOfExtent = 23
	root.DataLength = 2048

	dot, dotdot := root.DotEntries()
	assert.Equal(t, "\x00", dot.FileIdentifier)
	assert.Equal(t, "\x01", dotdot.FileIdentifier)
	assert.Equal(t, root.LocationOfExtent, dot.LocationOfExtent)
	assert.Equal(t, root.LocationOfExtent, dotdot.LocationOfExtent)
}

func TestDotEntries_ChildPointsAtParent(t *testing.T) {
	root := NewDirectory("\x00")
	root.IsRoot = true
	root.LocationOfExtent = 23
	child := NewDirectory("DIR1")
	require.NoError(t, root.AddChild(child))
	child.LocationOfExtent = 24

	_, dotdot := child.DotEntries()
	assert.Equal(t, root.LocationOfExtent, dotdot.LocationOfExtent)
}

func TestPackDirectoryExtent_EmptyDirectoryIsOneBlockOfDotEntries(t *testing.T) {
	root := NewDirectory("\x00")
	root.IsRoot = true

	data := PackDirectoryExtent(root, false)
	assert.Len(t, data, sectorSize)
}

func TestPackDirectoryExtent_RecordNeverCrossesBlockBoundary(t *testing.T) {
	root := NewDirectory("\x00")
	root.IsRoot = true
	for i := 0; i < 120; i++ {
		name, err := uniqueDChars(i)
		require.NoError(t, err)
		require.NoError(t, root.AddChild(NewFile(name, ContentID(i), 1)))
	}

	data := PackDirectoryExtent(root, false)
	assert.Zero(t, len(data)%sectorSize)

	for offset := 0; offset < len(data); {
		recLen := int(data[offset])
		if recLen == 0 {
			// padding to the next block boundary
			next := ((offset / sectorSize) + 1) * sectorSize
			offset = next
			continue
		}
		require.LessOrEqual(t, offset%sectorSize+recLen, sectorSize)
		offset += recLen
	}
}

func TestLen_PadsOddLengthIdentifierToEven(t *testing.T) {
	f := NewFile("A.;1", ContentID(0), 1) // 4-byte identifier -> 37, padded to 38
	assert.Equal(t, 38, f.Len(false))
	assert.Zero(t, f.Len(false)%2)
}

func uniqueDChars(i int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	hi := i / len(alphabet)
	lo := i % len(alphabet)
	return string(alphabet[hi%len(alphabet)]) + string(alphabet[lo]) + ";1", nil
}
