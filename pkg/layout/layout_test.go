package layout

import (
	"fmt"
	"testing"

	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyRoot() *directory.DirectoryRecord {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true
	return root
}

func TestRun_EmptyImage_PathTableStartsAtBlock19(t *testing.T) {
	result, err := Run(Params{PVDRoot: emptyRoot()})
	require.NoError(t, err)

	// Descriptor chain: PVD(16) + VDST(17) ends at 17; one pad block (18) ->
	// path table at 19.
	assert.EqualValues(t, 19, result.PVDPathTableLE)
	assert.Equal(t, 2, roundUpEven(ceilBlocks(int(result.PVDPathTableSize))))
	assert.EqualValues(t, 21, result.PVDPathTableBE)
}

func TestRun_ManyDirectories_PathTableReservationCrossesFourBlocks(t *testing.T) {
	// Each 1-2 char d-character directory name below records as a 10-byte
	// path table entry; 410 of them overflow the 2-block (4096-byte)
	// reservation, so it jumps to 4 and the M-copy relocates accordingly.
	root := emptyRoot()
	for i := 0; i < 410; i++ {
		name, err := uniqueName(i)
		require.NoError(t, err)
		require.NoError(t, root.AddChild(directory.NewDirectory(name)))
	}

	result, err := Run(Params{PVDRoot: root})
	require.NoError(t, err)

	reservedBlocks := roundUpEven(ceilBlocks(int(result.PVDPathTableSize)))
	assert.GreaterOrEqual(t, reservedBlocks, 4)
	assert.Equal(t, result.PVDPathTableLE+uint32(reservedBlocks), result.PVDPathTableBE)
}

func TestRun_FewDirectories_PathTableReservationStaysAtTwoBlocks(t *testing.T) {
	root := emptyRoot()
	for i := 0; i < 400; i++ {
		name, err := uniqueName(i)
		require.NoError(t, err)
		require.NoError(t, root.AddChild(directory.NewDirectory(name)))
	}

	result, err := Run(Params{PVDRoot: root})
	require.NoError(t, err)

	assert.Equal(t, 2, roundUpEven(ceilBlocks(int(result.PVDPathTableSize))))
	assert.Equal(t, result.PVDPathTableLE+2, result.PVDPathTableBE)
}

func TestRun_295Directories_MatchesReferenceSizes(t *testing.T) {
	// DIR1..DIR295 at the root: the L-path-table's 4122 bytes span three
	// blocks, so its reservation grows to four and the M-copy relocates to
	// block 23. The root's own record list crosses into a sixth block.
	root := emptyRoot()
	for i := 1; i <= 295; i++ {
		require.NoError(t, root.AddChild(directory.NewDirectory(fmt.Sprintf("DIR%d", i))))
	}

	result, err := Run(Params{PVDRoot: root})
	require.NoError(t, err)

	assert.EqualValues(t, 4122, result.PVDPathTableSize)
	assert.EqualValues(t, 19, result.PVDPathTableLE)
	assert.EqualValues(t, 23, result.PVDPathTableBE)
	assert.EqualValues(t, 27, root.LocationOfExtent)
	assert.EqualValues(t, 12288, root.DataLength)
	assert.EqualValues(t, 328, result.SpaceSize)
	assert.Len(t, result.PVDPathTable, 296)
	assert.Len(t, root.Children, 295)
}

func TestRun_FileExtentsAssignedInDeclarationOrder(t *testing.T) {
	root := emptyRoot()
	second := directory.NewFile("B;1", directory.ContentID(1), 10)
	first := directory.NewFile("A;1", directory.ContentID(0), 10)
	require.NoError(t, root.AddChild(second))
	require.NoError(t, root.AddChild(first))

	result, err := Run(Params{
		PVDRoot:      root,
		ContentOrder: []directory.ContentID{1, 0},
		ContentLength: map[directory.ContentID]int64{
			0: 10,
			1: 10,
		},
	})
	require.NoError(t, err)

	// Declared order was [1, 0]; content id 1 must get the lower extent.
	assert.Less(t, result.ContentExtent[1], result.ContentExtent[0])
}

func TestRun_TwoExtentFile_SpansTwoBlocks(t *testing.T) {
	root := emptyRoot()
	file := directory.NewFile("BIG.DAT;1", directory.ContentID(0), 2048+1)
	require.NoError(t, root.AddChild(file))

	result, err := Run(Params{
		PVDRoot:       root,
		ContentOrder:  []directory.ContentID{0},
		ContentLength: map[directory.ContentID]int64{0: 2049},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(result.ContentExtent[0])+2, result.SpaceSize)
}

func TestRoundUpEven(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{3, 4},
		{4, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, roundUpEven(c.in))
	}
}

// uniqueName produces a valid, distinct 1-8 character d-character directory
// name for index i, used to generate the large trees above.
func uniqueName(i int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if i < len(alphabet) {
		return string(alphabet[i]), nil
	}
	hi := i / len(alphabet)
	lo := i % len(alphabet)
	return string(alphabet[hi%len(alphabet)]) + string(alphabet[lo]), nil
}
