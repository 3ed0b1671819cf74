package writer

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/descriptor"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/isoerr"
	"github.com/bgrewell/iso9660-studio/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_EmptyImage_OutputLengthMatchesSpaceSize(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true

	result, err := layout.Run(layout.Params{PVDRoot: root})
	require.NoError(t, err)

	pvd := descriptor.NewPrimaryVolumeDescriptor("SYS", "VOL", "SET")
	pvd.SetRootRecord(root)
	pvd.SetSpaceSize(result.SpaceSize)
	pvd.SetPathTableSize(result.PVDPathTableSize)
	pvd.SetPathTableLocations(result.PVDPathTableLE, result.PVDPathTableBE)

	var out bytes.Buffer
	err = Write(&out, Params{
		PVD:        pvd,
		Terminator: descriptor.NewVolumeDescriptorTerminator(),
		Layout:     result,
		PVDRoot:    root,
	})
	require.NoError(t, err)

	assert.Equal(t, int(result.SpaceSize)*consts.ISO9660_SECTOR_SIZE, out.Len())
}

func TestWrite_FileContent_LandsAtAssignedExtent(t *testing.T) {
	root := directory.NewDirectory("\x00")
	root.IsRoot = true
	file := directory.NewFile("FOO.;1", directory.ContentID(0), 4)
	require.NoError(t, root.AddChild(file))

	result, err := layout.Run(layout.Params{
		PVDRoot:       root,
		ContentOrder:  []directory.ContentID{0},
		ContentLength: map[directory.ContentID]int64{0: 4},
	})
	require.NoError(t, err)
	file.LocationOfExtent = result.ContentExtent[0]

	pvd := descriptor.NewPrimaryVolumeDescriptor("SYS", "VOL", "SET")
	pvd.SetRootRecord(root)
	pvd.SetSpaceSize(result.SpaceSize)
	pvd.SetPathTableSize(result.PVDPathTableSize)
	pvd.SetPathTableLocations(result.PVDPathTableLE, result.PVDPathTableBE)

	var out bytes.Buffer
	err = Write(&out, Params{
		PVD:          pvd,
		Terminator:   descriptor.NewVolumeDescriptorTerminator(),
		Layout:       result,
		PVDRoot:      root,
		ContentOrder: []directory.ContentID{0},
		Content:      map[directory.ContentID]io.Reader{0: bytes.NewReader([]byte("foo\n"))},
	})
	require.NoError(t, err)

	start := int(result.ContentExtent[0]) * consts.ISO9660_SECTOR_SIZE
	assert.Equal(t, "foo\n", string(out.Bytes()[start:start+4]))
}

func TestSectorWriter_PadsGapsWithZeros(t *testing.T) {
	var out bytes.Buffer
	sw := &sectorWriter{w: &out}

	require.NoError(t, sw.writeAt(2, []byte("hi")))
	assert.Equal(t, 3*consts.ISO9660_SECTOR_SIZE, out.Len())
	assert.Equal(t, byte(0), out.Bytes()[0])
	assert.Equal(t, "hi", string(out.Bytes()[2*consts.ISO9660_SECTOR_SIZE:2*consts.ISO9660_SECTOR_SIZE+2]))
}

func TestSectorWriter_RejectsWritingBehindCursor(t *testing.T) {
	var out bytes.Buffer
	sw := &sectorWriter{w: &out}
	require.NoError(t, sw.writeAt(1, []byte("a")))
	assert.Error(t, sw.writeAt(0, []byte("b")))
}

type brokenSink struct{}

func (brokenSink) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSectorWriter_FailedSinkReportsSinkClosed(t *testing.T) {
	sw := &sectorWriter{w: brokenSink{}}
	err := sw.writeAt(0, []byte("x"))
	assert.ErrorIs(t, err, isoerr.ErrSinkClosed)
}
