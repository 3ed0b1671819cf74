package iso

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAndReopen writes img to a temp file and reopens it read-only,
// returning the opened facade so callers can inspect the parsed structures
// alongside the pre-write in-memory ones.
func buildAndReopen(t *testing.T, img *ISO9660Image) *ISO9660Image {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.iso")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, img.Write(f))
	require.NoError(t, f.Close())

	opened, err := Open(path)
	require.NoError(t, err)
	isoImg, ok := opened.(*ISO9660Image)
	require.True(t, ok)
	require.NoError(t, isoImg.Parse())

	return isoImg
}

func findEntry(entries []*directory.DirectoryEntry, name string) *directory.DirectoryEntry {
	for _, e := range entries {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

func TestEmptyImage_LayoutMatchesReferenceExtentNumbers(t *testing.T) {
	img, err := New("STUDIO", "EMPTY", "EMPTY")
	require.NoError(t, err)

	opened := buildAndReopen(t, img)
	defer opened.Close()

	pvd := opened.PrimaryVolumeDescriptor
	require.NotNil(t, pvd)

	assert.EqualValues(t, 24, pvd.VolumeSpaceSize)
	assert.EqualValues(t, 10, pvd.PathTableSize())
	assert.EqualValues(t, 19, pvd.LPathTableLocation)
	assert.EqualValues(t, 21, pvd.MPathTableLocation)

	root := opened.RootDirectory()
	require.NotNil(t, root)
	assert.EqualValues(t, 23, root.Record.LocationOfExtent)
	assert.EqualValues(t, 2048, root.Record.DataLength)
}

func TestOneFileImage_ChildRecordAndContentRoundTrip(t *testing.T) {
	img, err := New("STUDIO", "ONEFILE", "ONEFILE")
	require.NoError(t, err)
	require.NoError(t, img.AddFile("foo", strings.NewReader("foo\n")))

	opened := buildAndReopen(t, img)
	defer opened.Close()

	pvd := opened.PrimaryVolumeDescriptor
	require.NotNil(t, pvd)
	assert.EqualValues(t, 25, pvd.VolumeSpaceSize)
	assert.EqualValues(t, 10, pvd.PathTableSize())
	assert.EqualValues(t, 19, pvd.LPathTableLocation)
	assert.EqualValues(t, 21, pvd.MPathTableLocation)

	entries, err := opened.GetAllEntries()
	require.NoError(t, err)

	file := findEntry(entries, "FOO.;1")
	require.NotNil(t, file)

	assert.EqualValues(t, 24, file.Record.LocationOfExtent)
	assert.EqualValues(t, 40, file.Record.Len(false))
	assert.EqualValues(t, 0, file.Record.FileFlags.Byte())

	var out bytes.Buffer
	require.NoError(t, opened.GetAndWrite("/FOO.;1", &out))
	assert.Equal(t, "foo\n", out.String())
}

func TestDirectoryImage_FileFlagsMarkDirectoryBitOnly(t *testing.T) {
	img, err := New("STUDIO", "WITHDIR", "WITHDIR")
	require.NoError(t, err)
	require.NoError(t, img.AddDirectory("DIR1"))
	require.NoError(t, img.AddFile("DIR1/inner", strings.NewReader("x")))

	opened := buildAndReopen(t, img)
	defer opened.Close()

	entries, err := opened.GetAllEntries()
	require.NoError(t, err)

	dir := findEntry(entries, "DIR1")
	require.NotNil(t, dir)
	assert.EqualValues(t, 0x02, dir.Record.FileFlags.Byte())
}

func TestGetAndWrite_UnwrittenImage_ResolvesFromBuildState(t *testing.T) {
	img, err := New("STUDIO", "BUILD", "BUILD")
	require.NoError(t, err)
	require.NoError(t, img.AddFile("foo", strings.NewReader("foo\n")))

	var out bytes.Buffer
	require.NoError(t, img.GetAndWrite("/foo", &out))
	assert.Equal(t, "foo\n", out.String())
}

func TestOneDirectoryImage_PathTableMatchesReferenceExtentNumbers(t *testing.T) {
	img, err := New("STUDIO", "ONEDIR", "ONEDIR")
	require.NoError(t, err)
	require.NoError(t, img.AddDirectory("dir1"))

	var raw bytes.Buffer
	require.NoError(t, img.Write(&raw))
	assert.Equal(t, 51200, raw.Len())

	opened := buildAndReopen(t, img)
	defer opened.Close()

	pvd := opened.PrimaryVolumeDescriptor
	require.NotNil(t, pvd)
	assert.EqualValues(t, 25, pvd.VolumeSpaceSize)
	assert.EqualValues(t, 22, pvd.PathTableSize())
	assert.EqualValues(t, 19, pvd.LPathTableLocation)
	assert.EqualValues(t, 21, pvd.MPathTableLocation)

	pt := *pvd.PathTable()
	require.Len(t, pt, 2)
	assert.EqualValues(t, 1, pt[0].DirectoryIdentifierLength)
	assert.EqualValues(t, 23, pt[0].LocationOfExtent)
	assert.EqualValues(t, 1, pt[0].ParentDirectoryNumber)
	assert.EqualValues(t, 4, pt[1].DirectoryIdentifierLength)
	assert.Equal(t, "DIR1", pt[1].DirectoryIdentifier)
	assert.EqualValues(t, 24, pt[1].LocationOfExtent)
	assert.EqualValues(t, 1, pt[1].ParentDirectoryNumber)

	entries, err := opened.GetAllEntries()
	require.NoError(t, err)
	dir := findEntry(entries, "DIR1")
	require.NotNil(t, dir)
	assert.EqualValues(t, 38, dir.Record.Len(false))
	assert.EqualValues(t, 0x02, dir.Record.FileFlags.Byte())
}

func TestTwoLevelDeepFile_LayoutAndReadBack(t *testing.T) {
	img, err := New("STUDIO", "DEEP", "DEEP")
	require.NoError(t, err)
	require.NoError(t, img.AddDirectory("dir1"))
	require.NoError(t, img.AddDirectory("dir1/subdir1"))
	require.NoError(t, img.AddFile("dir1/subdir1/foo", strings.NewReader("foo\n")))

	var raw bytes.Buffer
	require.NoError(t, img.Write(&raw))
	assert.Equal(t, 55296, raw.Len())

	opened := buildAndReopen(t, img)
	defer opened.Close()

	pvd := opened.PrimaryVolumeDescriptor
	require.NotNil(t, pvd)
	assert.EqualValues(t, 27, pvd.VolumeSpaceSize)
	assert.EqualValues(t, 38, pvd.PathTableSize())
	assert.EqualValues(t, 19, pvd.LPathTableLocation)
	assert.EqualValues(t, 21, pvd.MPathTableLocation)

	pt := *pvd.PathTable()
	require.Len(t, pt, 3)
	assert.EqualValues(t, 23, pt[0].LocationOfExtent)
	assert.EqualValues(t, 24, pt[1].LocationOfExtent)
	assert.EqualValues(t, 25, pt[2].LocationOfExtent)
	assert.EqualValues(t, 1, pt[0].ParentDirectoryNumber)
	assert.EqualValues(t, 1, pt[1].ParentDirectoryNumber)
	assert.EqualValues(t, 2, pt[2].ParentDirectoryNumber)

	entries, err := opened.GetAllEntries()
	require.NoError(t, err)
	file := findEntry(entries, "FOO.;1")
	require.NotNil(t, file)
	assert.EqualValues(t, 26, file.Record.LocationOfExtent)

	var out bytes.Buffer
	require.NoError(t, opened.GetAndWrite("/DIR1/SUBDIR1/FOO.;1", &out))
	assert.Equal(t, "foo\n", out.String())
}

func TestElTorito_BootRecordAndCatalogMatchReferenceBytes(t *testing.T) {
	img, err := New("STUDIO", "BOOT", "BOOT")
	require.NoError(t, err)
	require.NoError(t, img.AddFile("boot", strings.NewReader("boot\n")))
	require.NoError(t, img.AddElTorito("/BOOT.;1", "/BOOT.CAT;1"))

	var raw bytes.Buffer
	require.NoError(t, img.Write(&raw))
	require.Equal(t, 55296, raw.Len())
	data := raw.Bytes()

	// Boot record descriptor at block 17: type 0, "CD001", the space-padded
	// El Torito system identifier, 32 zero bytes, then the catalog extent.
	br := data[17*2048 : 18*2048]
	assert.Equal(t, byte(0), br[0])
	assert.Equal(t, "CD001", string(br[1:6]))
	assert.Equal(t, "EL TORITO SPECIFICATION", strings.TrimRight(string(br[7:39]), " "))
	assert.Equal(t, make([]byte, 32), br[39:71])
	assert.EqualValues(t, 25, binary.LittleEndian.Uint32(br[71:75]))

	// Validation entry: header 1, x86 platform, checksum 0x55AA, key bytes.
	catalog := data[25*2048 : 26*2048]
	assert.Equal(t, byte(0x01), catalog[0])
	assert.Equal(t, byte(0x00), catalog[1])
	assert.EqualValues(t, 0x55AA, binary.LittleEndian.Uint16(catalog[28:30]))
	assert.Equal(t, byte(0x55), catalog[30])
	assert.Equal(t, byte(0xAA), catalog[31])
	assert.True(t, eltorito.ValidateChecksum(catalog[0:32]))

	// Initial entry: bootable, no emulation, default segment, four virtual
	// sectors covering the boot image's single block at extent 26.
	assert.Equal(t, byte(0x88), catalog[32])
	assert.Equal(t, byte(0x00), catalog[33])
	assert.EqualValues(t, 0x07C0, binary.LittleEndian.Uint16(catalog[34:36]))
	assert.EqualValues(t, 4, binary.LittleEndian.Uint16(catalog[38:40]))
	assert.EqualValues(t, 26, binary.LittleEndian.Uint32(catalog[40:44]))

	assert.Equal(t, "boot\n", string(data[26*2048:26*2048+5]))

	opened := buildAndReopen(t, img)
	defer opened.Close()

	assert.True(t, opened.HasElTorito())
	pvd := opened.PrimaryVolumeDescriptor
	require.NotNil(t, pvd)
	assert.EqualValues(t, 27, pvd.VolumeSpaceSize)
	assert.EqualValues(t, 10, pvd.PathTableSize())
	assert.EqualValues(t, 20, pvd.LPathTableLocation)
	assert.EqualValues(t, 22, pvd.MPathTableLocation)

	entries, err := opened.GetAllEntries()
	require.NoError(t, err)
	bootFile := findEntry(entries, "BOOT.;1")
	require.NotNil(t, bootFile)
	assert.EqualValues(t, 40, bootFile.Record.Len(false))
	bootCat := findEntry(entries, "BOOT.CAT;1")
	require.NotNil(t, bootCat)
	assert.EqualValues(t, 44, bootCat.Record.Len(false))
}

func TestAddElTorito_MissingBootImage_ReturnsNotFound(t *testing.T) {
	img, err := New("STUDIO", "BOOT", "BOOT")
	require.NoError(t, err)
	err = img.AddElTorito("/NOPE.;1", "/BOOT.CAT;1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJolietImage_SupplementaryTreeKeepsMixedCaseNames(t *testing.T) {
	img, err := New("STUDIO", "JOLIET", "JOLIET", options.WithJolietLevel(3))
	require.NoError(t, err)
	require.NoError(t, img.AddDirectory("Docs"))
	require.NoError(t, img.AddFile("Docs/Readme.txt", strings.NewReader("hello\n")))

	path := filepath.Join(t.TempDir(), "joliet.iso")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, img.Write(f))
	require.NoError(t, f.Close())

	opened, err := Open(path, options.WithPreferEnhancedVD(true))
	require.NoError(t, err)
	isoImg := opened.(*ISO9660Image)
	defer isoImg.Close()
	require.NoError(t, isoImg.Parse())

	require.Len(t, isoImg.SupplementaryVolumeDescriptors, 1)
	assert.True(t, isoImg.SupplementaryVolumeDescriptors[0].IsJoliet())

	entries, err := isoImg.GetAllEntries()
	require.NoError(t, err)
	file := findEntry(entries, "Readme.txt")
	require.NotNil(t, file)

	var out bytes.Buffer
	require.NoError(t, isoImg.GetAndWrite("/Docs/Readme.txt", &out))
	assert.Equal(t, "hello\n", out.String())

	// The primary tree mangles the same content down to 8.3 uppercase and
	// both trees point at one shared extent.
	plain, err := Open(path)
	require.NoError(t, err)
	plainImg := plain.(*ISO9660Image)
	defer plainImg.Close()
	require.NoError(t, plainImg.Parse())
	plainEntries, err := plainImg.GetAllEntries()
	require.NoError(t, err)
	mangled := findEntry(plainEntries, "README.TXT;1")
	require.NotNil(t, mangled)
	assert.Equal(t, file.Record.LocationOfExtent, mangled.Record.LocationOfExtent)
}

func TestWrite_IsByteStable(t *testing.T) {
	img, err := New("STUDIO", "STABLE", "STABLE")
	require.NoError(t, err)
	require.NoError(t, img.AddDirectory("dir1"))
	require.NoError(t, img.AddFile("dir1/foo", strings.NewReader("foo\n")))

	var first, second bytes.Buffer
	require.NoError(t, img.Write(&first))
	require.NoError(t, img.Write(&second))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestGetAndWrite_MissingPath_ReturnsNotFound(t *testing.T) {
	img, err := New("STUDIO", "BUILD", "BUILD")
	require.NoError(t, err)

	var out bytes.Buffer
	err = img.GetAndWrite("/nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}
