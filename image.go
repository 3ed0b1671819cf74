package iso

import (
	"bytes"
	"fmt"
	"io"
	gopath "path"
	"strings"
	"time"

	"github.com/bgrewell/iso9660-studio/pkg/descriptor"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/encoding"
	"github.com/bgrewell/iso9660-studio/pkg/layout"
	"github.com/bgrewell/iso9660-studio/pkg/mangle"
	"github.com/bgrewell/iso9660-studio/pkg/options"
	"github.com/bgrewell/iso9660-studio/pkg/writer"
	"github.com/go-logr/logr"
)

// contentSource produces a fresh io.Reader over one file's bytes; Write may
// need to re-open it if the image is written more than once.
type contentSource interface {
	Open() (io.Reader, error)
	Size() int64
}

type bytesContentSource struct{ data []byte }

func (s bytesContentSource) Open() (io.Reader, error) { return bytes.NewReader(s.data), nil }
func (s bytesContentSource) Size() int64               { return int64(len(s.data)) }

// buildState holds everything accumulated between New and Write: the tree(s)
// being built, the declaration-ordered content table, and any El Torito
// boot catalog configuration.
type buildState struct {
	sysIdent, volIdent, setIdent string
	jolietLevel                  int
	interchangeLevel             mangle.InterchangeLevel

	pvdRoot *directory.DirectoryRecord
	svdRoot *directory.DirectoryRecord // nil unless jolietLevel > 0

	// dirIndex/svdDirIndex map a "/"-joined image path to its directory
	// record, memoizing AddFile/AddDirectory's ancestor creation.
	dirIndex    map[string]*directory.DirectoryRecord
	svdDirIndex map[string]*directory.DirectoryRecord

	nextContentID directory.ContentID
	contentOrder  []directory.ContentID
	contentLength map[directory.ContentID]int64
	contentSource map[directory.ContentID]contentSource

	hasElTorito       bool
	bootCatalogOpts   eltorito.BootCatalogOptions
	bootImageContentID directory.ContentID

	createdAt time.Time
}

// New creates a new, empty ISO 9660 image ready for AddFile/AddDirectory/
// AddElTorito calls, putting the facade in the Initialized state.
func New(sysIdent, volIdent, setIdent string, opts ...options.Option) (*ISO9660Image, error) {
	o := options.Options{
		Logger:           logr.Discard(),
		InterchangeLevel: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	level := mangle.InterchangeLevel1
	if o.InterchangeLevel == 2 {
		level = mangle.InterchangeLevel2
	}

	b := &buildState{
		sysIdent:         sysIdent,
		volIdent:         volIdent,
		setIdent:         setIdent,
		jolietLevel:      o.JolietLevel,
		interchangeLevel: level,
		contentLength:    map[directory.ContentID]int64{},
		contentSource:    map[directory.ContentID]contentSource{},
		createdAt:        time.Now(),
	}

	pvdRoot := directory.NewDirectory("\x00")
	pvdRoot.IsRoot = true
	b.stamp(pvdRoot)
	b.pvdRoot = pvdRoot
	b.dirIndex = map[string]*directory.DirectoryRecord{"": pvdRoot}

	if o.JolietLevel > 0 {
		svdRoot := directory.NewDirectory("\x00")
		svdRoot.IsRoot = true
		b.stamp(svdRoot)
		b.svdRoot = svdRoot
		b.svdDirIndex = map[string]*directory.DirectoryRecord{"": svdRoot}
	}

	return &ISO9660Image{
		options: o,
		logger:  o.Logger,
		state:   stateInitialized,
		build:   b,
	}, nil
}

// stamp records the image's creation time on dr's 7-byte directory-record
// timestamp (ECMA-119 9.1.5); a malformed time (out of the format's year
// range) just leaves the field zero rather than failing the whole add.
func (b *buildState) stamp(dr *directory.DirectoryRecord) {
	if t, err := encoding.EncodeDirectoryTime(b.createdAt); err == nil {
		dr.RecordingDateAndTime = t
	}
}

// ensureDir walks imagePath's ancestor directories (creating any that don't
// exist yet in both trees) and returns the immediate parent directory
// records to add a child under.
func (b *buildState) ensureDir(dir string) (pvdParent, svdParent *directory.DirectoryRecord, err error) {
	dir = strings.Trim(gopath.Clean("/"+dir), "/")
	if dir == "." {
		dir = ""
	}

	if existing, ok := b.dirIndex[dir]; ok {
		pvdParent = existing
		if b.svdRoot != nil {
			svdParent = b.svdDirIndex[dir]
		}
		return pvdParent, svdParent, nil
	}

	parentPath := ""
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		parentPath = dir[:idx]
	}
	name := dir
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		name = dir[idx+1:]
	}

	parentPVD, parentSVD, err := b.ensureDir(parentPath)
	if err != nil {
		return nil, nil, err
	}

	mangled, err := mangle.MangleDirectory(name, b.interchangeLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, dir, err)
	}
	child := directory.NewDirectory(mangled)
	b.stamp(child)
	if err := parentPVD.AddChild(child); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotADirectory, err)
	}
	b.dirIndex[dir] = child

	if b.svdRoot != nil {
		svdChild := directory.NewDirectory(jolietName(name))
		b.stamp(svdChild)
		if err := parentSVD.AddChild(svdChild); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotADirectory, err)
		}
		b.svdDirIndex[dir] = svdChild
		svdParent = svdChild
	}

	return child, svdParent, nil
}

// jolietName sanitizes name for the relaxed Joliet character set: replace
// the handful of characters the Joliet profile still disallows (control
// characters and * / : ; ? \) with '_', leaving case and length otherwise
// untouched. No length cap is applied to Joliet names at any level; the
// Joliet level only selects the SVD's UCS-2 escape sequence.
func jolietName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r <= 0x1F, r == '*', r == '/', r == ':', r == ';', r == '?', r == '\\':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitPath separates an image path into its directory and base name.
func splitPath(imagePath string) (dir, name string) {
	cleaned := strings.Trim(gopath.Clean("/"+imagePath), "/")
	if idx := strings.LastIndex(cleaned, "/"); idx >= 0 {
		return cleaned[:idx], cleaned[idx+1:]
	}
	return "", cleaned
}

// AddFile reads r fully and adds it to the image at imagePath (a "/"-
// separated path whose ancestor directories are created as needed). The
// image's Joliet tree, if enabled, gets a parallel entry sharing the same
// file content.
func (i *ISO9660Image) AddFile(imagePath string, r io.Reader) error {
	if i.state != stateInitialized {
		return fmt.Errorf("%w: AddFile requires an image created with New", ErrNotOpen)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %s", ErrSourceIO, imagePath, err)
	}

	dir, name := splitPath(imagePath)
	if name == "" {
		return fmt.Errorf("%w: empty file name in %q", ErrInvalidArgument, imagePath)
	}

	pvdParent, svdParent, err := i.build.ensureDir(dir)
	if err != nil {
		return err
	}

	mangled, err := mangle.MangleFile(name, i.build.interchangeLevel)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, imagePath, err)
	}

	id := i.build.nextContentID
	i.build.nextContentID++
	i.build.contentOrder = append(i.build.contentOrder, id)
	i.build.contentLength[id] = int64(len(data))
	i.build.contentSource[id] = bytesContentSource{data: data}

	fileRecord := directory.NewFile(mangled, id, uint32(len(data)))
	i.build.stamp(fileRecord)
	if err := pvdParent.AddChild(fileRecord); err != nil {
		return fmt.Errorf("%w: %s", ErrNotADirectory, err)
	}

	if i.build.svdRoot != nil {
		svdFile := directory.NewFile(jolietName(name), id, uint32(len(data)))
		i.build.stamp(svdFile)
		if err := svdParent.AddChild(svdFile); err != nil {
			return fmt.Errorf("%w: %s", ErrNotADirectory, err)
		}
	}

	return nil
}

// AddDirectory ensures imagePath exists as a directory, even if it never
// receives a file directly (an AddFile under a path creates its ancestors
// automatically; AddDirectory is for directories that stay empty).
func (i *ISO9660Image) AddDirectory(imagePath string) error {
	if i.state != stateInitialized {
		return fmt.Errorf("%w: AddDirectory requires an image created with New", ErrNotOpen)
	}
	dir := strings.Trim(gopath.Clean("/"+imagePath), "/")
	_, _, err := i.build.ensureDir(dir)
	return err
}

// ElToritoOption adjusts the boot catalog AddElTorito builds. The defaults
// describe the common case: a bootable, no-emulation x86 image loaded at
// segment 0x07C0.
type ElToritoOption func(*eltorito.BootCatalogOptions)

// WithBootPlatform selects the validation entry's platform ID.
func WithBootPlatform(platform eltorito.Platform) ElToritoOption {
	return func(o *eltorito.BootCatalogOptions) { o.Platform = platform }
}

// WithBootMediaType selects the initial entry's emulation media type
// (0=no-emul, 1=1.2MB, 2=1.44MB, 3=2.88MB, 4=hard-disk).
func WithBootMediaType(mediaType byte) ElToritoOption {
	return func(o *eltorito.BootCatalogOptions) { o.MediaType = mediaType }
}

// WithBootLoadSegment overrides the initial entry's load segment.
func WithBootLoadSegment(segment uint16) ElToritoOption {
	return func(o *eltorito.BootCatalogOptions) { o.LoadSegment = segment }
}

// WithBootSystemType sets the initial entry's system (partition) type byte,
// needed for hard-disk emulation boots.
func WithBootSystemType(systemType byte) ElToritoOption {
	return func(o *eltorito.BootCatalogOptions) { o.SystemType = systemType }
}

// AddElTorito marks the already-added file at bootIsoPath as an El Torito
// boot image and places the generated boot catalog at bootCatIsoPath. The
// catalog's sector count is the number of 512-byte virtual sectors covering
// the boot image's whole extents; its load RBA is filled in by Write once
// the layout engine has assigned the boot image its extent.
func (i *ISO9660Image) AddElTorito(bootIsoPath, bootCatIsoPath string, opts ...ElToritoOption) error {
	if i.state != stateInitialized {
		return fmt.Errorf("%w: AddElTorito requires an image created with New", ErrNotOpen)
	}
	if i.build.hasElTorito {
		return fmt.Errorf("%w: image already has an El Torito boot catalog", ErrAlreadyExists)
	}

	bootRecord, err := i.build.resolve(bootIsoPath)
	if err != nil {
		return err
	}
	if bootRecord.IsDirectory() {
		return fmt.Errorf("%w: %s", ErrNotAFile, bootIsoPath)
	}
	length, ok := i.build.contentLength[bootRecord.ContentID]
	if !ok {
		return fmt.Errorf("%w: %s has no content", ErrNotFound, bootIsoPath)
	}

	catDir, catName := splitPath(bootCatIsoPath)
	if catName == "" {
		return fmt.Errorf("%w: empty boot catalog name in %q", ErrInvalidArgument, bootCatIsoPath)
	}
	pvdParent, svdParent, err := i.build.ensureDir(catDir)
	if err != nil {
		return err
	}
	ident := catName
	if !strings.Contains(ident, ";") {
		if ident, err = mangle.MangleFile(catName, i.build.interchangeLevel); err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, bootCatIsoPath, err)
		}
	}
	if _, exists := pvdParent.Child(ident); exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, bootCatIsoPath)
	}

	catalogRecord := directory.NewFile(ident, directory.NoContent, 2048)
	catalogRecord.IsBootCatalog = true
	i.build.stamp(catalogRecord)
	if err := pvdParent.AddChild(catalogRecord); err != nil {
		return fmt.Errorf("%w: %s", ErrNotADirectory, err)
	}
	if svdParent != nil {
		svdCatalog := directory.NewFile(jolietName(catName), directory.NoContent, 2048)
		svdCatalog.IsBootCatalog = true
		i.build.stamp(svdCatalog)
		if err := svdParent.AddChild(svdCatalog); err != nil {
			return fmt.Errorf("%w: %s", ErrNotADirectory, err)
		}
	}

	catalog := eltorito.BootCatalogOptions{Bootable: true}
	for _, opt := range opts {
		opt(&catalog)
	}
	catalog.SectorCount = uint16((length + 2047) / 2048 * 4)

	i.build.bootCatalogOpts = catalog
	i.build.bootImageContentID = bootRecord.ContentID
	i.build.hasElTorito = true
	return nil
}

// Write lays out and serializes the built image to w. It may be called more
// than once; each call re-runs the layout engine from the accumulated tree.
func (i *ISO9660Image) Write(w io.Writer) error {
	if i.state != stateInitialized {
		return fmt.Errorf("%w: Write requires an image created with New", ErrNotOpen)
	}
	b := i.build

	pvd := descriptor.NewPrimaryVolumeDescriptor(b.sysIdent, b.volIdent, b.setIdent)
	pvd.SetRootRecord(b.pvdRoot)
	pvd.SetTimes(b.createdAt, b.createdAt, time.Time{}, b.createdAt)

	var svd *descriptor.SupplementaryVolumeDescriptor
	if b.svdRoot != nil {
		svd = descriptor.NewSupplementaryVolumeDescriptor(b.sysIdent, b.volIdent, b.setIdent, b.jolietLevel)
		svd.SetRootRecord(b.svdRoot)
		svd.SetTimes(b.createdAt, b.createdAt, time.Time{}, b.createdAt)
	}

	var boot *descriptor.BootRecordVolumeDescriptor
	if b.hasElTorito {
		boot = descriptor.NewBootRecordVolumeDescriptor(0)
	}

	terminator := descriptor.NewVolumeDescriptorTerminator()

	result, err := layout.Run(layout.Params{
		PVDRoot:       b.pvdRoot,
		SVDRoot:       b.svdRoot,
		ContentOrder:  b.contentOrder,
		ContentLength: b.contentLength,
		ElTorito:      b.hasElTorito,
		Logger:        i.logger,
	})
	if err != nil {
		return fmt.Errorf("iso9660: laying out image: %w", err)
	}

	pvd.SetSpaceSize(result.SpaceSize)
	pvd.SetPathTableSize(result.PVDPathTableSize)
	pvd.SetPathTableLocations(result.PVDPathTableLE, result.PVDPathTableBE)

	if svd != nil {
		svd.SetSpaceSize(result.SpaceSize)
		svd.SetPathTableSize(result.SVDPathTableSize)
		svd.SetPathTableLocations(result.SVDPathTableLE, result.SVDPathTableBE)
	}

	var bootCatalogOpts *eltorito.BootCatalogOptions
	if boot != nil {
		boot.SetBootCatalogExtent(result.BootCatalogExtent)
		opts := b.bootCatalogOpts
		opts.LoadRBA = result.ContentExtent[b.bootImageContentID]
		bootCatalogOpts = &opts
	}

	content := make(map[directory.ContentID]io.Reader, len(b.contentOrder))
	for _, id := range b.contentOrder {
		r, err := b.contentSource[id].Open()
		if err != nil {
			return fmt.Errorf("%w: opening content %d: %s", ErrSourceIO, id, err)
		}
		content[id] = r
	}

	return writer.Write(w, writer.Params{
		PVD:          pvd,
		SVD:          svd,
		Boot:         boot,
		BootCatalog:  bootCatalogOpts,
		Terminator:   terminator,
		Layout:       result,
		PVDRoot:      b.pvdRoot,
		SVDRoot:      b.svdRoot,
		ContentOrder: b.contentOrder,
		Content:      content,
		Logger:       i.logger,
	})
}

// GetAndWrite resolves imagePath against the image's tree and copies that
// file's exact data-length bytes to sink. It works against a
// built-but-unwritten tree (Initialized state, looked up via the in-memory
// DirectoryRecord tree and content table) as well as an already-Open image
// (looked up via the parsed DirectoryEntry tree and its backing reader).
func (i *ISO9660Image) GetAndWrite(imagePath string, sink io.Writer) error {
	switch i.state {
	case stateInitialized:
		return i.getAndWriteFromBuild(imagePath, sink)
	case stateOpen:
		return i.getAndWriteFromParsed(imagePath, sink)
	default:
		return fmt.Errorf("%w: GetAndWrite requires an image created with New or Open", ErrNotOpen)
	}
}

// resolve walks imagePath's components against the not-yet-written tree
// accumulated by New/AddFile/AddDirectory, trying each component's mangled
// identifier first and its literal (caller-pre-mangled) form second.
func (b *buildState) resolve(imagePath string) (*directory.DirectoryRecord, error) {
	components := splitComponents(imagePath)
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	cur := b.pvdRoot
	for idx, raw := range components {
		last := idx == len(components)-1

		if last {
			if mangled, err := mangle.MangleFile(raw, b.interchangeLevel); err == nil {
				if child, ok := cur.Child(mangled); ok {
					return child, nil
				}
			}
			if child, ok := cur.Child(raw); ok {
				return child, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, imagePath)
		}

		mangled, err := mangle.MangleDirectory(raw, b.interchangeLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, imagePath, err)
		}
		child, ok := cur.Child(mangled)
		if !ok {
			child, ok = cur.Child(raw)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, imagePath)
		}
		if !child.IsDirectory() {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, imagePath)
		}
		cur = child
	}
	return cur, nil
}

// getAndWriteFromBuild resolves imagePath against the not-yet-written tree
// accumulated by New/AddFile/AddDirectory.
func (i *ISO9660Image) getAndWriteFromBuild(imagePath string, sink io.Writer) error {
	cur, err := i.build.resolve(imagePath)
	if err != nil {
		return err
	}
	if cur.IsDirectory() {
		return fmt.Errorf("%w: %s", ErrNotAFile, imagePath)
	}

	src, ok := i.build.contentSource[cur.ContentID]
	if !ok {
		return fmt.Errorf("%w: %s has no content", ErrNotFound, imagePath)
	}
	r, err := src.Open()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %s", ErrSourceIO, imagePath, err)
	}
	if _, err := io.CopyN(sink, r, int64(cur.DataLength)); err != nil {
		return fmt.Errorf("%w: writing %s: %s", ErrSinkClosed, imagePath, err)
	}
	return nil
}

// getAndWriteFromParsed resolves imagePath against an Open image's parsed
// DirectoryEntry tree, reading the file's exact data_length bytes straight
// from the backing ISO reader.
func (i *ISO9660Image) getAndWriteFromParsed(imagePath string, sink io.Writer) error {
	entries, err := i.GetAllEntries()
	if err != nil {
		return err
	}

	want := strings.Trim(gopath.Clean("/"+imagePath), "/")
	for _, e := range entries {
		if strings.Trim(e.FullPath(), "/") != want {
			continue
		}
		if e.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotAFile, imagePath)
		}

		start := int64(e.Record.LocationOfExtent) * 2048
		size := int64(e.Record.DataLength)
		if _, err := io.CopyN(sink, io.NewSectionReader(e.IsoReader, start, size), size); err != nil {
			return fmt.Errorf("%w: writing %s: %s", ErrSinkClosed, imagePath, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, imagePath)
}

// splitComponents splits a "/"-separated image path into its non-empty
// components.
func splitComponents(imagePath string) []string {
	cleaned := strings.Trim(gopath.Clean("/"+imagePath), "/")
	if cleaned == "" || cleaned == "." {
		return nil
	}
	return strings.Split(cleaned, "/")
}
