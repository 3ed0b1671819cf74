package iso

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/descriptor"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/options"
	"github.com/bgrewell/iso9660-studio/pkg/parser"
	"github.com/bgrewell/iso9660-studio/pkg/systemarea"
	"github.com/go-logr/logr"
)

// imageState tracks the facade's position in the Closed -> Initialized ->
// Open lifecycle. A zero-value ISO9660Image starts Closed;
// New puts it in Initialized (a tree is being built but nothing has been
// written or read yet); Open puts an existing-image read into Open.
type imageState int

const (
	stateClosed imageState = iota
	stateInitialized
	stateOpen
)

// Open opens an existing ISO image file for reading.
func Open(location string, opts ...options.Option) (Image, error) {
	o := options.Options{
		IsoType:          consts.ISO9660,
		StripVersionInfo: true,
		RockRidgeEnabled: true,
		ElToritoEnabled:  true,
		BootFileLocation: "[BOOT]", // Default location for boot files, same as 7zip
		Logger:           logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch o.IsoType {
	case consts.ISO9660:
		img := &ISO9660Image{options: o}
		return img, img.Open(location)
	default:
		return nil, fmt.Errorf("%w: unsupported ISO type: %d", ErrInvalidArgument, o.IsoType)
	}
}

// Image represents an opened ISO image: the read side of the facade
// (Open/Parse/Extract). The write side (New/AddFile/Write) is not part of it.
type Image interface {
	Open(isoLocation string) error
	Parse() error
	Parsed() bool
	Close() error
	String() string
	HasRockRidge() bool
	HasElTorito() bool
	RootDirectory() *directory.DirectoryEntry
	ExtractFiles(outputLocation string) error
	ExtractBootImages(outputLocation string) error
	Extract(outputLocation string, includeBootImages bool) error
	GetAllEntries() ([]*directory.DirectoryEntry, error)
}

// ISO9660Image represents an ISO 9660 image, whether opened from disk for
// reading/extraction or built from scratch via New/AddFile/AddDirectory.
type ISO9660Image struct {
	SystemArea                     systemarea.SystemArea
	PrimaryVolumeDescriptor        *descriptor.PrimaryVolumeDescriptor
	SupplementaryVolumeDescriptors []*descriptor.SupplementaryVolumeDescriptor
	BootRecordVolumeDescriptor     *descriptor.BootRecordVolumeDescriptor
	eltorito                       *eltorito.ElTorito
	isoFile                        *os.File
	rootDirectory                  *directory.DirectoryEntry
	options                        options.Options
	logger                         logr.Logger
	parsed                         bool
	state                          imageState

	// Write-side state; populated by New/AddFile/AddDirectory/AddElTorito
	// and consumed by Write/GetAndWrite. See image.go.
	build *buildState
}

// Open opens an existing ISO 9660 image file.
func (i *ISO9660Image) Open(isoLocation string) (err error) {
	if i.state != stateClosed {
		return fmt.Errorf("%w: image already open or initialized", ErrAlreadyOpen)
	}

	i.logger = i.options.Logger

	i.isoFile, err = os.Open(isoLocation)
	if err != nil {
		return err
	}
	i.state = stateOpen

	if i.options.ParseOnOpen {
		if err = i.Parse(); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the ISO 9660 image file and releases any write-side state,
// returning the facade to Closed.
func (i *ISO9660Image) Close() error {
	var err error
	if i.isoFile != nil {
		err = i.isoFile.Close()
		i.isoFile = nil
	}
	i.state = stateClosed
	i.build = nil
	return err
}

// Parse parses the structures within the ISO 9660 image, delegating the
// actual descriptor/path-table/tree walk to pkg/parser.
func (i *ISO9660Image) Parse() (err error) {
	if i.isoFile == nil {
		return fmt.Errorf("%w: call Open first", ErrNotOpen)
	}

	size, err := i.isoFile.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to determine ISO size: %w", err)
	}

	result, err := parser.Parse(i.isoFile, size, parser.Options{
		PreferEnhancedVD: i.options.PreferEnhancedVD,
		ElToritoEnabled:  i.options.ElToritoEnabled,
		Logger:           i.logger,
	})
	if err != nil {
		return err
	}

	i.SystemArea = result.SystemArea
	i.PrimaryVolumeDescriptor = result.PrimaryVolumeDescriptor
	i.SupplementaryVolumeDescriptors = result.SupplementaryVolumeDescriptors
	i.BootRecordVolumeDescriptor = result.BootRecordVolumeDescriptor
	i.eltorito = result.ElTorito
	i.rootDirectory = result.RootDirectory

	if i.PrimaryVolumeDescriptor != nil &&
		i.PrimaryVolumeDescriptor.Identifier() != consts.ISO9660_STD_IDENTIFIER {
		return fmt.Errorf("%w: %q", ErrBadMagic, i.PrimaryVolumeDescriptor.Identifier())
	}

	i.logger.V(logging.DEBUG).Info("finished parsing ISO 9660 image")
	i.parsed = true

	return nil
}

// Parsed returns whether the ISO 9660 image has been parsed.
func (i *ISO9660Image) Parsed() bool {
	return i.parsed
}

// String returns a string representation of the ISO 9660 image data.
func (i *ISO9660Image) String() string {
	if i.isoFile != nil {
		return fmt.Sprintf("ISO 9660 Image: %s", i.isoFile.Name())
	}
	if i.build != nil {
		return fmt.Sprintf("ISO 9660 Image: %s (unwritten)", i.build.volIdent)
	}
	return "ISO 9660 Image: (closed)"
}

// RootDirectory returns the root directory of the ISO 9660 image.
func (i *ISO9660Image) RootDirectory() *directory.DirectoryEntry {
	return i.rootDirectory
}

// HasElTorito returns whether the ISO 9660 image has an El Torito boot record.
func (i *ISO9660Image) HasElTorito() bool {
	return i.eltorito != nil
}

// HasRockRidge returns whether the ISO 9660 image has Rock Ridge extensions.
func (i *ISO9660Image) HasRockRidge() bool {
	return i.rootDirectory.HasRockRidge()
}

// Extract extracts all files (and, if requested, boot images) from the ISO
// 9660 image.
func (i *ISO9660Image) Extract(outputLocation string, includeBootImages bool) (err error) {
	if !i.Parsed() {
		if err = i.Parse(); err != nil {
			return err
		}
	}

	if err = i.ExtractFiles(outputLocation); err != nil {
		return err
	}

	if includeBootImages && i.eltorito != nil {
		if err = i.ExtractBootImages(filepath.Join(outputLocation, i.options.BootFileLocation)); err != nil {
			return err
		}
	}

	return nil
}

// ExtractFiles extracts all files from the ISO 9660 image.
func (i *ISO9660Image) ExtractFiles(outputLocation string) error {
	i.logger.V(logging.INFO).Info("extracting files from ISO 9660 image", "outputLocation", outputLocation)
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return fmt.Errorf("failed to parse ISO: %w", err)
		}
	}

	entries, err := i.GetAllEntries()
	if err != nil {
		return fmt.Errorf("failed to get all entries: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			fullPath := filepath.Join(outputLocation, entry.FullPath())
			if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if err := i.extractFile(entry, filepath.Join(outputLocation, entry.FullPath())); err != nil {
				return fmt.Errorf("failed to extract file %s: %w", entry.FullPath(), err)
			}
		}
	}

	return nil
}

// ExtractBootImages extracts all boot images from the ISO 9660 image.
func (i *ISO9660Image) ExtractBootImages(outputLocation string) (err error) {
	i.logger.V(logging.INFO).Info("extracting boot images from ISO 9660 image", "outputLocation", outputLocation)
	if i.eltorito == nil {
		return fmt.Errorf("%w: image has no El Torito boot catalog", ErrNotFound)
	}

	if stat, statErr := os.Stat(outputLocation); statErr != nil && os.IsNotExist(statErr) {
		if stat != nil && !stat.IsDir() {
			return fmt.Errorf("output location %s exists and is not a directory", outputLocation)
		}
		if err = os.MkdirAll(outputLocation, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create output location %s: %w", outputLocation, err)
		}
	}

	return i.eltorito.ExtractBootImages(i.isoFile, outputLocation)
}

// GetAllEntries returns all the entries in the actively selected volume
// descriptor's root directory entry.
func (i *ISO9660Image) GetAllEntries() ([]*directory.DirectoryEntry, error) {
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return nil, fmt.Errorf("failed to parse ISO: %w", err)
		}
	}
	return parser.WalkAllEntries(i.RootDirectory())
}

// extractFile writes one file's contents from the ISO to fullPath.
func (i *ISO9660Image) extractFile(file *directory.DirectoryEntry, fullPath string) error {
	if i.options.StripVersionInfo {
		fullPath = parser.StripVersion(fullPath)
	}

	name := file.Name()
	if name == "" || name == "." || name == ".." {
		return nil
	}

	outFile, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer outFile.Close()

	start := int64(file.Record.LocationOfExtent) * consts.ISO9660_SECTOR_SIZE
	size := int64(file.Record.DataLength)
	buffer := make([]byte, size)

	if _, err = file.IsoReader.ReadAt(buffer, start); err != nil {
		return fmt.Errorf("failed to read file %s from ISO: %w", name, err)
	}

	if _, err = outFile.Write(buffer); err != nil {
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	return nil
}
