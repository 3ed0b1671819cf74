// Package parser walks an on-disk ISO 9660 image's volume descriptor chain,
// path tables and directory tree, so the root package can host the
// write-side facade (New/AddFile/Write) alongside a thin read-side wrapper
// instead of one file doing both.
package parser

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/descriptor"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/isoerr"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/path"
	"github.com/bgrewell/iso9660-studio/pkg/systemarea"
	"github.com/bgrewell/iso9660-studio/pkg/validation"
	"github.com/go-logr/logr"
)

// Result carries every structure Parse discovers while walking an image.
type Result struct {
	SystemArea                     systemarea.SystemArea
	PrimaryVolumeDescriptor         *descriptor.PrimaryVolumeDescriptor
	SupplementaryVolumeDescriptors  []*descriptor.SupplementaryVolumeDescriptor
	BootRecordVolumeDescriptor      *descriptor.BootRecordVolumeDescriptor
	ElTorito                        *eltorito.ElTorito
	RootDirectory                   *directory.DirectoryEntry
}

// Options controls how Parse interprets an ambiguous or extended image.
type Options struct {
	// PreferEnhancedVD selects a Joliet SVD's root directory over the PVD's
	// when both are present.
	PreferEnhancedVD bool
	// ElToritoEnabled controls whether a boot record's catalog is read.
	ElToritoEnabled bool
	Logger          logr.Logger
}

// Parse reads the system area, then the volume descriptor chain starting at
// block 16 up through (and including) the Volume Descriptor Set Terminator,
// from r, whose total extent is size bytes.
func Parse(r io.ReaderAt, size int64, opts Options) (*Result, error) {
	logger := opts.Logger

	saEnd := int64(consts.ISO9660_SYSTEM_AREA_SECTORS * consts.ISO9660_SECTOR_SIZE)
	sa := make([]byte, saEnd)
	if _, err := r.ReadAt(sa, 0); err != nil {
		return nil, fmt.Errorf("parser: reading system area: %w", err)
	}

	result := &Result{SystemArea: systemarea.SystemArea(sa)}

	done := false
	for idx := saEnd; idx < size; idx += consts.ISO9660_SECTOR_SIZE {
		vdBytes := make([]byte, consts.ISO9660_SECTOR_SIZE)
		if _, err := r.ReadAt(vdBytes, idx); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: at offset %d", isoerr.ErrTruncatedDescriptor, idx)
			}
			return nil, fmt.Errorf("parser: reading volume descriptor at offset %d: %w", idx, err)
		}

		vd, err := descriptor.ParseVolumeDescriptor(vdBytes, logger)
		if err != nil {
			return nil, fmt.Errorf("parser: parsing volume descriptor at offset %d: %w", idx, err)
		}

		switch vd.Type() {
		case descriptor.VolumeDescriptorPrimary:
			logger.V(logging.DEBUG).Info("processing primary volume descriptor", "idx", idx)
			pvd, err := descriptor.ParsePrimaryVolumeDescriptor(vd, r, logger)
			if err != nil {
				return nil, fmt.Errorf("parser: parsing primary volume descriptor: %w", err)
			}
			if err := ParsePathTable(r, pvd, logger); err != nil {
				return nil, fmt.Errorf("parser: parsing path table: %w", err)
			}
			result.PrimaryVolumeDescriptor = pvd
			result.RootDirectory = pvd.RootDirectoryEntry

		case descriptor.VolumeDescriptorSupplementary:
			logger.V(logging.DEBUG).Info("processing supplementary volume descriptor", "idx", idx)
			svd, err := descriptor.ParseSupplementaryVolumeDescriptor(vd, r, logger)
			if err != nil {
				return nil, fmt.Errorf("parser: parsing supplementary volume descriptor: %w", err)
			}
			if result.SupplementaryVolumeDescriptors == nil && opts.PreferEnhancedVD && svd.IsJoliet() {
				result.RootDirectory = svd.RootDirectoryEntry
			}
			result.SupplementaryVolumeDescriptors = append(result.SupplementaryVolumeDescriptors, svd)

		case descriptor.VolumeDescriptorBootRecord:
			logger.V(logging.DEBUG).Info("processing boot record volume descriptor", "idx", idx)
			brvd, err := descriptor.ParseBootRecordVolumeDescriptor(vd, logger)
			if err != nil {
				return nil, fmt.Errorf("parser: parsing boot record volume descriptor: %w", err)
			}
			result.BootRecordVolumeDescriptor = brvd
			if IsElTorito(brvd.BootSystemIdentifier) && opts.ElToritoEnabled {
				catalogPointer := binary.LittleEndian.Uint32(brvd.BootSystemUse[0:4])
				catalogOffset := int64(catalogPointer) * consts.ISO9660_SECTOR_SIZE
				catalogBytes := make([]byte, consts.ISO9660_SECTOR_SIZE)
				if _, err := r.ReadAt(catalogBytes, catalogOffset); err != nil {
					return nil, fmt.Errorf("parser: reading El Torito catalog at offset %d: %w", catalogOffset, err)
				}
				result.ElTorito = &eltorito.ElTorito{}
				if err := result.ElTorito.UnmarshalBinary(catalogBytes); err != nil {
					return nil, fmt.Errorf("parser: unmarshaling El Torito catalog: %w", err)
				}
			}

		case descriptor.VolumeDescriptorPartition:
			logger.Error(nil, "volume descriptor partition type is not supported")

		case descriptor.VolumeDescriptorSetTerminator:
			logger.V(logging.DEBUG).Info("processing volume descriptor set terminator", "idx", idx)
			done = true

		default:
			logger.Error(nil, "unknown volume descriptor type", "type", vd.Type())
		}

		if done {
			break
		}
	}

	return result, nil
}

// IsElTorito reports whether a boot record's system identifier names the El
// Torito specification.
func IsElTorito(bootSystemIdentifier string) bool {
	return strings.TrimRight(bootSystemIdentifier, "\x00") == consts.EL_TORITO_BOOT_SYSTEM_ID
}

// ParsePathTable reads and decodes a volume descriptor's L-path-table into
// its PathTable() slot, one variable-length record at a time.
func ParsePathTable(r io.ReaderAt, vd descriptor.VolumeDescriptor, logger logr.Logger) error {
	start := int64(vd.PathTableLocation()) * consts.ISO9660_SECTOR_SIZE
	end := start + int64(vd.PathTableSize())

	pathTable := vd.PathTable()

	offset := start
	for offset < end {
		header := make([]byte, 8)
		n, err := r.ReadAt(header, offset)
		if err != nil {
			return fmt.Errorf("reading path table header at offset %d: %w", offset, err)
		}
		if n < 8 {
			return fmt.Errorf("unexpected EOF reading path table header at offset %d", offset)
		}

		dirLen := header[0]
		recordLen := 8 + int(dirLen)
		if dirLen%2 != 0 {
			recordLen++
		}

		if offset+int64(recordLen) > end {
			return fmt.Errorf("path table record at offset %d would exceed path table size", offset)
		}

		buf := make([]byte, recordLen)
		n, err = r.ReadAt(buf, offset)
		if err != nil {
			return fmt.Errorf("reading path table record at offset %d: %w", offset, err)
		}
		if n < recordLen {
			return fmt.Errorf("unexpected EOF reading path table record at offset %d", offset)
		}

		record := path.NewPathTableRecord(logger)
		if err := record.Unmarshal(buf); err != nil {
			return fmt.Errorf("unmarshaling path table record at offset %d: %w", offset, err)
		}
		if !validation.ValidISO9660DirIdentifier(record.DirectoryIdentifier) {
			logger.V(logging.DEBUG).Info("path table identifier outside the strict d-character set",
				"identifier", record.DirectoryIdentifier, "offset", offset)
		}
		*pathTable = append(*pathTable, record)

		offset += int64(recordLen)
	}
	return nil
}

// StripVersion removes the ";n" version suffix ECMA-119 appends to file
// identifiers, leaving directory identifiers (which never carry one)
// untouched.
func StripVersion(filename string) string {
	if idx := strings.Index(filename, ";"); idx != -1 {
		return filename[:idx]
	}
	return filename
}

// WalkAllEntries returns every entry reachable from root, breadth-first.
func WalkAllEntries(root *directory.DirectoryEntry) ([]*directory.DirectoryEntry, error) {
	var result []*directory.DirectoryEntry
	queue := []*directory.DirectoryEntry{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		if current.IsDir() {
			children, err := current.GetChildren()
			if err != nil {
				return nil, err
			}
			queue = append(queue, children...)
		}
	}

	return result, nil
}

// WalkAllEntriesParallel performs the same walk as WalkAllEntries but
// resolves each directory's children concurrently, bounded by maxWorkers.
func WalkAllEntriesParallel(root *directory.DirectoryEntry, maxWorkers int) ([]*directory.DirectoryEntry, error) {
	var (
		result []*directory.DirectoryEntry
		queue  = []*directory.DirectoryEntry{root}
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, maxWorkers)
		errCh  = make(chan error, 1)
	)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		if current.IsDir() {
			wg.Add(1)
			go func(dir *directory.DirectoryEntry) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				children, err := dir.GetChildren()
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}

				mu.Lock()
				queue = append(queue, children...)
				mu.Unlock()
			}(current)
		}
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	return result, nil
}
