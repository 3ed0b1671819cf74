// Package layout assigns extent numbers to every addressable object in a
// built-from-scratch image — path tables, directories, the El Torito boot
// catalog, and file content — and computes the resulting volume space size
// and path table size fields. Assignment runs in ordered passes over the
// tree; size fields are back-filled once every extent is known. A single
// pass converges because a directory record's length depends only on its
// identifier, never on the extent values it carries.
package layout

import (
	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/path"
	"github.com/go-logr/logr"
)

// pathTableChainPad is the single reserved block between the volume
// descriptor set terminator and the first path table: an empty image's path
// table starts at block 19 when the descriptor chain is only PVD+VDST
// (ending at block 17), matching images produced by the reference tooling.
const pathTableChainPad = 1

// Params describes everything the layout engine needs to assign extents to a
// tree built from scratch.
type Params struct {
	// PVDRoot is the root of the plain ISO 9660 directory tree.
	PVDRoot *directory.DirectoryRecord
	// SVDRoot is the root of the parallel Joliet tree, or nil if Joliet was
	// not requested.
	SVDRoot *directory.DirectoryRecord
	// ContentOrder lists file ContentIDs in AddFile call order: file extents
	// are assigned in declaration order, not sibling sort order.
	ContentOrder []directory.ContentID
	// ContentLength gives the exact byte length backing each ContentID.
	ContentLength map[directory.ContentID]int64
	// ElTorito requests a one-block boot catalog extent between the
	// directory trees and the file extents.
	ElTorito bool
	Logger   logr.Logger
}

// Result carries every extent/size value the volume descriptors and directory
// trees need before marshaling.
type Result struct {
	SpaceSize int32

	PVDPathTableSize int32
	PVDPathTableLE   uint32
	PVDPathTableBE   uint32
	PVDPathTable     []*path.PathTableRecord

	SVDPathTableSize int32
	SVDPathTableLE   uint32
	SVDPathTableBE   uint32
	SVDPathTable     []*path.PathTableRecord

	BootCatalogExtent uint32

	// ContentExtent maps each file's ContentID to its assigned starting
	// extent; both the PVD and Joliet trees' file records are updated to
	// this same value, so the two views share one set of file extents.
	ContentExtent map[directory.ContentID]uint32
}

// Run assigns extents in a fixed order: descriptor chain, a pad block, PVD
// path tables (L then M), Joliet path tables, the PVD directory tree
// breadth-first, the Joliet tree, the boot catalog, then file content. It
// mutates every DirectoryRecord in both trees in place (LocationOfExtent,
// DataLength) and returns the volume-descriptor-level sizes the caller
// assigns onto the PVD/SVD/BootRecordVolumeDescriptor.
func Run(p Params) (*Result, error) {
	logger := p.Logger
	if logger.GetSink() == nil {
		logger = logging.Discard()
	}

	cursor := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS)

	// Descriptor chain: PVD, [Boot Record], [SVD], VDST.
	cursor++ // PVD
	if p.ElTorito {
		cursor++ // Boot Record
	}
	if p.SVDRoot != nil {
		cursor++ // SVD
	}
	cursor++ // VDST
	logger.V(logging.DEBUG).Info("descriptor chain laid out", "nextBlock", cursor)

	// One reserved pad block before the first path table.
	cursor += pathTableChainPad

	pvdPT := path.BuildPathTable(p.PVDRoot)
	pvdPTLen := pathTableByteLen(pvdPT, false)
	pvdBlocks := roundUpEven(ceilBlocks(pvdPTLen))
	pvdLE := cursor
	cursor += uint32(pvdBlocks)
	pvdBE := cursor
	cursor += uint32(pvdBlocks)
	logger.V(logging.DEBUG).Info("PVD path table reserved",
		"byteLen", pvdPTLen, "blocksPerCopy", pvdBlocks, "le", pvdLE, "be", pvdBE)

	var svdPT []*path.PathTableRecord
	var svdPTLen int
	var svdLE, svdBE uint32
	if p.SVDRoot != nil {
		svdPT = path.BuildPathTable(p.SVDRoot)
		svdPTLen = pathTableByteLen(svdPT, true)
		svdBlocks := roundUpEven(ceilBlocks(svdPTLen))
		svdLE = cursor
		cursor += uint32(svdBlocks)
		svdBE = cursor
		cursor += uint32(svdBlocks)
		logger.V(logging.DEBUG).Info("SVD path table reserved",
			"byteLen", svdPTLen, "blocksPerCopy", svdBlocks, "le", svdLE, "be", svdBE)
	}

	// PVD tree BFS, then (if Joliet) the parallel SVD tree BFS.
	assignDirectoryExtents(p.PVDRoot, &cursor, false)
	if p.SVDRoot != nil {
		assignDirectoryExtents(p.SVDRoot, &cursor, true)
	}

	// El Torito boot catalog, one block.
	var bootCatalogExtent uint32
	if p.ElTorito {
		bootCatalogExtent = cursor
		cursor++
	}

	// File extents in declaration order.
	contentExtent := make(map[directory.ContentID]uint32, len(p.ContentOrder))
	for _, id := range p.ContentOrder {
		length := p.ContentLength[id]
		contentExtent[id] = cursor
		cursor += uint32(ceilBlocks(int(length)))
	}

	resolveContentExtents(p.PVDRoot, contentExtent, bootCatalogExtent)
	if p.SVDRoot != nil {
		resolveContentExtents(p.SVDRoot, contentExtent, bootCatalogExtent)
	}

	// Path tables are rebuilt now that every directory's LocationOfExtent is
	// final; BuildPathTable's output length is unchanged from the pre-extent
	// pass above (identifiers, not extent values, determine byte length).
	pvdPTFinal := path.BuildPathTable(p.PVDRoot)
	var svdPTFinal []*path.PathTableRecord
	if p.SVDRoot != nil {
		svdPTFinal = path.BuildPathTable(p.SVDRoot)
	}

	result := &Result{
		SpaceSize:         int32(cursor),
		PVDPathTableSize:  int32(pvdPTLen),
		PVDPathTableLE:    pvdLE,
		PVDPathTableBE:    pvdBE,
		PVDPathTable:      pvdPTFinal,
		SVDPathTableSize:  int32(svdPTLen),
		SVDPathTableLE:    svdLE,
		SVDPathTableBE:    svdBE,
		SVDPathTable:      svdPTFinal,
		BootCatalogExtent: bootCatalogExtent,
		ContentExtent:     contentExtent,
	}
	logger.V(logging.DEBUG).Info("layout complete", "spaceSize", result.SpaceSize)
	return result, nil
}

// pathTableByteLen sums the on-disk length of every record in a path table.
func pathTableByteLen(records []*path.PathTableRecord, joliet bool) int {
	total := 0
	for _, r := range records {
		total += r.Len(joliet)
	}
	return total
}

// ceilBlocks rounds a byte count up to a whole number of 2048-byte blocks.
func ceilBlocks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + consts.ISO9660_SECTOR_SIZE - 1) / consts.ISO9660_SECTOR_SIZE
}

// roundUpEven rounds a path-table block count up to the next even number with
// a floor of 2, matching reference images: a one-block table reserves two
// blocks per copy, a three-block table reserves four and relocates the
// M-copy accordingly.
func roundUpEven(n int) int {
	if n < 1 {
		n = 1
	}
	if n%2 != 0 {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n
}

// assignDirectoryExtents walks a tree breadth-first, assigning each directory
// its own extent and computing its DataLength via the record-packing rule.
// The dot/dotdot content synthesized along the way may carry
// stale sibling DataLength values on this pass (a directory's own DataLength
// isn't final until this same loop iteration finishes) — harmless, since
// PackDirectoryExtent's returned *length* never depends on a both-endian
// field's value, only its presence. The writer re-packs every extent after
// the whole tree (both trees, for Joliet) is laid out, when all values are
// final.
func assignDirectoryExtents(root *directory.DirectoryRecord, cursor *uint32, joliet bool) {
	queue := []*directory.DirectoryRecord{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		dir.LocationOfExtent = *cursor
		length := len(directory.PackDirectoryExtent(dir, joliet))
		dir.DataLength = uint32(length)
		*cursor += uint32(length / consts.ISO9660_SECTOR_SIZE)

		for _, c := range dir.Children {
			if c.IsDirectory() {
				queue = append(queue, c)
			}
		}
	}
}

// resolveContentExtents walks a tree resolving every file record's
// LocationOfExtent from the shared content table (or, for the El Torito
// catalog record, to bootCatalogExtent), so the PVD and Joliet trees end up
// pointing at the same file extents without either owning the bytes.
func resolveContentExtents(dir *directory.DirectoryRecord, contentExtent map[directory.ContentID]uint32, bootCatalogExtent uint32) {
	for _, c := range dir.Children {
		if c.IsDirectory() {
			resolveContentExtents(c, contentExtent, bootCatalogExtent)
			continue
		}
		if c.IsBootCatalog {
			c.LocationOfExtent = bootCatalogExtent
			c.DataLength = consts.ISO9660_SECTOR_SIZE
			continue
		}
		if extent, ok := contentExtent[c.ContentID]; ok {
			c.LocationOfExtent = extent
		}
	}
}
