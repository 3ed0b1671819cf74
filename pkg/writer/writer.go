// Package writer streams a laid-out image to an io.Writer in ascending
// extent order: a running block cursor zero-fills any gap before the next
// write, so the sink never needs to support seeking.
package writer

import (
	"fmt"
	"io"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/descriptor"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/isoerr"
	"github.com/bgrewell/iso9660-studio/pkg/layout"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/path"
	"github.com/go-logr/logr"
)

// Params bundles everything Write needs to serialize one image. Callers run
// pkg/layout first so every extent field referenced here is final.
type Params struct {
	PVD         *descriptor.PrimaryVolumeDescriptor
	SVD         *descriptor.SupplementaryVolumeDescriptor // nil without Joliet
	Boot        *descriptor.BootRecordVolumeDescriptor    // nil without El Torito
	BootCatalog *eltorito.BootCatalogOptions               // nil without El Torito
	Terminator  *descriptor.VolumeDescriptorTerminator

	Layout *layout.Result

	PVDRoot *directory.DirectoryRecord
	SVDRoot *directory.DirectoryRecord // nil without Joliet

	// ContentOrder and Content must agree with the ContentOrder passed to
	// layout.Run: each reader is consumed exactly once, in this order.
	ContentOrder []directory.ContentID
	Content      map[directory.ContentID]io.Reader

	Logger logr.Logger
}

// sectorWriter tracks the next unwritten block and zero-fills any gap before
// writing the next chunk, so every write lands at its assigned extent without
// the underlying io.Writer needing to support seeking.
type sectorWriter struct {
	w         io.Writer
	nextBlock uint32
}

func (sw *sectorWriter) writeAt(block uint32, data []byte) error {
	if block < sw.nextBlock {
		return fmt.Errorf("writer: extent %d already passed (cursor at %d)", block, sw.nextBlock)
	}
	if gap := block - sw.nextBlock; gap > 0 {
		if _, err := io.CopyN(sw.w, zeroReader{}, int64(gap)*consts.ISO9660_SECTOR_SIZE); err != nil {
			return fmt.Errorf("%w: padding to extent %d: %s", isoerr.ErrSinkClosed, block, err)
		}
	}
	if _, err := sw.w.Write(data); err != nil {
		return fmt.Errorf("%w: writing extent %d: %s", isoerr.ErrSinkClosed, block, err)
	}
	if rem := len(data) % consts.ISO9660_SECTOR_SIZE; rem != 0 {
		if _, err := io.CopyN(sw.w, zeroReader{}, int64(consts.ISO9660_SECTOR_SIZE-rem)); err != nil {
			return fmt.Errorf("%w: padding extent %d: %s", isoerr.ErrSinkClosed, block, err)
		}
		sw.nextBlock = block + uint32(len(data)/consts.ISO9660_SECTOR_SIZE) + 1
	} else {
		sw.nextBlock = block + uint32(len(data)/consts.ISO9660_SECTOR_SIZE)
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// Write serializes the image described by p to w. It writes strictly in
// ascending extent order: system area, descriptor chain, pad block, path
// tables, directory extents, boot catalog, then file content in declaration
// order — the layout engine's assignment order is also the write order.
func Write(w io.Writer, p Params) error {
	logger := p.Logger
	if logger.GetSink() == nil {
		logger = logging.Discard()
	}

	sw := &sectorWriter{w: w}

	if err := sw.writeAt(0, make([]byte, consts.ISO9660_SYSTEM_AREA_SECTORS*consts.ISO9660_SECTOR_SIZE)); err != nil {
		return err
	}

	block := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS)

	pvdBytes := p.PVD.Marshal()
	if err := sw.writeAt(block, pvdBytes[:]); err != nil {
		return err
	}
	block++

	if p.Boot != nil {
		bootBytes := p.Boot.Marshal()
		if err := sw.writeAt(block, bootBytes[:]); err != nil {
			return err
		}
		block++
	}

	if p.SVD != nil {
		svdBytes := p.SVD.Marshal()
		if err := sw.writeAt(block, svdBytes[:]); err != nil {
			return err
		}
		block++
	}

	termBytes, err := p.Terminator.Marshal()
	if err != nil {
		return fmt.Errorf("writer: marshaling terminator: %w", err)
	}
	if err := sw.writeAt(block, termBytes[:]); err != nil {
		return err
	}

	logger.V(logging.DEBUG).Info("descriptor chain written", "lastBlock", block)

	lt := p.Layout
	pvdL := path.MarshalPathTable(lt.PVDPathTable, false, false)
	if err := sw.writeAt(lt.PVDPathTableLE, pvdL); err != nil {
		return err
	}
	pvdM := path.MarshalPathTable(lt.PVDPathTable, true, false)
	if err := sw.writeAt(lt.PVDPathTableBE, pvdM); err != nil {
		return err
	}

	if p.SVD != nil {
		svdL := path.MarshalPathTable(lt.SVDPathTable, false, true)
		if err := sw.writeAt(lt.SVDPathTableLE, svdL); err != nil {
			return err
		}
		svdM := path.MarshalPathTable(lt.SVDPathTable, true, true)
		if err := sw.writeAt(lt.SVDPathTableBE, svdM); err != nil {
			return err
		}
	}

	if err := writeDirectoryTree(sw, p.PVDRoot, false); err != nil {
		return err
	}
	if p.SVDRoot != nil {
		if err := writeDirectoryTree(sw, p.SVDRoot, true); err != nil {
			return err
		}
	}

	if p.Boot != nil {
		catalog := eltorito.MarshalBootCatalog(*p.BootCatalog)
		if err := sw.writeAt(lt.BootCatalogExtent, catalog[:]); err != nil {
			return err
		}
	}

	for _, id := range p.ContentOrder {
		r, ok := p.Content[id]
		if !ok {
			return fmt.Errorf("writer: no content reader registered for content id %d", id)
		}
		extent := lt.ContentExtent[id]
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("writer: reading content id %d: %w", id, err)
		}
		if err := sw.writeAt(extent, data); err != nil {
			return err
		}
	}

	logger.V(logging.DEBUG).Info("image written", "spaceSize", lt.SpaceSize)
	return nil
}

// writeDirectoryTree walks a tree in the same breadth-first order the layout
// engine assigned extents in (ascending by construction) and writes each
// directory's already-sized extent with final content: every node's
// DataLength in the whole tree is final by this point, so the dot/dotdot
// bytes PackDirectoryExtent embeds are now correct (see pkg/directory's
// PackDirectoryExtent doc comment on the two-pass length/content split).
func writeDirectoryTree(sw *sectorWriter, root *directory.DirectoryRecord, joliet bool) error {
	queue := []*directory.DirectoryRecord{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		data := directory.PackDirectoryExtent(dir, joliet)
		if err := sw.writeAt(dir.LocationOfExtent, data); err != nil {
			return err
		}

		for _, c := range dir.Children {
			if c.IsDirectory() {
				queue = append(queue, c)
			}
		}
	}
	return nil
}
