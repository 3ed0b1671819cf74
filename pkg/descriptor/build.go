package descriptor

import (
	"time"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
	"github.com/bgrewell/iso9660-studio/pkg/directory"
	"github.com/bgrewell/iso9660-studio/pkg/encoding"
)

// NewPrimaryVolumeDescriptor creates a PVD with the fixed fields ECMA-119 mandates
// (type 1, "CD001", version 1, one-volume set, 2048-byte blocks) and the caller-
// supplied identifiers. The layout engine fills in space/path-table sizes and
// locations once extent assignment completes; RootRecord is set by the caller
// building the tree.
func NewPrimaryVolumeDescriptor(sysIdent, volIdent, setIdent string) *PrimaryVolumeDescriptor {
	return &PrimaryVolumeDescriptor{
		vdType:                  VolumeDescriptorPrimary,
		standardIdentifier:      consts.ISO9660_STD_IDENTIFIER,
		volumeDescriptorVersion: consts.ISO9660_VOLUME_DESC_VERSION,
		SystemIdentifier:        sysIdent,
		VolumeIdentifier:        volIdent,
		VolumeSetSize:           1,
		VolumeSequenceNumber:    1,
		LogicalBlockSize:        consts.ISO9660_SECTOR_SIZE,
		VolumeSetIdentifier:     setIdent,
		FileStructureVersion:    1,
	}
}

// RootRecord, CreationTime and friends are write-side additions to
// PrimaryVolumeDescriptor: the parse path never touches them (it builds
// RootDirectoryEntry instead), and the layout engine/writer never touch
// RootDirectoryEntry, so the two views coexist on one struct without aliasing.
type pvdWriteFields struct {
	RootRecord       *directory.DirectoryRecord
	CreationTime     time.Time
	ModificationTime time.Time
	ExpirationTime   time.Time
	EffectiveTime    time.Time
}

// SetPathTableSize records the byte length of the L/M path tables. Both halves
// of the both-endian field always agree because there is only one source value.
func (pvd *PrimaryVolumeDescriptor) SetPathTableSize(n int32) { pvd.pathTableSize = n }

// SetSpaceSize records the volume's total block count (last used block + 1).
func (pvd *PrimaryVolumeDescriptor) SetSpaceSize(n int32) { pvd.VolumeSpaceSize = n }

// SetPathTableLocations records the L- and M-path-table starting extents.
func (pvd *PrimaryVolumeDescriptor) SetPathTableLocations(le, be uint32) {
	pvd.LPathTableLocation = le
	pvd.MPathTableLocation = be
}

// SetRootRecord attaches the write-side directory tree whose root is emitted at
// extent RootRecord.LocationOfExtent.
func (pvd *PrimaryVolumeDescriptor) SetRootRecord(root *directory.DirectoryRecord) {
	pvd.writeFields.RootRecord = root
}

// RootRecord returns the write-side root directory record, or nil for a PVD
// populated by the parser.
func (pvd *PrimaryVolumeDescriptor) RootRecord() *directory.DirectoryRecord {
	return pvd.writeFields.RootRecord
}

// SetTimes records the four ECMA-119 volume timestamps used when marshaling.
func (pvd *PrimaryVolumeDescriptor) SetTimes(created, modified, expires, effective time.Time) {
	pvd.writeFields.CreationTime = created
	pvd.writeFields.ModificationTime = modified
	pvd.writeFields.ExpirationTime = expires
	pvd.writeFields.EffectiveTime = effective
}

// Marshal encodes the PVD into its 2048-byte on-disk form (ECMA-119 8.4). Callers
// must have already run the layout engine so VolumeSpaceSize, pathTableSize,
// the path table locations and RootRecord.LocationOfExtent/DataLength are final.
func (pvd *PrimaryVolumeDescriptor) Marshal() [consts.ISO9660_SECTOR_SIZE]byte {
	var buf [consts.ISO9660_SECTOR_SIZE]byte

	buf[0] = byte(VolumeDescriptorPrimary)
	copy(buf[1:6], []byte(consts.ISO9660_STD_IDENTIFIER))
	buf[6] = byte(consts.ISO9660_VOLUME_DESC_VERSION)
	copy(buf[8:40], encoding.MarshalString(pvd.SystemIdentifier, 32))
	copy(buf[40:72], encoding.MarshalString(pvd.VolumeIdentifier, 32))
	encoding.WriteInt32LSBMSB(buf[80:88], pvd.VolumeSpaceSize)
	encoding.WriteInt16LSBMSB(buf[120:124], orOne(pvd.VolumeSetSize))
	encoding.WriteInt16LSBMSB(buf[124:128], orOne(pvd.VolumeSequenceNumber))
	encoding.WriteInt16LSBMSB(buf[128:132], orOne(pvd.LogicalBlockSize, consts.ISO9660_SECTOR_SIZE))
	encoding.WriteInt32LSBMSB(buf[132:140], pvd.pathTableSize)
	putLE32(buf[140:144], pvd.LPathTableLocation)
	putBE32(buf[148:152], pvd.MPathTableLocation)

	if root := pvd.writeFields.RootRecord; root != nil {
		dot, _ := root.DotEntries()
		copy(buf[156:190], dot.Marshal(false))
	}

	copy(buf[190:318], encoding.MarshalString(pvd.VolumeSetIdentifier, 128))
	copy(buf[318:446], encoding.MarshalString(pvd.PublisherIdentifier, 128))
	copy(buf[446:574], encoding.MarshalString(pvd.DataPreparerIdentifier, 128))
	copy(buf[574:702], encoding.MarshalString(pvd.ApplicationIdentifier, 128))
	copy(buf[702:739], encoding.MarshalString(pvd.CopyRightFileIdentifier, 37))
	copy(buf[739:776], encoding.MarshalString(pvd.AbstractFileIdentifier, 37))
	copy(buf[776:813], encoding.MarshalString(pvd.BibliographicFileIdentifier, 37))

	creation := encoding.EncodeVolumeDateTime(pvd.writeFields.CreationTime)
	modified := encoding.EncodeVolumeDateTime(pvd.writeFields.ModificationTime)
	expires := encoding.EncodeVolumeDateTime(pvd.writeFields.ExpirationTime)
	effective := encoding.EncodeVolumeDateTime(pvd.writeFields.EffectiveTime)
	copy(buf[813:830], creation[:])
	copy(buf[830:847], modified[:])
	copy(buf[847:864], expires[:])
	copy(buf[864:881], effective[:])

	buf[881] = 1 // file structure version
	copy(buf[883:1395], pvd.ApplicationUse[:])

	pvd.rawData = buf
	return buf
}

func orOne(v int16, fallback ...int16) int16 {
	if v != 0 {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return 1
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func putBE32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// JolietEscapeSequence returns the 3-byte escape sequence selecting UCS-2
// level 1/2/3.
func JolietEscapeSequence(level int) string {
	switch level {
	case 2:
		return consts.JOLIET_LEVEL_2_ESCAPE
	case 3:
		return consts.JOLIET_LEVEL_3_ESCAPE
	default:
		return consts.JOLIET_LEVEL_1_ESCAPE
	}
}

// NewSupplementaryVolumeDescriptor creates a Joliet SVD (descriptor type 2,
// version 1) carrying the given escape sequence.
func NewSupplementaryVolumeDescriptor(sysIdent, volIdent, setIdent string, jolietLevel int) *SupplementaryVolumeDescriptor {
	svd := &SupplementaryVolumeDescriptor{
		vdType:                  VolumeDescriptorSupplementary,
		standardIdentifier:      consts.ISO9660_STD_IDENTIFIER,
		volumeDescriptorVersion: consts.ISO9660_VOLUME_DESC_VERSION,
		SystemIdentifier:        sysIdent,
		VolumeIdentifier:        volIdent,
		VolumeSetSize:           1,
		VolumeSequenceNumber:    1,
		LogicalBlockSize:        consts.ISO9660_SECTOR_SIZE,
		VolumeSetIdentifier:     setIdent,
		FileStructureVersion:    1,
		isJoliet:                true,
	}
	copy(svd.EscapeSequences[:3], []byte(JolietEscapeSequence(jolietLevel)))
	return svd
}

func (svd *SupplementaryVolumeDescriptor) SetPathTableSize(n int32) { svd.pathTableSize = n }

func (svd *SupplementaryVolumeDescriptor) SetSpaceSize(n int32) { svd.VolumeSpaceSize = n }

func (svd *SupplementaryVolumeDescriptor) SetPathTableLocations(le, be uint32) {
	svd.LPathTableLocation = le
	svd.MPathTableLocation = be
}

func (svd *SupplementaryVolumeDescriptor) SetRootRecord(root *directory.DirectoryRecord) {
	svd.writeFields.RootRecord = root
}

func (svd *SupplementaryVolumeDescriptor) RootRecord() *directory.DirectoryRecord {
	return svd.writeFields.RootRecord
}

func (svd *SupplementaryVolumeDescriptor) SetTimes(created, modified, expires, effective time.Time) {
	svd.writeFields.CreationTime = created
	svd.writeFields.ModificationTime = modified
	svd.writeFields.ExpirationTime = expires
	svd.writeFields.EffectiveTime = effective
}

// Marshal encodes the SVD into its 2048-byte on-disk form. Identical layout to
// the PVD except for the volume-flags and escape-sequence fields and the
// UTF-16BE root directory record. Joliet directory records point at the same
// file extents as the PVD's, so RootRecord here is the Joliet tree's root, a
// distinct DirectoryRecord from the PVD's but sharing ContentIDs.
func (svd *SupplementaryVolumeDescriptor) Marshal() [consts.ISO9660_SECTOR_SIZE]byte {
	var buf [consts.ISO9660_SECTOR_SIZE]byte

	buf[0] = byte(VolumeDescriptorSupplementary)
	copy(buf[1:6], []byte(consts.ISO9660_STD_IDENTIFIER))
	buf[6] = byte(consts.ISO9660_VOLUME_DESC_VERSION)
	copy(buf[7:8], svd.VolumeFlags[:])
	copy(buf[8:40], encoding.MarshalString(svd.SystemIdentifier, 32))
	copy(buf[40:72], encoding.MarshalString(svd.VolumeIdentifier, 32))
	encoding.WriteInt32LSBMSB(buf[80:88], svd.VolumeSpaceSize)
	copy(buf[88:120], svd.EscapeSequences[:])
	encoding.WriteInt16LSBMSB(buf[120:124], orOne(svd.VolumeSetSize))
	encoding.WriteInt16LSBMSB(buf[124:128], orOne(svd.VolumeSequenceNumber))
	encoding.WriteInt16LSBMSB(buf[128:132], orOne(svd.LogicalBlockSize, consts.ISO9660_SECTOR_SIZE))
	encoding.WriteInt32LSBMSB(buf[132:140], svd.pathTableSize)
	putLE32(buf[140:144], svd.LPathTableLocation)
	putBE32(buf[148:152], svd.MPathTableLocation)

	if root := svd.writeFields.RootRecord; root != nil {
		dot, _ := root.DotEntries()
		copy(buf[156:190], dot.Marshal(true))
	}

	copy(buf[190:318], encoding.MarshalString(svd.VolumeSetIdentifier, 128))
	copy(buf[318:446], encoding.MarshalString(svd.PublisherIdentifier, 128))
	copy(buf[446:574], encoding.MarshalString(svd.DataPreparerIdentifier, 128))
	copy(buf[574:702], encoding.MarshalString(svd.ApplicationIdentifier, 128))
	copy(buf[702:739], encoding.MarshalString(svd.CopyRightFileIdentifier, 37))
	copy(buf[739:776], encoding.MarshalString(svd.AbstractFileIdentifier, 37))
	copy(buf[776:813], encoding.MarshalString(svd.BibliographicFileIdentifier, 37))

	creation := encoding.EncodeVolumeDateTime(svd.writeFields.CreationTime)
	modified := encoding.EncodeVolumeDateTime(svd.writeFields.ModificationTime)
	expires := encoding.EncodeVolumeDateTime(svd.writeFields.ExpirationTime)
	effective := encoding.EncodeVolumeDateTime(svd.writeFields.EffectiveTime)
	copy(buf[813:830], creation[:])
	copy(buf[830:847], modified[:])
	copy(buf[847:864], expires[:])
	copy(buf[864:881], effective[:])

	buf[881] = 1
	copy(buf[883:1395], svd.ApplicationUse[:])

	svd.rawData = buf
	return buf
}

// NewBootRecordVolumeDescriptor creates the El Torito boot record pointing at
// bootCatalogExtent.
func NewBootRecordVolumeDescriptor(bootCatalogExtent uint32) *BootRecordVolumeDescriptor {
	return &BootRecordVolumeDescriptor{
		Type:                    VolumeDescriptorBootRecord,
		StandardIdentifier:      consts.ISO9660_STD_IDENTIFIER,
		VolumeDescriptorVersion: int(consts.ISO9660_VOLUME_DESC_VERSION),
		BootSystemIdentifier:    consts.EL_TORITO_BOOT_SYSTEM_ID,
		bootCatalogExtent:       bootCatalogExtent,
	}
}

// Marshal encodes the boot record into its 2048-byte on-disk form: the
// boot-system identifier is a-characters space-padded to 32 bytes, the boot
// identifier is 32 zero bytes, and the boot system use area carries the catalog
// extent as a little-endian uint32 at its start, per the El Torito 1.0
// specification's boot record layout.
func (brvd *BootRecordVolumeDescriptor) Marshal() [consts.ISO9660_SECTOR_SIZE]byte {
	var buf [consts.ISO9660_SECTOR_SIZE]byte
	buf[0] = byte(VolumeDescriptorBootRecord)
	copy(buf[1:6], []byte(consts.ISO9660_STD_IDENTIFIER))
	buf[6] = byte(consts.ISO9660_VOLUME_DESC_VERSION)
	copy(buf[7:39], encoding.MarshalString(consts.EL_TORITO_BOOT_SYSTEM_ID, 32))
	// BootIdentifier (39:71) left zero.
	putLE32(buf[71:75], brvd.bootCatalogExtent)
	return buf
}

// BootCatalogExtent returns the extent at which the boot catalog starts.
func (brvd *BootRecordVolumeDescriptor) BootCatalogExtent() uint32 {
	return brvd.bootCatalogExtent
}

// SetBootCatalogExtent records the boot catalog's assigned extent once the
// layout engine has run.
func (brvd *BootRecordVolumeDescriptor) SetBootCatalogExtent(extent uint32) {
	brvd.bootCatalogExtent = extent
}
