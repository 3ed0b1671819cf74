package eltorito

import (
	"encoding/binary"

	"github.com/bgrewell/iso9660-studio/pkg/consts"
)

// BootCatalogOptions describes the single Initial/Default Entry boot catalog this
// module builds. Multi-section catalogs with additional boot images are read but
// never written.
type BootCatalogOptions struct {
	Platform      Platform
	Bootable      bool
	MediaType     byte   // 0=no-emul, 1=1.2MB, 2=1.44MB, 3=2.88MB, 4=hard-disk
	LoadSegment   uint16 // default 0x07C0
	SystemType    byte
	SectorCount   uint16 // 512-byte virtual sectors
	LoadRBA       uint32 // LBA of the boot image
}

// marshalValidationEntry encodes the 32-byte Validation Entry that opens every
// El Torito boot catalog: header ID 1, the platform, 24 zero id-string bytes, a
// checksum making the 16-bit LE sum of the 32 bytes zero, and the trailing
// 0x55 0xAA key bytes.
func marshalValidationEntry(platform Platform) []byte {
	buf := make([]byte, 32)
	buf[0] = 0x01 // header ID
	buf[1] = byte(platform)
	// bytes 2-3 reserved, 4-27 id string: left zero.
	buf[30] = 0x55
	buf[31] = 0xAA

	var sum uint16
	for i := 0; i < 32; i += 2 {
		if i == 28 { // checksum field itself; skip while summing the rest
			continue
		}
		sum += binary.LittleEndian.Uint16(buf[i : i+2])
	}
	checksum := uint16(0) - sum
	binary.LittleEndian.PutUint16(buf[28:30], checksum)
	return buf
}

// marshalInitialEntry encodes the 32-byte Initial/Default Entry that follows the
// Validation Entry.
func marshalInitialEntry(opts BootCatalogOptions) []byte {
	buf := make([]byte, 32)
	if opts.Bootable {
		buf[0] = 0x88
	} else {
		buf[0] = 0x00
	}
	buf[1] = opts.MediaType
	loadSegment := opts.LoadSegment
	if loadSegment == 0 {
		loadSegment = 0x07C0
	}
	binary.LittleEndian.PutUint16(buf[2:4], loadSegment)
	buf[4] = opts.SystemType
	// byte 5 unused
	binary.LittleEndian.PutUint16(buf[6:8], opts.SectorCount)
	binary.LittleEndian.PutUint32(buf[8:12], opts.LoadRBA)
	// bytes 12-31 unused
	return buf
}

// MarshalBootCatalog encodes a one-block El Torito boot catalog: the Validation
// Entry followed by the Initial/Default Entry, zero-padded to a full 2048-byte
// extent.
func MarshalBootCatalog(opts BootCatalogOptions) [consts.ISO9660_SECTOR_SIZE]byte {
	var block [consts.ISO9660_SECTOR_SIZE]byte
	copy(block[0:32], marshalValidationEntry(opts.Platform))
	copy(block[32:64], marshalInitialEntry(opts))
	return block
}

// ValidateChecksum reports whether the 16-bit LE sum of a 32-byte Validation
// Entry is zero.
func ValidateChecksum(entry []byte) bool {
	if len(entry) != 32 {
		return false
	}
	var sum uint16
	for i := 0; i < 32; i += 2 {
		sum += binary.LittleEndian.Uint16(entry[i : i+2])
	}
	return sum == 0
}
