package descriptor

import (
	"fmt"
	"github.com/bgrewell/iso9660-studio/pkg/consts"
)

// NewVolumeDescriptorTerminator creates a VolumeDescriptorTerminator ready to marshal.
func NewVolumeDescriptorTerminator() *VolumeDescriptorTerminator {
	return &VolumeDescriptorTerminator{
		vdType:     VolumeDescriptorSetTerminator,
		identifier: consts.ISO9660_STD_IDENTIFIER,
		version:    consts.ISO9660_VOLUME_DESC_VERSION,
	}
}

// VolumeDescriptorTerminator represents the Volume Descriptor Set Terminator (type 255)
// that closes the volume descriptor chain.
type VolumeDescriptorTerminator struct {
	vdType     VolumeDescriptorType
	identifier string
	version    int8
}

// Type returns the volume descriptor type, always VolumeDescriptorSetTerminator.
func (t *VolumeDescriptorTerminator) Type() VolumeDescriptorType {
	return t.vdType
}

// Identifier returns the standard identifier, always "CD001".
func (t *VolumeDescriptorTerminator) Identifier() string {
	return t.identifier
}

// Version returns the descriptor version.
func (t *VolumeDescriptorTerminator) Version() int8 {
	return t.version
}

// Marshal encodes the terminator into a 2048-byte sector: a 7-byte header followed by
// reserved zero bytes.
func (t *VolumeDescriptorTerminator) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var buf [consts.ISO9660_SECTOR_SIZE]byte
	buf[0] = byte(VolumeDescriptorSetTerminator)
	copy(buf[1:6], []byte(consts.ISO9660_STD_IDENTIFIER))
	buf[6] = byte(t.version)
	return buf, nil
}

// Unmarshal parses a 2048-byte sector into the terminator, validating the header fields.
func (t *VolumeDescriptorTerminator) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	t.vdType = VolumeDescriptorType(data[0])
	t.identifier = string(data[1:6])
	t.version = int8(data[6])

	if t.vdType != VolumeDescriptorSetTerminator {
		return fmt.Errorf("invalid volume descriptor set terminator type: %d", t.vdType)
	}
	if t.identifier != consts.ISO9660_STD_IDENTIFIER {
		return fmt.Errorf("invalid standard identifier: %s", t.identifier)
	}

	return nil
}
