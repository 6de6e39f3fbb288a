//go:build linux

package device

import (
	"bytes"
	"encoding/binary"
	"os"
	"unsafe"
)

// NVMe admin-command passthrough. Struct layouts kept close to the
// teacher's nvme.go (github.com/dswarbrick/smart) — they are the exact
// wire format defined by <linux/nvme_ioctl.h> and the NVMe spec, so there
// is nothing idiomatic to change about them.
const (
	nvmeAdminGetLogPage = 0x02
	nvmeAdminIdentify   = 0x06
	nvmeAdminFormatNVM  = 0x80
	nvmeAdminSanitize   = 0x84

	nvmeLogPageSanitizeStatus = 0x81

	// Sanitize actions (NVMe Sanitize command, cdw10 bits 2:0).
	nvmeSanitizeActionExitFailureMode = 1
	nvmeSanitizeActionBlockErase      = 2
	nvmeSanitizeActionOverwrite       = 3
	nvmeSanitizeActionCrypto          = 4
)

var nvmeIoctlAdminCmd = iowr('N', 0x41, unsafe.Sizeof(nvmePassthruCommand{}))

// iowr mirrors the Linux _IOWR macro used to derive ioctl numbers.
func iowr(magic byte, nr byte, size uintptr) uintptr {
	const (
		iocWrite  = 1
		iocRead   = 2
		iocNrBits = 8
		iocTypeBits = 8
		iocSizeBits = 14
		iocDirBits  = 2
	)
	dir := uintptr(iocRead | iocWrite)
	return (dir << (iocNrBits + iocTypeBits + iocSizeBits)) |
		(uintptr(magic) << iocNrBits) |
		(uintptr(nr) << 0) |
		(size << (iocNrBits + iocTypeBits))
}

// nvmePassthruCommand is defined in <linux/nvme_ioctl.h>; 72 bytes.
type nvmePassthruCommand struct {
	opcode     uint8
	flags      uint8
	rsvd1      uint16
	nsid       uint32
	cdw2       uint32
	cdw3       uint32
	metadata   uint64
	addr       uint64
	metadataLen uint32
	dataLen    uint32
	cdw10      uint32
	cdw11      uint32
	cdw12      uint32
	cdw13      uint32
	cdw14      uint32
	cdw15      uint32
	timeoutMs  uint32
	result     uint32
}

type nvmeIdentPowerState struct {
	MaxPower        uint16
	Rsvd2           uint8
	Flags           uint8
	EntryLat        uint32
	ExitLat         uint32
	ReadTput        uint8
	ReadLat         uint8
	WriteTput       uint8
	WriteLat        uint8
	IdlePower       uint16
	IdleScale       uint8
	Rsvd19          uint8
	ActivePower     uint16
	ActiveWorkScale uint8
	Rsvd23          [9]byte
}

// nvmeIdentController is the 4096-byte Identify Controller data structure.
// Only the fields this package actually consumes are named; the rest are
// reserved padding, matching the teacher's layout style.
type nvmeIdentController struct {
	VendorID     uint16
	Ssvid        uint16
	SerialNumber [20]byte
	ModelNumber  [40]byte
	Firmware     [8]byte
	Rab          uint8
	IEEE         [3]byte
	Cmic         uint8
	Mdts         uint8
	Cntlid       uint16
	Ver          uint32
	Rtd3r        uint32
	Rtd3e        uint32
	Oaes         uint32
	Rsvd96       [160]byte
	Oacs         uint16 // Optional Admin Command Support (bit1 = Format NVM supported)
	Acl          uint8
	Aerl         uint8
	Frmw         uint8
	Lpa          uint8
	Elpe         uint8
	Npss         uint8
	Avscc        uint8
	Apsta        uint8
	Wctemp       uint16
	Cctemp       uint16
	Mtfa         uint16
	Hmpre        uint32
	Hmmin        uint32
	Tnvmcap      [16]byte
	Unvmcap      [16]byte
	Rpmbs        uint32
	Rsvd316      [16]byte
	Sanicap      uint32 // Sanitize Capabilities, bytes 332-335 (bits 0-2: crypto/block/overwrite supported)
	Rsvd336      [176]byte
	Sqes         uint8
	Cqes         uint8
	Rsvd514      [2]byte
	Nn           uint32
	Oncs         uint16
	Fuses        uint16
	Fna          uint8
	Vwc          uint8
	Awun         uint16
	Awupf        uint16
	Nvscc        uint8
	Rsvd531      uint8
	Acwu         uint16
	Rsvd534      [2]byte
	Sgls         uint32
	Rsvd540      [1508]byte
	Psd          [32]nvmeIdentPowerState
	Vs           [1024]byte
}

type nvmeSanitizeStatusLog struct {
	SProg        uint16 // sanitize progress, 0-65535 == 0-100%
	SStat        uint16 // sanitize status
	SCdw10       uint32
	EtOverwrite  uint32
	EtBlockErase uint32
	EtCrypto     uint32
	Rsvd16       [492]byte
}

type nvmeDevice struct {
	f *os.File
}

func openNVMeDevice(path string) (*nvmeDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &nvmeDevice{f: f}, nil
}

func (d *nvmeDevice) Close() error { return d.f.Close() }

func (d *nvmeDevice) adminCmd(cmd *nvmePassthruCommand) error {
	return ioctl(d.f.Fd(), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(cmd)))
}

// identifyController issues Identify Controller (CNS=1) and parses the result.
func (d *nvmeDevice) identifyController() (nvmeIdentController, error) {
	buf := make([]byte, 4096)
	cmd := nvmePassthruCommand{
		opcode:  nvmeAdminIdentify,
		addr:    uint64(uintptr(unsafe.Pointer(&buf[0]))),
		dataLen: uint32(len(buf)),
		cdw10:   1,
	}

	var ctrl nvmeIdentController
	if err := d.adminCmd(&cmd); err != nil {
		return ctrl, err
	}

	binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ctrl)
	return ctrl, nil
}

// sanitizeStatus reads the Sanitize Status log page (LID=0x81).
func (d *nvmeDevice) sanitizeStatus() (nvmeSanitizeStatusLog, error) {
	buf := make([]byte, 512)
	if err := d.readLogPage(nvmeLogPageSanitizeStatus, buf); err != nil {
		return nvmeSanitizeStatusLog{}, err
	}
	var log nvmeSanitizeStatusLog
	binary.Read(bytes.NewReader(buf), binary.LittleEndian, &log)
	return log, nil
}

func (d *nvmeDevice) readLogPage(logID uint8, buf []byte) error {
	n := len(buf)
	cmd := nvmePassthruCommand{
		opcode:  nvmeAdminGetLogPage,
		nsid:    0xffffffff,
		addr:    uint64(uintptr(unsafe.Pointer(&buf[0]))),
		dataLen: uint32(n),
		cdw10:   uint32(logID) | (((uint32(n) / 4) - 1) << 16),
	}
	return d.adminCmd(&cmd)
}

// formatNVM issues NVMe Format NVM against namespace 1 using lbaFormat.
func (d *nvmeDevice) formatNVM(lbaFormat uint8) error {
	cmd := nvmePassthruCommand{
		opcode:    nvmeAdminFormatNVM,
		nsid:      1,
		cdw10:     uint32(lbaFormat) & 0xF,
		timeoutMs: 6 * 60 * 60 * 1000,
	}
	return d.adminCmd(&cmd)
}

// sanitize issues NVMe Sanitize with the given action (crypto/block/overwrite).
func (d *nvmeDevice) sanitize(action uint32) error {
	cmd := nvmePassthruCommand{
		opcode: nvmeAdminSanitize,
		cdw10:  action,
	}
	return d.adminCmd(&cmd)
}
