//go:build linux

package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// linuxBackend discovers devices via `lsblk -J`, in the spirit of
// other_examples' juju-juju diskmanager package (which parses a similar
// key=value lsblk format) and clearlinux's sysfs-walking block_devices.go.
// Only whole disks ("disk" TYPE) are returned; partitions are the Volume
// Controller's concern.
type linuxBackend struct {
	lsblkPath string
}

// NewLinuxBackend constructs the real Linux Backend implementation.
func NewLinuxBackend() Backend {
	return &linuxBackend{lsblkPath: "lsblk"}
}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string `json:"name"`
	Size       string `json:"size"`
	Type       string `json:"type"`
	MountPoint string `json:"mountpoint"`
	Model      string `json:"model"`
	Serial     string `json:"serial"`
	Tran       string `json:"tran"`
	Rota       string `json:"rota"`
	RM         string `json:"rm"`
	PhySec     string `json:"phy-sec"`
}

func (b *linuxBackend) List(ctx context.Context) ([]RawInfo, error) {
	cmd := exec.CommandContext(ctx, b.lsblkPath, "-J", "-b",
		"-o", "NAME,SIZE,TYPE,MOUNTPOINT,MODEL,SERIAL,TRAN,ROTA,RM,PHY-SEC")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("lsblk: %w", err)
	}

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	infos := make([]RawInfo, 0, len(parsed.BlockDevices))
	for _, d := range parsed.BlockDevices {
		if d.Type != "disk" {
			continue
		}

		size, _ := strconv.ParseUint(d.Size, 10, 64)
		sectorSize, _ := strconv.ParseUint(d.PhySec, 10, 32)
		if sectorSize == 0 {
			sectorSize = 512
		}

		infos = append(infos, RawInfo{
			Path:       "/dev/" + d.Name,
			Name:       d.Name,
			Model:      strings.TrimSpace(d.Model),
			Serial:     strings.TrimSpace(d.Serial),
			SizeBytes:  size,
			SectorSize: uint32(sectorSize),
			Transport:  strings.ToLower(d.Tran),
			Removable:  d.RM == "1",
			Rotational: d.Rota == "1",
		})
	}

	return infos, nil
}

// BootDevicePath resolves the physical device backing the root filesystem
// by walking /proc/self/mountinfo for the "/" mount and resolving its
// partition back to a whole-disk sysfs parent.
func (b *linuxBackend) BootDevicePath(ctx context.Context) (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return "", fmt.Errorf("open mountinfo: %w", err)
	}
	defer f.Close()

	var rootSource string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// mountinfo: ... mountpoint ... - fstype source options
		dashIdx := -1
		for i, f := range fields {
			if f == "-" {
				dashIdx = i
				break
			}
		}
		if dashIdx < 0 || dashIdx+2 >= len(fields) {
			continue
		}
		mountPoint := fields[4]
		source := fields[dashIdx+2]
		if mountPoint == "/" {
			rootSource = source
		}
	}
	if rootSource == "" {
		return "", fmt.Errorf("root mount not found in mountinfo")
	}

	return wholeDiskFromPartition(rootSource), nil
}

// wholeDiskFromPartition resolves a partition device node (e.g. /dev/sda1,
// /dev/nvme0n1p2) to its parent whole-disk node by consulting sysfs.
func wholeDiskFromPartition(partition string) string {
	name := strings.TrimPrefix(partition, "/dev/")
	sysPartition := filepath.Join("/sys/class/block", name, "partition")
	if _, err := os.Stat(sysPartition); err != nil {
		// Not a partition node (e.g. already a whole disk, or an overlay).
		return partition
	}

	link, err := os.Readlink(filepath.Join("/sys/class/block", name))
	if err != nil {
		return partition
	}
	parent := filepath.Base(filepath.Dir(link))
	return "/dev/" + parent
}

func (b *linuxBackend) ProbeATA(ctx context.Context, path string) (ATAFeatures, error) {
	dev, err := openATADevice(path)
	if err != nil {
		return ATAFeatures{}, err
	}
	defer dev.Close()

	raw, err := dev.identify()
	if err != nil {
		return ATAFeatures{}, err
	}
	return ParseIdentify(raw), nil
}

func (b *linuxBackend) ProbeNVMe(ctx context.Context, path string) (NVMeFeatures, error) {
	dev, err := openNVMeDevice(path)
	if err != nil {
		return NVMeFeatures{}, err
	}
	defer dev.Close()

	ctrl, err := dev.identifyController()
	if err != nil {
		return NVMeFeatures{}, err
	}

	return NVMeFeatures{
		SupportsFormatNVM:   ctrl.Oacs&0x2 != 0,
		SupportsSanitize:    ctrl.Sanicap&0x7 != 0,
		SanitizeCryptoErase: ctrl.Sanicap&0x1 != 0,
		SanitizeBlockErase:  ctrl.Sanicap&0x2 != 0,
		SanitizeOverwrite:   ctrl.Sanicap&0x4 != 0,
	}, nil
}
