package device

import "strings"

// classify maps transport/media signals to a Class, per spec §4.1.
func classify(info RawInfo) Class {
	tran := strings.ToLower(info.Transport)
	model := strings.ToLower(info.Model)

	switch {
	case tran == "nvme":
		return ClassNVMeSSD
	case tran == "usb" || info.Removable:
		return ClassRemovableFlash
	case strings.Contains(model, "ssd") || strings.Contains(model, "solid state") || !info.Rotational:
		return ClassSATASSD
	case info.Rotational:
		return ClassHDD
	default:
		return ClassUnknown
	}
}
