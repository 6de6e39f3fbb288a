package device

import (
	"github.com/blockwipe/wipeattest/drivedb"
	"github.com/blockwipe/wipeattest/wipe"
)

// RecommendMethod implements the deterministic recommendation table from
// spec §4.1.
func RecommendMethod(d Device, db *drivedb.DB) (wipe.Method, string) {
	if d.Capability.IsSystem {
		return wipe.NewQuick(), "system drive — hardware erase disabled"
	}

	switch {
	case d.Class == ClassNVMeSSD && d.Capability.SupportsNVMeSanitize:
		return wipe.NewNvmeSanitize(wipe.NvmeSanitizeCrypto), rationale(db, d, "NVMe Sanitize supported")
	case d.Class == ClassNVMeSSD && d.Capability.SupportsNVMeFormat:
		return wipe.NewNvmeFormat(0), rationale(db, d, "NVMe Format NVM supported")
	case d.Class == ClassSATASSD && d.Capability.Frozen:
		return wipe.NewQuick(), "frozen — power-cycle required"
	case d.Class == ClassSATASSD && d.Capability.SupportsATAEnhanced:
		return wipe.NewAtaSecureErase(true), rationale(db, d, "enhanced secure erase supported")
	case d.Class == ClassSATASSD && d.Capability.SupportsATASecureErase:
		return wipe.NewAtaSecureErase(false), rationale(db, d, "secure erase supported")
	case d.Class == ClassHDD && d.Capability.SupportsATASecureErase && !d.Capability.Frozen:
		return wipe.NewAtaSecureErase(false), rationale(db, d, "secure erase supported")
	case d.Class == ClassHDD:
		return wipe.NewDoD3(), "rotating media — multi-pass software overwrite"
	default: // REMOVABLE_FLASH, UNKNOWN, and SSDs reporting no usable hardware erase
		return wipe.NewQuick(), "removable or unclassified media — single software pass"
	}
}

func rationale(db *drivedb.DB, d Device, base string) string {
	if db == nil {
		return base
	}
	if fam, ok := db.Lookup(d.Model); ok {
		return base + " (" + fam + ")"
	}
	return base
}

// SupportedMethods returns the intersection of the universal software set
// with the device's hardware capabilities, per spec §4.1, omitting
// hardware methods when the device is frozen.
func SupportedMethods(d Device) []wipe.Method {
	methods := []wipe.Method{wipe.NewQuick(), wipe.NewDoD3(), wipe.NewDoD7(), wipe.NewGutmann35()}

	if d.Capability.Frozen {
		return methods
	}

	if d.Capability.SupportsATASecureErase {
		methods = append(methods, wipe.NewAtaSecureErase(false))
	}
	if d.Capability.SupportsATAEnhanced {
		methods = append(methods, wipe.NewAtaSecureErase(true))
	}
	if d.Capability.SupportsNVMeFormat {
		methods = append(methods, wipe.NewNvmeFormat(0))
	}
	if d.Capability.SupportsNVMeSanitize {
		methods = append(methods,
			wipe.NewNvmeSanitize(wipe.NvmeSanitizeCrypto),
			wipe.NewNvmeSanitize(wipe.NvmeSanitizeBlockErase),
			wipe.NewNvmeSanitize(wipe.NvmeSanitizeOverwrite))
	}

	return methods
}
