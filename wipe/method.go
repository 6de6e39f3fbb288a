// Package wipe implements the Pattern Writer (C3) and Hardware Sanitize
// Dispatcher (C4), plus the progress/cancellation/result protocol shared
// between a wipe worker and its controller.
package wipe

// NvmeSanitizeAction selects the NVMe Sanitize command's action field.
type NvmeSanitizeAction int

const (
	NvmeSanitizeCrypto NvmeSanitizeAction = iota
	NvmeSanitizeBlockErase
	NvmeSanitizeOverwrite
)

// MethodKind discriminates the Method tagged union.
type MethodKind int

const (
	MethodQuick MethodKind = iota
	MethodDoD3
	MethodDoD7
	MethodGutmann35
	MethodAtaSecureErase
	MethodNvmeFormat
	MethodNvmeSanitize
)

// Method is a named erasure policy: either a software PassPlan or a
// hardware dispatch, per spec §3 WipeMethod.
type Method struct {
	Kind MethodKind

	// AtaSecureErase
	Enhanced bool

	// NvmeFormat
	LBAFormat uint8

	// NvmeSanitize
	SanitizeAction NvmeSanitizeAction
}

func NewQuick() Method                       { return Method{Kind: MethodQuick} }
func NewDoD3() Method                        { return Method{Kind: MethodDoD3} }
func NewDoD7() Method                        { return Method{Kind: MethodDoD7} }
func NewGutmann35() Method                   { return Method{Kind: MethodGutmann35} }
func NewAtaSecureErase(enhanced bool) Method { return Method{Kind: MethodAtaSecureErase, Enhanced: enhanced} }
func NewNvmeFormat(lbaFormat uint8) Method {
	return Method{Kind: MethodNvmeFormat, LBAFormat: lbaFormat}
}
func NewNvmeSanitize(action NvmeSanitizeAction) Method {
	return Method{Kind: MethodNvmeSanitize, SanitizeAction: action}
}

// IsHardware reports whether Method dispatches to hardware rather than
// running a software PassPlan.
func (m Method) IsHardware() bool {
	switch m.Kind {
	case MethodAtaSecureErase, MethodNvmeFormat, MethodNvmeSanitize:
		return true
	default:
		return false
	}
}

// CanonicalName returns the exact persisted method name from spec §6.
func (m Method) CanonicalName() string {
	switch m.Kind {
	case MethodQuick:
		return "Quick Wipe (1-Pass Zeros)"
	case MethodDoD3:
		return "DoD 3-Pass"
	case MethodDoD7:
		return "DoD 7-Pass"
	case MethodGutmann35:
		return "Gutmann 35-Pass"
	case MethodAtaSecureErase:
		if m.Enhanced {
			return "ATA Enhanced Secure Erase"
		}
		return "ATA Secure Erase"
	case MethodNvmeFormat:
		return "NVMe Format NVM"
	case MethodNvmeSanitize:
		switch m.SanitizeAction {
		case NvmeSanitizeBlockErase:
			return "NVMe Sanitize (Block Erase)"
		case NvmeSanitizeOverwrite:
			return "NVMe Sanitize (Overwrite)"
		default:
			return "NVMe Sanitize (Crypto Erase)"
		}
	default:
		return "Unknown"
	}
}
