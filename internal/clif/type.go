package clif

// Type is a CLIF value type. Per spec §3.1, CLIF only carries machine-register-sized
// scalars; aggregates (strings, slices) are decomposed before lowering (§4.3.1).
type Type byte

const (
	TypeInvalid Type = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
)

// Size returns the size in bytes of a value of this type.
func (t Type) Size() int64 {
	switch t {
	case TypeI8:
		return 1
	case TypeI16:
		return 2
	case TypeI32, TypeF32:
		return 4
	case TypeI64, TypeF64:
		return 8
	default:
		panic("invalid type")
	}
}

// IsInt reports whether t is an integer type.
func (t Type) IsInt() bool { return t == TypeI8 || t == TypeI16 || t == TypeI32 || t == TypeI64 }

// IsFloat reports whether t is a floating-point type.
func (t Type) IsFloat() bool { return t == TypeF32 || t == TypeF64 }

func (t Type) String() string {
	switch t {
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		return "invalid"
	}
}

// CallConv identifies a calling convention tag carried by a Signature (§3.1).
type CallConv byte

const (
	CallConvSystemV CallConv = iota
	CallConvAAPCS64
)

func (c CallConv) String() string {
	if c == CallConvAAPCS64 {
		return "aapcs64"
	}
	return "system-v"
}

// ABIParam describes one parameter or return value slot in a Signature.
type ABIParam struct {
	Type Type
}

// Signature is a calling-convention tag plus ordered parameter/return descriptors (§3.1).
type Signature struct {
	ID         SignatureID
	CallConv   CallConv
	Params     []ABIParam
	Results    []ABIParam
	used       bool
	Name       string
	// External marks a signature that refers to a function outside this object
	// (e.g. a libc symbol resolved by the linker at load time, per §6.2/§4.10).
	External bool
}

// SignatureID uniquely identifies a Signature within a Function's signature pool.
type SignatureID uint32

// FuncRefID uniquely identifies an imported external function reference (§4.1).
type FuncRefID uint32

// FuncRef is an imported reference to a function, either defined elsewhere in this
// object ("colocated", which permits a shorter relocation per §4.10) or truly external.
type FuncRef struct {
	ID        FuncRefID
	Name      string
	Signature SignatureID
	Colocated bool
}
