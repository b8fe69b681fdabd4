package typemodel

type Kind uint8

const (
	KindNull Kind = iota
	KindNumeric
	KindEnum
	KindCompound
	KindArray
	KindPointer
	KindContainer
	KindOpaque
)

var kindNames = [...]string{
	KindNull:      "null",
	KindNumeric:   "numeric",
	KindEnum:      "enum",
	KindCompound:  "compound",
	KindArray:     "array",
	KindPointer:   "pointer",
	KindContainer: "container",
	KindOpaque:    "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsResizable reports whether a type of this kind may appear in an explicit
// resize request. Derived kinds get their size from what they wrap and
// pointers are platform-fixed.
func (k Kind) IsResizable() bool {
	switch k {
	case KindNumeric, KindEnum, KindCompound, KindOpaque:
		return true
	default:
		return false
	}
}

// NumericCategory distinguishes the value interpretation of a numeric type.
type NumericCategory uint8

const (
	SInt NumericCategory = iota
	UInt
	Float
)

var numericNames = [...]string{
	SInt:  "sint",
	UInt:  "uint",
	Float: "float",
}

func (c NumericCategory) String() string {
	if int(c) < len(numericNames) {
		return numericNames[c]
	}
	return "unknown"
}

// ParseNumericCategory maps the persisted category tag back to its value.
func ParseNumericCategory(s string) (NumericCategory, bool) {
	for i, n := range numericNames {
		if n == s {
			return NumericCategory(i), true
		}
	}
	return 0, false
}
