package tp

type (
	Type interface {
		Size() int
	}

	Void struct{}

	Bool struct{}

	Float struct {
		Bits int16
	}

	Ptr struct {
		X Type
	}
)

var (
	F32 = Float{Bits: 32}
	F64 = Float{Bits: 64}
)

func (x Void) Size() int { return 0 }
func (x Bool) Size() int { return 1 }

func (x Float) Size() int {
	return int(x.Bits) / 8
}

func (x Ptr) Size() int {
	return 8
}

func (x Void) String() string { return "void" }
func (x Bool) String() string { return "i1" }

func (x Float) String() string {
	if x.Bits == 64 {
		return "double"
	}

	return "float"
}

func (x Ptr) String() string {
	return "ptr"
}

// IsFloat reports whether t is a valid floating point type.
func IsFloat(t Type) bool {
	f, ok := t.(Float)

	return ok && (f.Bits == 32 || f.Bits == 64)
}
