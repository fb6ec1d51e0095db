package ir

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/lower/compiler/tp"
)

type (
	Expr    int
	BlockID int
	Cond    string

	Package struct {
		Name string

		Funcs []*Func
	}

	Func struct {
		Name string

		Num tp.Float
		Ret tp.Type

		Exprs []any
		EType []tp.Type
		Names []string
		Where []BlockID

		Blocks []Block
		Layout []BlockID
	}

	Block struct {
		Name string
		Code []Expr

		attached bool
	}

	Instr interface {
		In() []Expr
	}

	Imm float64

	Alloca struct {
		Name string
	}

	Load struct {
		Slot Expr
	}

	Store struct {
		Val  Expr
		Slot Expr
	}

	Add struct {
		L, R Expr
	}

	Sub struct {
		L, R Expr
	}

	Mul struct {
		L, R Expr
	}

	Div struct {
		L, R Expr
	}

	Cmp struct {
		Cond Cond
		L, R Expr
	}

	UIToFP struct {
		X Expr
	}

	B struct {
		Block BlockID
	}

	BCond struct {
		Expr Expr
		Then BlockID
		Else BlockID
	}

	Ret struct {
		Expr Expr
	}
)

const (
	Nil     Expr    = -1
	NoBlock BlockID = -1

	Entry BlockID = 0
)

// Unordered comparisons are true when either operand is NaN.
const (
	CondULT Cond = "ult"
	CondUNE Cond = "une"
)

func (x Imm) In() []Expr    { return nil }
func (x Alloca) In() []Expr { return nil }
func (x Load) In() []Expr   { return []Expr{x.Slot} }
func (x Store) In() []Expr  { return []Expr{x.Val, x.Slot} }
func (x Add) In() []Expr    { return []Expr{x.L, x.R} }
func (x Sub) In() []Expr    { return []Expr{x.L, x.R} }
func (x Mul) In() []Expr    { return []Expr{x.L, x.R} }
func (x Div) In() []Expr    { return []Expr{x.L, x.R} }
func (x Cmp) In() []Expr    { return []Expr{x.L, x.R} }
func (x UIToFP) In() []Expr { return []Expr{x.X} }
func (x B) In() []Expr      { return nil }
func (x BCond) In() []Expr  { return []Expr{x.Expr} }

func (x Ret) In() []Expr {
	if x.Expr == Nil {
		return nil
	}

	return []Expr{x.Expr}
}

// IsTerm reports whether x ends a basic block.
func IsTerm(x any) bool {
	switch x.(type) {
	case B, BCond, Ret:
		return true
	}

	return false
}

// Succs returns the blocks a terminator transfers control to.
func Succs(x any) []BlockID {
	switch x := x.(type) {
	case B:
		return []BlockID{x.Block}
	case BCond:
		return []BlockID{x.Then, x.Else}
	}

	return nil
}

func (x Expr) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if x == Nil {
		return e.AppendNil(b)
	}

	return e.AppendFormat(b, "%%%d", int(x))
}

func (x BlockID) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if x == NoBlock {
		return e.AppendNil(b)
	}

	return e.AppendFormat(b, "block%d", int(x))
}
