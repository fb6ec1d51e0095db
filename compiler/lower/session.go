package lower

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/set"
	"github.com/slowlang/lower/compiler/tp"
)

type (
	Option func(*Session)

	// Session lowers one function body.
	//
	// Operations return ir.Nil on failure and record the first error.
	// Every operation given an ir.Nil operand returns ir.Nil without emitting anything,
	// so a failed leaf aborts the whole subtree.
	// Session is not safe for concurrent use and must not be used after Finish.
	Session struct {
		f *ir.Func

		cur      ir.BlockID // current insertion cursor
		prologue int        // entry-prologue cursor: next slot index in entry block

		vars     map[string]ir.Expr
		assigned set.Bits[ir.Expr]

		err error

		tr tlog.Span
	}
)

var (
	ErrInvalidOperator = errors.New("invalid operator")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrInvalidOperand  = errors.New("invalid operand")
	ErrFailed          = errors.New("lowering failed")
)

// WithFloat selects the numeric type width, 32 or 64.
func WithFloat(bits int) Option {
	return func(s *Session) {
		num := tp.Float{Bits: int16(bits)}

		if int(num.Bits) != bits || !tp.IsFloat(num) {
			s.fail(errors.Wrap(ErrInvalidOperand, "unsupported float width: %d", bits))
			return
		}

		s.f.Num = num

		if s.f.Ret != (tp.Void{}) {
			s.f.Ret = s.f.Num
		}
	}
}

// Begin starts lowering of a parameterless function.
// The function returns the numeric type if returnsNumeric is set, otherwise nothing.
func Begin(ctx context.Context, name string, returnsNumeric bool, opts ...Option) *Session {
	var ret tp.Type = tp.Void{}
	if returnsNumeric {
		ret = tp.F32
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lower: begin function", "name", name, "numeric", returnsNumeric)

	s := &Session{
		f:        ir.NewFunc(name, tp.F32, ret),
		cur:      ir.Entry,
		vars:     make(map[string]ir.Expr),
		assigned: set.MakeBits[ir.Expr](0),
		tr:       tr,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Func returns the function being built.
func (s *Session) Func() *ir.Func { return s.f }

// Cursor returns the block currently receiving instructions.
func (s *Session) Cursor() ir.BlockID { return s.cur }

// Err returns the first recorded failure.
func (s *Session) Err() error { return s.err }

// Slot returns the storage slot of a variable.
func (s *Session) Slot(name string) (ir.Expr, bool) {
	id, ok := s.vars[name]
	return id, ok
}

// Const returns a literal. It is not placed into any block.
func (s *Session) Const(v float64) ir.Expr {
	if s.f.Num.Bits == 32 {
		v = float64(float32(v))
	}

	return s.f.Alloc(ir.Imm(v), s.f.Num, "")
}

// Binary emits one of + - * / <.
// Comparison yields 1.0 or 0.0 of the numeric type and is true for NaN operands.
func (s *Session) Binary(op byte, l, r ir.Expr) ir.Expr {
	if l == ir.Nil || r == ir.Nil {
		return ir.Nil
	}

	if !s.operand(l) || !s.operand(r) {
		return ir.Nil
	}

	var x any
	var name string

	switch op {
	case '+':
		x, name = ir.Add{L: l, R: r}, "addtmp"
	case '-':
		x, name = ir.Sub{L: l, R: r}, "subtmp"
	case '*':
		x, name = ir.Mul{L: l, R: r}, "multmp"
	case '/':
		x, name = ir.Div{L: l, R: r}, "divtmp"
	case '<':
		c := s.emit(ir.Cmp{Cond: ir.CondULT, L: l, R: r}, tp.Bool{}, "cmptmp")

		return s.emit(ir.UIToFP{X: c}, s.f.Num, "booltmp")
	default:
		return s.fail(errors.Wrap(ErrInvalidOperator, "%q", op), "op", string(op))
	}

	return s.emit(x, s.f.Num, name)
}

// Assign stores v into the variable slot, allocating the slot
// in the entry block prologue on first assignment.
func (s *Session) Assign(name string, v ir.Expr) ir.Expr {
	if v == ir.Nil || !s.operand(v) {
		return ir.Nil
	}

	slot, ok := s.vars[name]
	if !ok {
		slot = s.f.Alloc(ir.Alloca{Name: name}, tp.Ptr{X: s.f.Num}, name)

		s.f.Insert(ir.Entry, s.prologue, slot)
		s.prologue++

		s.vars[name] = slot

		s.tr.V("slots").Printw("slot allocated", "name", name, "slot", slot, "block", s.cur)
	}

	s.assigned.Set(slot)

	return s.emit(ir.Store{Val: v, Slot: slot}, tp.Void{}, "")
}

// Lookup emits a fresh load of the variable.
// The variable must be assigned on every path reaching the cursor.
func (s *Session) Lookup(name string) ir.Expr {
	slot, ok := s.vars[name]
	if !ok {
		return s.fail(errors.Wrap(ErrUnknownVariable, "%v", name), "name", name)
	}

	if !s.assigned.IsSet(slot) {
		return s.fail(errors.Wrap(ErrUnknownVariable, "%v: not assigned on every path", name), "name", name)
	}

	return s.emit(ir.Load{Slot: slot}, s.f.Num, name)
}

// If lowers a conditional into then, else and merge blocks.
// then and els emit branch bodies and may be nil.
// The cursor is left at the merge block.
// It returns false without creating blocks if cond failed.
func (s *Session) If(cond ir.Expr, then, els func()) bool {
	if cond == ir.Nil || !s.operand(cond) {
		return false
	}

	f := s.f

	c := s.emit(ir.Cmp{Cond: ir.CondUNE, L: cond, R: s.Const(0)}, tp.Bool{}, "ifcond")

	thenB := f.NewBlock("then")
	elseB := f.NewBlock("else")
	merge := f.NewBlock("ifcont")

	f.Attach(thenB)

	s.emit(ir.BCond{Expr: c, Then: thenB, Else: elseB}, tp.Void{}, "")

	before := s.assigned.Copy()

	s.cur = thenB
	s.body(then)
	s.emit(ir.B{Block: merge}, tp.Void{}, "")

	afterThen := s.assigned
	s.assigned = before

	f.Attach(elseB)

	s.cur = elseB
	s.body(els)
	s.emit(ir.B{Block: merge}, tp.Void{}, "")

	s.assigned.And(afterThen)

	f.Attach(merge)

	s.cur = merge

	s.tr.V("blocks").Printw("if lowered", "then", thenB, "else", elseB, "merge", merge)

	return true
}

// Finish terminates the current block with a return of v and verifies the function.
// Nothing is returned if v or any earlier operation failed.
func (s *Session) Finish(v ir.Expr) (*ir.Func, error) {
	switch {
	case v == ir.Nil && s.err == nil:
		s.err = ErrFailed
	case v != ir.Nil:
		s.operand(v)
	}

	return s.finish(v)
}

// FinishVoid is Finish for functions returning nothing.
func (s *Session) FinishVoid() (*ir.Func, error) {
	return s.finish(ir.Nil)
}

func (s *Session) finish(v ir.Expr) (f *ir.Func, err error) {
	defer s.tr.Finish("err", &err)

	f, s.f = s.f, nil

	if s.err != nil {
		return nil, errors.Wrap(s.err, "func %v", f.Name)
	}

	f.Append(s.cur, f.Alloc(ir.Ret{Expr: v}, tp.Void{}, ""))

	err = ir.Verify(f)
	if err != nil {
		s.tr.Printw("verify function", "name", f.Name, "err", err)

		return nil, err
	}

	return f, nil
}

func (s *Session) body(f func()) {
	if f != nil {
		f()
	}
}

func (s *Session) emit(x any, t tp.Type, name string) ir.Expr {
	id := s.f.Alloc(x, t, name)
	s.f.Append(s.cur, id)

	return id
}

func (s *Session) operand(x ir.Expr) bool {
	if s.f.Valid(x) && s.f.EType[x] == tp.Type(s.f.Num) {
		return true
	}

	s.fail(errors.Wrap(ErrInvalidOperand, "value %d is not a number of this function", x), "value", x)

	return false
}

func (s *Session) fail(err error, kvs ...any) ir.Expr {
	s.tr.Printw("lowering failed", append([]any{"err", err, "from", loc.Caller(1)}, kvs...)...)

	if s.err == nil {
		s.err = err
	}

	return ir.Nil
}
