package ir

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"

	"github.com/slowlang/lower/compiler/set"
	"github.com/slowlang/lower/compiler/tp"
)

type (
	verifier struct {
		*Func

		pos   map[BlockID]int
		preds map[BlockID][]BlockID
		dom   map[BlockID]set.Bits[BlockID]
	}

	visit struct {
		b   BlockID
		pos int
	}
)

var ErrIllFormed = errors.New("ill-formed function")

// Verify checks structural well-formedness of a finished function.
// The returned error wraps ErrIllFormed and names the violated invariant.
func Verify(f *Func) (err error) {
	v := &verifier{Func: f}

	for _, check := range []func() error{
		v.layout,
		v.terminators,
		v.entry,
		v.reachable,
		v.slots,
		v.operands,
	} {
		err = check()
		if err != nil {
			return err
		}
	}

	return nil
}

func (v *verifier) illFormed(f string, args ...any) error {
	args = append([]any{v.Name}, args...)

	return errors.Wrap(ErrIllFormed, "func %v: "+f, args...)
}

func (v *verifier) layout() error {
	if len(v.Layout) == 0 || v.Layout[0] != Entry {
		return v.illFormed("entry block is not first")
	}

	v.pos = make(map[BlockID]int, len(v.Layout))

	for i, b := range v.Layout {
		if _, ok := v.pos[b]; ok {
			return v.illFormed("block %v: appears twice", v.BlockName(b))
		}

		v.pos[b] = i
	}

	for b := range v.Blocks {
		if _, ok := v.pos[BlockID(b)]; !ok {
			return v.illFormed("block %v: not attached", v.BlockName(BlockID(b)))
		}
	}

	for id, b := range v.Where {
		if b == NoBlock {
			continue
		}

		n := 0

		for _, x := range v.Blocks[b].Code {
			if x == Expr(id) {
				n++
			}
		}

		if n != 1 {
			return v.illFormed("block %v: instruction %d placed %d times", v.BlockName(b), id, n)
		}
	}

	return nil
}

func (v *verifier) terminators() error {
	for _, b := range v.Layout {
		code := v.Blocks[b].Code

		if len(code) == 0 {
			return v.illFormed("block %v: empty", v.BlockName(b))
		}

		for i, id := range code {
			x := v.Exprs[id]
			last := i == len(code)-1

			if IsTerm(x) != last {
				if last {
					return v.illFormed("block %v: no terminator", v.BlockName(b))
				}

				return v.illFormed("block %v: terminator %d is not last", v.BlockName(b), id)
			}

			for _, s := range Succs(x) {
				if s < 0 || int(s) >= len(v.Blocks) {
					return v.illFormed("block %v: branch to unknown block %d", v.BlockName(b), s)
				}
			}
		}
	}

	v.preds = v.Preds()

	return nil
}

func (v *verifier) entry() error {
	if p := v.preds[Entry]; len(p) != 0 {
		return v.illFormed("entry block has predecessor %v", v.BlockName(p[0]))
	}

	return nil
}

func (v *verifier) reachable() error {
	q := heap.Heap[visit]{Less: func(d []visit, i, j int) bool {
		return d[i].pos < d[j].pos
	}}

	seen := set.MakeBits[BlockID](len(v.Blocks))

	seen.Set(Entry)
	q.Push(visit{b: Entry})

	for q.Len() != 0 {
		x := q.Pop()

		term, _ := v.Term(x.b)

		for _, s := range Succs(v.Exprs[term]) {
			if seen.IsSet(s) {
				continue
			}

			seen.Set(s)
			q.Push(visit{b: s, pos: v.pos[s]})
		}
	}

	for _, b := range v.Layout {
		if !seen.IsSet(b) {
			return v.illFormed("block %v: unreachable from entry", v.BlockName(b))
		}
	}

	v.dominators()

	return nil
}

// dominators is the iterative data-flow solution over block layout order.
func (v *verifier) dominators() {
	all := set.MakeBits[BlockID](len(v.Blocks))
	all.Fill(len(v.Blocks))

	v.dom = make(map[BlockID]set.Bits[BlockID], len(v.Layout))

	for _, b := range v.Layout {
		if b == Entry {
			d := set.MakeBits[BlockID](len(v.Blocks))
			d.Set(Entry)

			v.dom[b] = d

			continue
		}

		v.dom[b] = all.Copy()
	}

	for changed := true; changed; {
		changed = false

		for _, b := range v.Layout[1:] {
			d := all.Copy()

			for _, p := range v.preds[b] {
				d.And(v.dom[p])
			}

			d.Set(b)

			if !d.Equal(v.dom[b]) {
				v.dom[b] = d
				changed = true
			}
		}
	}
}

func (v *verifier) slots() error {
	prologue := true

	for _, id := range v.Blocks[Entry].Code {
		_, ok := v.Exprs[id].(Alloca)

		switch {
		case ok && !prologue:
			return v.illFormed("slot %v: allocated after entry prologue", v.Names[id])
		case !ok:
			prologue = false
		}
	}

	for _, b := range v.Layout {
		for _, id := range v.Blocks[b].Code {
			var slot Expr

			switch x := v.Exprs[id].(type) {
			case Alloca:
				if b != Entry {
					return v.illFormed("block %v: slot %v allocated outside entry block", v.BlockName(b), x.Name)
				}

				continue
			case Load:
				slot = x.Slot
			case Store:
				slot = x.Slot
			default:
				continue
			}

			if !v.Valid(slot) {
				return v.illFormed("block %v: instruction %d: unknown slot %d", v.BlockName(b), id, slot)
			}

			if _, ok := v.Exprs[slot].(Alloca); !ok || v.Where[slot] != Entry {
				return v.illFormed("block %v: instruction %d: slot %d is not allocated in entry block", v.BlockName(b), id, slot)
			}
		}
	}

	return nil
}

func (v *verifier) operands() error {
	for _, b := range v.Layout {
		for i, id := range v.Blocks[b].Code {
			x := v.Exprs[id]

			in, ok := x.(Instr)
			if !ok {
				return v.illFormed("block %v: unsupported instruction %T", v.BlockName(b), x)
			}

			for _, op := range in.In() {
				err := v.dominates(b, i, op)
				if err != nil {
					return v.illFormed("block %v: instruction %d: %v", v.BlockName(b), id, err)
				}
			}

			err := v.types(x)
			if err != nil {
				return v.illFormed("block %v: instruction %d: %v", v.BlockName(b), id, err)
			}
		}
	}

	return nil
}

func (v *verifier) dominates(b BlockID, i int, op Expr) error {
	if !v.Valid(op) {
		return errors.New("operand %d is not a value of this function", op)
	}

	def := v.Where[op]

	if def == NoBlock {
		if _, ok := v.Exprs[op].(Imm); !ok {
			return errors.New("operand %d is not placed", op)
		}

		return nil
	}

	if def == b {
		for _, id := range v.Blocks[b].Code[:i] {
			if id == op {
				return nil
			}
		}

		return errors.New("operand %d used before definition", op)
	}

	if !v.dom[b].IsSet(def) {
		return errors.New("operand %d defined in %v does not dominate use", op, v.BlockName(def))
	}

	return nil
}

func (v *verifier) types(x any) error {
	num := tp.Type(v.Num)
	slot := tp.Type(tp.Ptr{X: v.Num})

	want := func(id Expr, t tp.Type) error {
		if got := v.EType[id]; got != t {
			return errors.New("operand %d: type %v, expected %v", id, got, t)
		}

		return nil
	}

	var err error

	switch x := x.(type) {
	case Add:
		err = pair(want, x.L, x.R, num)
	case Sub:
		err = pair(want, x.L, x.R, num)
	case Mul:
		err = pair(want, x.L, x.R, num)
	case Div:
		err = pair(want, x.L, x.R, num)
	case Cmp:
		err = pair(want, x.L, x.R, num)
	case UIToFP:
		err = want(x.X, tp.Bool{})
	case Load:
		err = want(x.Slot, slot)
	case Store:
		err = pair(want, x.Val, x.Slot, num, slot)
	case BCond:
		err = want(x.Expr, tp.Bool{})
	case Ret:
		if x.Expr == Nil {
			if v.Ret != (tp.Void{}) {
				err = errors.New("void return from %v function", v.Ret)
			}

			break
		}

		err = want(x.Expr, v.Ret)
	}

	return err
}

func pair(want func(Expr, tp.Type) error, l, r Expr, t ...tp.Type) error {
	lt, rt := t[0], t[0]
	if len(t) > 1 {
		rt = t[1]
	}

	if err := want(l, lt); err != nil {
		return err
	}

	return want(r, rt)
}
