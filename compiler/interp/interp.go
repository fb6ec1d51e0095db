package interp

import (
	"context"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/set"
)

type (
	machine struct {
		*ir.Func

		vals   []float64
		slots  map[ir.Expr]float64
		stored set.Bits[ir.Expr]
	}
)

var (
	ErrUninitialized = errors.New("load of uninitialized slot")
	ErrStepLimit     = errors.New("step limit exceeded")
)

// MaxSteps bounds the number of executed instructions.
var MaxSteps = 1 << 20

// Run evaluates a verified function. Void functions return 0.
// Booleans are 0 or 1, values of 32-bit functions are rounded through float32.
func Run(ctx context.Context, f *ir.Func) (res float64, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "interp: run", "name", f.Name)
	defer tr.Finish("res", &res, "err", &err)

	m := &machine{
		Func:   f,
		vals:   make([]float64, len(f.Exprs)),
		slots:  make(map[ir.Expr]float64),
		stored: set.MakeBits[ir.Expr](len(f.Exprs)),
	}

	for id, x := range f.Exprs {
		if v, ok := x.(ir.Imm); ok {
			m.vals[id] = float64(v)
		}
	}

	b := ir.Entry
	steps := 0

	for {
		var next ir.BlockID = ir.NoBlock

		for _, id := range f.Blocks[b].Code {
			steps++
			if steps > MaxSteps {
				return 0, ErrStepLimit
			}

			switch x := f.Exprs[id].(type) {
			case ir.Alloca:
			case ir.Store:
				m.slots[x.Slot] = m.vals[x.Val]
				m.stored.Set(x.Slot)
			case ir.Load:
				if !m.stored.IsSet(x.Slot) {
					return 0, errors.Wrap(ErrUninitialized, "%v", f.Names[x.Slot])
				}

				m.vals[id] = m.slots[x.Slot]
			case ir.Add:
				m.vals[id] = m.round(m.vals[x.L] + m.vals[x.R])
			case ir.Sub:
				m.vals[id] = m.round(m.vals[x.L] - m.vals[x.R])
			case ir.Mul:
				m.vals[id] = m.round(m.vals[x.L] * m.vals[x.R])
			case ir.Div:
				m.vals[id] = m.round(m.vals[x.L] / m.vals[x.R])
			case ir.Cmp:
				m.vals[id] = boolean(compare(x.Cond, m.vals[x.L], m.vals[x.R]))
			case ir.UIToFP:
				m.vals[id] = m.vals[x.X]
			case ir.B:
				next = x.Block
			case ir.BCond:
				next = x.Else
				if m.vals[x.Expr] != 0 {
					next = x.Then
				}
			case ir.Ret:
				if x.Expr == ir.Nil {
					return 0, nil
				}

				return m.vals[x.Expr], nil
			default:
				return 0, errors.New("unsupported instruction: %T", x)
			}
		}

		if next == ir.NoBlock {
			return 0, errors.New("block %v: fell through", f.BlockName(b))
		}

		tr.V("interp_branch").Printw("branch", "from", b, "to", next)

		b = next
	}
}

func (m *machine) round(v float64) float64 {
	if m.Num.Bits == 32 {
		return float64(float32(v))
	}

	return v
}

func compare(c ir.Cond, l, r float64) bool {
	unordered := math.IsNaN(l) || math.IsNaN(r)

	switch c {
	case ir.CondULT:
		return unordered || l < r
	case ir.CondUNE:
		return unordered || l != r
	}

	panic(c)
}

func boolean(x bool) float64 {
	if x {
		return 1
	}

	return 0
}
