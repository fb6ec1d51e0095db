package format

import (
	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/lower/compiler/ir"
)

// Package appends a text dump of every function of p.
func Package(b []byte, p *ir.Package) (_ []byte, err error) {
	b = hfmt.Appendf(b, "package %s\n", p.Name)

	for _, f := range p.Funcs {
		b = append(b, '\n')

		b, err = Func(b, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func Func(b []byte, f *ir.Func) (_ []byte, err error) {
	b = hfmt.Appendf(b, "func %s() %v {\n", f.Name, f.Ret)

	for i, blk := range f.Layout {
		if i != 0 {
			b = append(b, '\n')
		}

		b = hfmt.Appendf(b, "%s:\n", f.BlockName(blk))

		for _, id := range f.Blocks[blk].Code {
			b, err = instr(b, f, id)
			if err != nil {
				return nil, errors.Wrap(err, "block %v", f.BlockName(blk))
			}
		}
	}

	b = append(b, "}\n"...)

	return b, nil
}

func instr(b []byte, f *ir.Func, id ir.Expr) ([]byte, error) {
	b = append(b, '\t')

	if t := f.EType[id]; t != nil && t.Size() != 0 {
		b = hfmt.Appendf(b, "%s = ", name(f, id))
	}

	switch x := f.Exprs[id].(type) {
	case ir.Alloca:
		b = hfmt.Appendf(b, "alloca %v", f.Num)
	case ir.Load:
		b = hfmt.Appendf(b, "load %v", operand(f, x.Slot))
	case ir.Store:
		b = hfmt.Appendf(b, "store %v, %v", operand(f, x.Val), operand(f, x.Slot))
	case ir.Add:
		b = binary(b, f, "fadd", x.L, x.R)
	case ir.Sub:
		b = binary(b, f, "fsub", x.L, x.R)
	case ir.Mul:
		b = binary(b, f, "fmul", x.L, x.R)
	case ir.Div:
		b = binary(b, f, "fdiv", x.L, x.R)
	case ir.Cmp:
		b = binary(b, f, "fcmp "+string(x.Cond), x.L, x.R)
	case ir.UIToFP:
		b = hfmt.Appendf(b, "uitofp %v to %v", operand(f, x.X), f.Num)
	case ir.B:
		b = hfmt.Appendf(b, "br %s", f.BlockName(x.Block))
	case ir.BCond:
		b = hfmt.Appendf(b, "br %v, %s, %s", operand(f, x.Expr), f.BlockName(x.Then), f.BlockName(x.Else))
	case ir.Ret:
		if x.Expr == ir.Nil {
			b = append(b, "ret void"...)
		} else {
			b = hfmt.Appendf(b, "ret %v", operand(f, x.Expr))
		}
	default:
		return nil, errors.New("unsupported instruction: %T", x)
	}

	b = append(b, '\n')

	return b, nil
}

func binary(b []byte, f *ir.Func, op string, l, r ir.Expr) []byte {
	return hfmt.Appendf(b, "%s %v, %v", op, operand(f, l), operand(f, r))
}

func operand(f *ir.Func, id ir.Expr) string {
	if !f.Valid(id) {
		return "<nil>"
	}

	if x, ok := f.Exprs[id].(ir.Imm); ok {
		return string(hfmt.Appendf(nil, "%v", float64(x)))
	}

	return name(f, id)
}

func name(f *ir.Func, id ir.Expr) string {
	if n := f.Names[id]; n != "" {
		return string(hfmt.Appendf(nil, "%%%s.%d", n, int(id)))
	}

	return string(hfmt.Appendf(nil, "%%%d", int(id)))
}
