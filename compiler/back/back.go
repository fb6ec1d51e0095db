package back

import (
	"context"
	"strconv"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/tp"
)

type (
	Compiler struct{}

	funContext struct {
		*ir.Func

		num    *types.FloatType
		blocks map[ir.BlockID]*llir.Block
		vals   []value.Value

		used map[string]bool
	}
)

func New() *Compiler { return &Compiler{} }

// CompilePackage translates verified functions into an LLVM IR module.
func (c *Compiler) CompilePackage(ctx context.Context, p *ir.Package) (m *llir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile package", "name", p.Name)
	defer tr.Finish("err", &err)

	m = llir.NewModule()
	m.SourceFilename = p.Name

	for _, f := range p.Funcs {
		err = c.compileFunc(ctx, m, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return m, nil
}

func (c *Compiler) compileFunc(ctx context.Context, m *llir.Module, f *ir.Func) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", f.Name, "blocks", len(f.Layout))
	defer tr.Finish("err", &err)

	fc := &funContext{
		Func:   f,
		num:    floatType(f.Num),
		blocks: make(map[ir.BlockID]*llir.Block, len(f.Layout)),
		vals:   make([]value.Value, len(f.Exprs)),
		used:   make(map[string]bool),
	}

	var ret types.Type = types.Void
	if f.Ret != (tp.Void{}) {
		ret = fc.num
	}

	lf := m.NewFunc(f.Name, ret)

	for _, b := range f.Layout {
		fc.blocks[b] = lf.NewBlock(fc.local(f.Blocks[b].Name))
	}

	for _, b := range f.Layout {
		lb := fc.blocks[b]

		for _, id := range f.Blocks[b].Code {
			err = fc.instr(lb, id)
			if err != nil {
				return errors.Wrap(err, "block %v", f.BlockName(b))
			}
		}

		if tr.If("dump_llvm_block") {
			tr.Printw("block", "name", lb.Name(), "insts", len(lb.Insts))
		}
	}

	return nil
}

func (fc *funContext) instr(lb *llir.Block, id ir.Expr) (err error) {
	var v value.Value

	switch x := fc.Exprs[id].(type) {
	case ir.Alloca:
		v = lb.NewAlloca(fc.num)
	case ir.Load:
		v, err = binop(fc, x.Slot, x.Slot, func(s, _ value.Value) value.Value { return lb.NewLoad(fc.num, s) })
	case ir.Store:
		_, err = binop(fc, x.Val, x.Slot, func(v, s value.Value) value.Value {
			lb.NewStore(v, s)
			return nil
		})
	case ir.Add:
		v, err = binop(fc, x.L, x.R, func(l, r value.Value) value.Value { return lb.NewFAdd(l, r) })
	case ir.Sub:
		v, err = binop(fc, x.L, x.R, func(l, r value.Value) value.Value { return lb.NewFSub(l, r) })
	case ir.Mul:
		v, err = binop(fc, x.L, x.R, func(l, r value.Value) value.Value { return lb.NewFMul(l, r) })
	case ir.Div:
		v, err = binop(fc, x.L, x.R, func(l, r value.Value) value.Value { return lb.NewFDiv(l, r) })
	case ir.Cmp:
		pred, ok := fpred[x.Cond]
		if !ok {
			return errors.New("unsupported condition: %v", x.Cond)
		}

		v, err = binop(fc, x.L, x.R, func(l, r value.Value) value.Value { return lb.NewFCmp(pred, l, r) })
	case ir.UIToFP:
		v, err = binop(fc, x.X, x.X, func(b, _ value.Value) value.Value { return lb.NewUIToFP(b, fc.num) })
	case ir.B:
		lb.NewBr(fc.blocks[x.Block])
	case ir.BCond:
		_, err = binop(fc, x.Expr, x.Expr, func(c, _ value.Value) value.Value {
			lb.NewCondBr(c, fc.blocks[x.Then], fc.blocks[x.Else])
			return nil
		})
	case ir.Ret:
		if x.Expr == ir.Nil {
			lb.NewRet(nil)
			break
		}

		_, err = binop(fc, x.Expr, x.Expr, func(r, _ value.Value) value.Value {
			lb.NewRet(r)
			return nil
		})
	default:
		return errors.New("unsupported instruction: %T", x)
	}

	if err != nil {
		return errors.Wrap(err, "instruction %d", id)
	}

	if v == nil {
		return nil
	}

	if n, ok := v.(value.Named); ok && fc.Names[id] != "" {
		n.SetName(fc.local(fc.Names[id]))
	}

	fc.vals[id] = v

	return nil
}

func binop(fc *funContext, l, r ir.Expr, f func(l, r value.Value) value.Value) (value.Value, error) {
	lv, err := fc.value(l)
	if err != nil {
		return nil, err
	}

	rv, err := fc.value(r)
	if err != nil {
		return nil, err
	}

	return f(lv, rv), nil
}

func (fc *funContext) value(id ir.Expr) (value.Value, error) {
	if !fc.Valid(id) {
		return nil, errors.New("operand %d out of range", id)
	}

	if x, ok := fc.Exprs[id].(ir.Imm); ok {
		return constant.NewFloat(fc.num, float64(x)), nil
	}

	if v := fc.vals[id]; v != nil {
		return v, nil
	}

	return nil, errors.New("operand %d used before translated", id)
}

// local makes a function-unique local name; blocks and values share one namespace.
// All-digit names would read back as numbered locals, so they get a prefix.
func (fc *funContext) local(name string) string {
	if numeric(name) {
		name = "v" + name
	}

	n := name

	for i := 1; fc.used[n]; i++ {
		n = name + strconv.Itoa(i)
	}

	fc.used[n] = true

	return n
}

func numeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return s != ""
}

var fpred = map[ir.Cond]enum.FPred{
	ir.CondULT: enum.FPredULT,
	ir.CondUNE: enum.FPredUNE,
}

func floatType(t tp.Float) *types.FloatType {
	if t.Bits == 64 {
		return types.Double
	}

	return types.Float
}
