package lower

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lower/compiler/ast"
	"github.com/slowlang/lower/compiler/demo"
	"github.com/slowlang/lower/compiler/interp"
	"github.com/slowlang/lower/compiler/ir"
)

func TestBranchScenario(t *testing.T) {
	ctx := context.Background()

	f, err := Func(ctx, demo.Branch())
	require.NoError(t, err)

	assert.Len(t, f.Slots(), 3)

	var names []string
	for _, b := range f.Layout {
		names = append(names, f.BlockName(b))
	}

	assert.Equal(t, []string{"entry", "then", "else", "ifcont"}, names)

	for _, id := range f.Slots() {
		assert.Equal(t, ir.Entry, f.Where[id])
	}

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res)
}

func TestArith(t *testing.T) {
	ctx := context.Background()

	f, err := Func(ctx, demo.Arith())
	require.NoError(t, err)

	assert.Len(t, f.Layout, 1)
	assert.Empty(t, f.Slots())

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 16.0, res)
}

func TestLoadAfterStore(t *testing.T) {
	ctx := context.Background()

	for _, v := range []float64{0, 1, -2.5, 1e10, 0.125} {
		s := Begin(ctx, "f", true)

		s.Assign("x", s.Binary('+', s.Const(v), s.Const(0)))

		f, err := s.Finish(s.Lookup("x"))
		require.NoError(t, err)

		res, err := interp.Run(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, float64(float32(v)), res, "value %v", v)
	}
}

func TestSlotReused(t *testing.T) {
	ctx := context.Background()
	s := Begin(ctx, "f", true)

	s.Assign("x", s.Const(1))
	first, ok := s.Slot("x")
	require.True(t, ok)

	s.Assign("x", s.Const(2))
	second, _ := s.Slot("x")

	assert.Equal(t, first, second)

	f, err := s.Finish(s.Lookup("x"))
	require.NoError(t, err)
	assert.Len(t, f.Slots(), 1)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res)
}

func TestLookupEmitsFreshLoad(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	s.Assign("x", s.Const(3))

	a := s.Lookup("x")
	b := s.Lookup("x")

	assert.NotEqual(t, a, b)

	n := 0
	for _, id := range s.Func().Blocks[ir.Entry].Code {
		if _, ok := s.Func().Exprs[id].(ir.Load); ok {
			n++
		}
	}

	assert.Equal(t, 2, n)
}

func TestIfTruthiness(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		cond float64
		want float64
	}{
		{cond: 0, want: 20},
		{cond: 1, want: 10},
		{cond: -1, want: 10},
		{cond: 0.5, want: 10},
		{cond: 1e30, want: 10},
		{cond: math.Inf(-1), want: 10},
		{cond: math.NaN(), want: 10},
	} {
		s := Begin(ctx, "f", true)

		ok := s.If(s.Binary('+', s.Const(tc.cond), s.Const(0)), func() {
			s.Assign("c", s.Const(10))
		}, func() {
			s.Assign("c", s.Const(20))
		})
		require.True(t, ok)

		f, err := s.Finish(s.Lookup("c"))
		require.NoError(t, err)

		res, err := interp.Run(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res, "cond %v", tc.cond)
	}
}

func TestNestedIf(t *testing.T) {
	ctx := context.Background()

	x := &ast.Func{
		Name: "nested",
		Body: []ast.Node{
			ast.Assign{Name: "x", X: ast.Num(1)},
			ast.If{
				Cond: ast.Var("x"),
				Then: []ast.Node{
					ast.If{
						Cond: ast.Binary{Op: '<', L: ast.Var("x"), R: ast.Num(0)},
						Then: []ast.Node{ast.Assign{Name: "y", X: ast.Num(1)}},
						Else: []ast.Node{ast.Assign{Name: "y", X: ast.Num(2)}},
					},
				},
				Else: []ast.Node{ast.Assign{Name: "y", X: ast.Num(3)}},
			},
		},
		Ret: ast.Var("y"),
	}

	f, err := Func(ctx, x)
	require.NoError(t, err)

	assert.Len(t, f.Layout, 7)
	assert.Len(t, f.Slots(), 2)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res)
}

func TestSlotAllocatedInEntryFromBranch(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	s.Assign("a", s.Const(1))

	s.If(s.Lookup("a"), func() {
		s.Assign("t", s.Const(5))
		assert.NotEqual(t, ir.Entry, s.Cursor())
	}, nil)

	slot, ok := s.Slot("t")
	require.True(t, ok)

	f := s.Func()
	assert.Equal(t, ir.Entry, f.Where[slot])
	assert.Equal(t, slot, f.Blocks[ir.Entry].Code[1], "slots form the entry prologue")

	_, err := s.Finish(s.Const(0))
	require.NoError(t, err)
}

func TestInvalidOperator(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	l, r := s.Const(1), s.Const(2)

	sizes := func() (l []int) {
		for _, b := range s.Func().Blocks {
			l = append(l, len(b.Code))
		}

		return l
	}

	before := sizes()
	exprs := len(s.Func().Exprs)

	for _, op := range []byte{'%', '^', '>', 0} {
		assert.Equal(t, ir.Nil, s.Binary(op, l, r))
	}

	assert.Equal(t, before, sizes())
	assert.Equal(t, exprs, len(s.Func().Exprs))
	assert.ErrorIs(t, s.Err(), ErrInvalidOperator)

	_, err := s.Finish(s.Const(0))
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestFailurePropagates(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	bad := s.Lookup("nope")
	assert.Equal(t, ir.Nil, bad)
	assert.ErrorIs(t, s.Err(), ErrUnknownVariable)

	exprs := len(s.Func().Exprs)

	x := s.Binary('+', s.Binary('*', bad, s.Const(2)), s.Const(1))
	assert.Equal(t, ir.Nil, x)
	assert.Equal(t, ir.Nil, s.Assign("y", x))

	_, ok := s.Slot("y")
	assert.False(t, ok)

	assert.Equal(t, exprs+2, len(s.Func().Exprs), "only the two constants are allocated")

	_, err := s.Finish(x)
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestIfConditionFailure(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	called := false

	ok := s.If(s.Lookup("nope"), func() { called = true }, func() { called = true })
	assert.False(t, ok)
	assert.False(t, called)

	assert.Len(t, s.Func().Blocks, 1)
	assert.Equal(t, ir.Entry, s.Cursor())
}

func TestUnbalancedBranches(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	s.If(s.Const(1), func() {
		s.Assign("c", s.Const(1))
	}, nil)

	assert.Equal(t, ir.Nil, s.Lookup("c"))
	assert.ErrorIs(t, s.Err(), ErrUnknownVariable)
}

func TestAssignedBeforeIfVisibleAfter(t *testing.T) {
	ctx := context.Background()
	s := Begin(ctx, "f", true)

	s.Assign("c", s.Const(7))

	s.If(s.Const(0), func() {
		s.Assign("c", s.Const(1))
	}, nil)

	f, err := s.Finish(s.Lookup("c"))
	require.NoError(t, err)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 7.0, res)
}

func TestFinishFailure(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	f, err := s.Finish(ir.Nil)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrFailed)
}

func TestFinishVoid(t *testing.T) {
	ctx := context.Background()

	f, err := Func(ctx, &ast.Func{
		Name: "v",
		Body: []ast.Node{ast.Assign{Name: "x", X: ast.Num(1)}},
	})
	require.NoError(t, err)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res)
}

func TestFinishVoidFromNumericIsIllFormed(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	_, err := s.FinishVoid()
	assert.ErrorIs(t, err, ir.ErrIllFormed)
}

func TestInvalidOperand(t *testing.T) {
	s := Begin(context.Background(), "f", true)

	st := s.Assign("x", s.Const(1))

	assert.Equal(t, ir.Nil, s.Binary('+', st, s.Const(1)), "store has no value")
	assert.ErrorIs(t, s.Err(), ErrInvalidOperand)

	s = Begin(context.Background(), "g", true)
	assert.Equal(t, ir.Nil, s.Binary('+', ir.Expr(100), s.Const(1)))
	assert.ErrorIs(t, s.Err(), ErrInvalidOperand)
}

func TestCompareNaN(t *testing.T) {
	ctx := context.Background()
	s := Begin(ctx, "f", true, WithFloat(64))

	nan := s.Binary('/', s.Const(0), s.Const(0))

	f, err := s.Finish(s.Binary('<', nan, s.Const(1)))
	require.NoError(t, err)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res)
}

func TestFloat64(t *testing.T) {
	ctx := context.Background()
	s := Begin(ctx, "f", true, WithFloat(64))

	f, err := s.Finish(s.Binary('/', s.Const(1), s.Const(3)))
	require.NoError(t, err)

	res, err := interp.Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1.0/3, res)
}

func TestUnsupportedFloat(t *testing.T) {
	for _, bits := range []int{0, 16, -32, 1<<16 + 32, 1<<16 + 64} {
		s := Begin(context.Background(), "f", true, WithFloat(bits))

		_, err := s.Finish(s.Const(1))
		assert.ErrorIs(t, err, ErrInvalidOperand, "bits %d", bits)
	}
}

func TestUnsupportedNode(t *testing.T) {
	_, err := Func(context.Background(), &ast.Func{
		Name: "f",
		Body: []ast.Node{ast.Num(1)},
		Ret:  ast.Num(0),
	})
	assert.ErrorIs(t, err, ErrUnsupported)
}
