package lower

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ast"
	"github.com/slowlang/lower/compiler/ir"
)

var ErrUnsupported = errors.New("unsupported node")

// Func lowers a whole function tree.
func Func(ctx context.Context, x *ast.Func, opts ...Option) (f *ir.Func, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "lower: func", "name", x.Name)
	defer tr.Finish("err", &err)

	s := Begin(ctx, x.Name, x.Ret != nil, opts...)

	s.Block(x.Body)

	if x.Ret == nil {
		return s.FinishVoid()
	}

	return s.Finish(s.Expr(x.Ret))
}

// Block lowers statements in order.
func (s *Session) Block(l []ast.Node) {
	for _, x := range l {
		s.Stmt(x)
	}
}

func (s *Session) Stmt(x ast.Node) {
	switch x := x.(type) {
	case ast.Assign:
		s.Assign(x.Name, s.Expr(x.X))
	case ast.If:
		s.If(s.Expr(x.Cond), func() {
			s.Block(x.Then)
		}, func() {
			s.Block(x.Else)
		})
	default:
		s.fail(errors.Wrap(ErrUnsupported, "statement %T", x))
	}
}

func (s *Session) Expr(x ast.Node) ir.Expr {
	switch x := x.(type) {
	case ast.Num:
		return s.Const(float64(x))
	case ast.Var:
		return s.Lookup(string(x))
	case ast.Binary:
		return s.Binary(x.Op, s.Expr(x.L), s.Expr(x.R))
	default:
		return s.fail(errors.Wrap(ErrUnsupported, "expression %T", x))
	}
}
