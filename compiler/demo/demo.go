package demo

import "github.com/slowlang/lower/compiler/ast"

const (
	Module = "LLVM_Demo_Program"
	Name   = "foo"
)

// Arith returns 8 + 4*2.
func Arith() *ast.Func {
	return &ast.Func{
		Name: Name,
		Ret: ast.Binary{
			Op: '+',
			L:  ast.Num(8),
			R:  ast.Binary{Op: '*', L: ast.Num(4), R: ast.Num(2)},
		},
	}
}

// Branch is
//
//	a = 8 + 4*2
//	b = a / 4
//	if b < 8 { c = a*b } else { c = a+b }
//	return b
func Branch() *ast.Func {
	return &ast.Func{
		Name: Name,
		Body: []ast.Node{
			ast.Assign{Name: "a", X: Arith().Ret},
			ast.Assign{Name: "b", X: ast.Binary{Op: '/', L: ast.Var("a"), R: ast.Num(4)}},
			ast.If{
				Cond: ast.Binary{Op: '<', L: ast.Var("b"), R: ast.Num(8)},
				Then: []ast.Node{
					ast.Assign{Name: "c", X: ast.Binary{Op: '*', L: ast.Var("a"), R: ast.Var("b")}},
				},
				Else: []ast.Node{
					ast.Assign{Name: "c", X: ast.Binary{Op: '+', L: ast.Var("a"), R: ast.Var("b")}},
				},
			},
		},
		Ret: ast.Var("b"),
	}
}

// ByName returns a demo program or nil.
func ByName(name string) *ast.Func {
	switch name {
	case "arith":
		return Arith()
	case "branch":
		return Branch()
	}

	return nil
}
