package compiler

import (
	"context"

	llir "github.com/llir/llvm/ir"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ast"
	"github.com/slowlang/lower/compiler/back"
	"github.com/slowlang/lower/compiler/format"
	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/lower"
)

// Compile lowers function trees into one package.
func Compile(ctx context.Context, name string, funcs []*ast.Func, opts ...lower.Option) (p *ir.Package, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile package", "name", name, "funcs", len(funcs))
	defer tr.Finish("err", &err)

	p = &ir.Package{Name: name}
	seen := make(map[string]struct{}, len(funcs))

	for _, x := range funcs {
		if _, ok := seen[x.Name]; ok {
			return nil, errors.New("name redefined: %v", x.Name)
		}

		seen[x.Name] = struct{}{}

		f, err := lower.Func(ctx, x, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "lower")
		}

		p.Funcs = append(p.Funcs, f)
	}

	if tr.If("dump_ir") {
		b, err := format.Package(nil, p)
		tr.Printw("lowered", "ir", b, "err", err)
	}

	return p, nil
}

// Module translates a package into a verified LLVM module.
func Module(ctx context.Context, p *ir.Package) (*llir.Module, error) {
	m, err := back.New().CompilePackage(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "back")
	}

	err = back.Verify(m)
	if err != nil {
		return nil, errors.Wrap(err, "verify")
	}

	return m, nil
}

// Print renders the package as LLVM assembly.
func Print(ctx context.Context, p *ir.Package) (string, error) {
	m, err := Module(ctx, p)
	if err != nil {
		return "", err
	}

	return back.Print(m), nil
}

// EmitObject writes the package as a native object file.
func EmitObject(ctx context.Context, p *ir.Package, e back.Emitter, path string) error {
	m, err := Module(ctx, p)
	if err != nil {
		return err
	}

	return e.EmitObject(ctx, m, path)
}
