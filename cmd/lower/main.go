package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler"
	"github.com/slowlang/lower/compiler/ast"
	"github.com/slowlang/lower/compiler/back"
	"github.com/slowlang/lower/compiler/demo"
	"github.com/slowlang/lower/compiler/format"
	"github.com/slowlang/lower/compiler/interp"
	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/lower"
)

func main() {
	printCmd := &cli.Command{
		Name:        "print",
		Description: "print lowered LLVM module",
		Action:      printAct,
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print lowering IR",
		Action:      irAct,
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "evaluate the demo function",
		Action:      runAct,
	}

	objCmd := &cli.Command{
		Name:        "obj",
		Description: "write native object file",
		Action:      objAct,
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "foo.o", "object file path"),
			cli.NewFlag("triple", "", "target triple, llc default if empty"),
			cli.NewFlag("llc", "llc", "llc tool"),
		},
	}

	app := &cli.Command{
		Name:        "lower",
		Description: "lower is a floating point lowering demo",
		Action:      printAct,
		Flags: []*cli.Flag{
			cli.NewFlag("demo", "branch", "demo program: arith or branch"),
			cli.NewFlag("float", 32, "float width: 32 or 64"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			printCmd,
			irCmd,
			runCmd,
			objCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func printAct(c *cli.Command) error {
	ctx, p, err := lowerDemo(c)
	if err != nil {
		return err
	}

	text, err := compiler.Print(ctx, p)
	if err != nil {
		return errors.Wrap(err, "print")
	}

	fmt.Printf("%s", text)

	return nil
}

func irAct(c *cli.Command) error {
	_, p, err := lowerDemo(c)
	if err != nil {
		return err
	}

	b, err := format.Package(nil, p)
	if err != nil {
		return errors.Wrap(err, "format")
	}

	fmt.Printf("%s", b)

	return nil
}

func runAct(c *cli.Command) error {
	ctx, p, err := lowerDemo(c)
	if err != nil {
		return err
	}

	for _, f := range p.Funcs {
		res, err := interp.Run(ctx, f)
		if err != nil {
			return errors.Wrap(err, "run %v", f.Name)
		}

		fmt.Printf("%s() = %v\n", f.Name, res)
	}

	return nil
}

func objAct(c *cli.Command) error {
	ctx, p, err := lowerDemo(c)
	if err != nil {
		return err
	}

	e := back.Emitter{
		LLC:    c.String("llc"),
		Triple: c.String("triple"),
	}

	err = compiler.EmitObject(ctx, p, e, c.String("output"))
	if err != nil {
		return errors.Wrap(err, "emit object")
	}

	return nil
}

func lowerDemo(c *cli.Command) (ctx context.Context, p *ir.Package, err error) {
	ctx = context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	x := demo.ByName(c.String("demo"))
	if x == nil {
		return nil, nil, errors.New("unknown demo: %v", c.String("demo"))
	}

	p, err = compiler.Compile(ctx, demo.Module, []*ast.Func{x}, lower.WithFloat(c.Int("float")))
	if err != nil {
		return nil, nil, errors.Wrap(err, "compile")
	}

	return ctx, p, nil
}
