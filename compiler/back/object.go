package back

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	llir "github.com/llir/llvm/ir"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Emitter writes native object files using the llc tool.
	Emitter struct {
		LLC    string // tool name or path, llc by default
		Triple string // llc default target if empty
	}
)

var (
	ErrTargetLookup = errors.New("target lookup failed")
	ErrIO           = errors.New("io error")
	ErrCodegen      = errors.New("code generation failed")
)

var targetErrors = [][]byte{
	[]byte("unable to get target"),
	[]byte("No available targets"),
	[]byte("unknown target"),
}

// EmitObject compiles m into a relocatable object at path.
// On failure no file is left at path.
func (e Emitter) EmitObject(ctx context.Context, m *llir.Module, path string) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: emit object", "path", path, "triple", e.Triple)
	defer tr.Finish("err", &err)

	tool := e.LLC
	if tool == "" {
		tool = "llc"
	}

	tool, err = exec.LookPath(tool)
	if err != nil {
		return errors.Wrap(ErrTargetLookup, "no code generator: %v", err)
	}

	dir, err := os.MkdirTemp("", "lower-obj-")
	if err != nil {
		return errors.Wrap(ErrIO, "temp dir: %v", err)
	}

	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "module.ll")
	obj := filepath.Join(dir, "module.o")

	err = os.WriteFile(src, []byte(m.String()), 0o644)
	if err != nil {
		return errors.Wrap(ErrIO, "write module: %v", err)
	}

	args := []string{"-filetype=obj", "-o", obj}
	if e.Triple != "" {
		args = append(args, "-mtriple="+e.Triple)
	}

	args = append(args, src)

	out, err := exec.CommandContext(ctx, tool, args...).CombinedOutput()
	tr.V("llc").Printw("llc", "tool", tool, "args", args, "output", out, "err", err)

	if err != nil {
		for _, t := range targetErrors {
			if bytes.Contains(out, t) {
				return errors.Wrap(ErrTargetLookup, "%s", bytes.TrimSpace(out))
			}
		}

		return errors.Wrap(ErrCodegen, "llc: %v: %s", err, bytes.TrimSpace(out))
	}

	data, err := os.ReadFile(obj)
	if err != nil {
		return errors.Wrap(ErrIO, "read object: %v", err)
	}

	err = writeFile(path, data)
	if err != nil {
		return err
	}

	tr.Printw("object written", "path", path, "size", len(data))

	return nil
}

func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(ErrIO, "%v", err)
	}

	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(ErrIO, "close: %v", e)
		}

		if err != nil {
			_ = os.Remove(path)
		}
	}()

	_, err = f.Write(data)
	if err != nil {
		return errors.Wrap(ErrIO, "write: %v", err)
	}

	return nil
}
