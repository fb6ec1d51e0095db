package back

import (
	"github.com/llir/llvm/asm"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
)

var ErrVerify = errors.New("module verification failed")

// Print renders the module as LLVM assembly.
func Print(m *llir.Module) string {
	return m.String()
}

// Parse reads LLVM assembly back, name is used in error messages.
func Parse(name, text string) (*llir.Module, error) {
	m, err := asm.ParseString(name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", name)
	}

	return m, nil
}

// Verify checks every defined function: each block is terminated,
// the entry block has no predecessors, and slots live in the entry block.
func Verify(m *llir.Module) error {
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}

		err := verifyFunc(f)
		if err != nil {
			return errors.Wrap(err, "func %v", f.Name())
		}
	}

	return nil
}

func verifyFunc(f *llir.Func) error {
	entry := f.Blocks[0]
	slots := map[value.Value]bool{}

	for _, inst := range entry.Insts {
		if a, ok := inst.(*llir.InstAlloca); ok {
			slots[a] = true
		}
	}

	for _, b := range f.Blocks {
		if b.Term == nil {
			return errors.Wrap(ErrVerify, "block %v: no terminator", b.Name())
		}

		for _, s := range b.Term.Succs() {
			if s == entry {
				return errors.Wrap(ErrVerify, "block %v: branch to entry block", b.Name())
			}
		}

		for _, inst := range b.Insts {
			var slot value.Value

			switch inst := inst.(type) {
			case *llir.InstAlloca:
				if b != entry {
					return errors.Wrap(ErrVerify, "block %v: alloca outside entry block", b.Name())
				}

				continue
			case *llir.InstLoad:
				slot = inst.Src
			case *llir.InstStore:
				slot = inst.Dst
			default:
				continue
			}

			if !slots[slot] {
				return errors.Wrap(ErrVerify, "block %v: memory access to %v is not an entry slot", b.Name(), slot.Ident())
			}
		}
	}

	return nil
}
