package ir

import (
	"strconv"

	"github.com/slowlang/lower/compiler/tp"
)

// NewFunc creates a function with an attached empty entry block.
// ret is either tp.Void{} or the numeric type num.
func NewFunc(name string, num tp.Float, ret tp.Type) *Func {
	if ret == nil {
		ret = tp.Void{}
	}

	f := &Func{
		Name: name,
		Num:  num,
		Ret:  ret,
	}

	f.Attach(f.NewBlock("entry"))

	return f
}

// Alloc registers x as a new value without placing it into a block.
// Constants stay unplaced.
func (f *Func) Alloc(x any, t tp.Type, name string) Expr {
	id := Expr(len(f.Exprs))

	f.Exprs = append(f.Exprs, x)
	f.EType = append(f.EType, t)
	f.Names = append(f.Names, name)
	f.Where = append(f.Where, NoBlock)

	return id
}

// Append places id at the end of block b.
func (f *Func) Append(b BlockID, id Expr) {
	bp := &f.Blocks[b]

	bp.Code = append(bp.Code, id)
	f.Where[id] = b
}

// Insert places id into block b before the i-th instruction.
func (f *Func) Insert(b BlockID, i int, id Expr) {
	bp := &f.Blocks[b]

	bp.Code = append(bp.Code, Nil)
	copy(bp.Code[i+1:], bp.Code[i:])
	bp.Code[i] = id

	f.Where[id] = b
}

// NewBlock creates a detached block.
func (f *Func) NewBlock(name string) BlockID {
	f.Blocks = append(f.Blocks, Block{Name: name})

	return BlockID(len(f.Blocks) - 1)
}

// Attach appends a detached block to the function layout.
func (f *Func) Attach(b BlockID) {
	if f.Blocks[b].attached {
		panic("block attached twice")
	}

	f.Blocks[b].attached = true
	f.Layout = append(f.Layout, b)
}

func (f *Func) Attached(b BlockID) bool {
	return f.Blocks[b].attached
}

// Valid reports whether id is a value handle of this function.
func (f *Func) Valid(id Expr) bool {
	return id >= 0 && int(id) < len(f.Exprs)
}

// Term returns the last instruction of the block if it is a terminator.
func (f *Func) Term(b BlockID) (Expr, bool) {
	code := f.Blocks[b].Code
	if len(code) == 0 {
		return Nil, false
	}

	id := code[len(code)-1]

	return id, IsTerm(f.Exprs[id])
}

// Preds returns predecessors of every block in layout.
func (f *Func) Preds() map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID, len(f.Layout))

	for _, b := range f.Layout {
		for _, id := range f.Blocks[b].Code {
			for _, s := range Succs(f.Exprs[id]) {
				preds[s] = append(preds[s], b)
			}
		}
	}

	return preds
}

// BlockName returns a name unique within the function.
func (f *Func) BlockName(b BlockID) string {
	if b == NoBlock {
		return "<none>"
	}

	name := f.Blocks[b].Name

	for i := BlockID(0); i < b; i++ {
		if f.Blocks[i].Name == name {
			return name + strconv.Itoa(int(b))
		}
	}

	return name
}

// Slots returns allocas in entry prologue order.
func (f *Func) Slots() (l []Expr) {
	for _, id := range f.Blocks[Entry].Code {
		if _, ok := f.Exprs[id].(Alloca); ok {
			l = append(l, id)
		}
	}

	return l
}
