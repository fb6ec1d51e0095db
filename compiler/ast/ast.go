package ast

type (
	Node interface{}

	// Num is a floating point literal.
	Num float64

	// Var reads a variable.
	Var string

	// Binary is one of + - * / <.
	Binary struct {
		Op byte

		L Node
		R Node
	}

	Assign struct {
		Name string
		X    Node
	}

	If struct {
		Cond Node

		Then []Node
		Else []Node
	}

	// Func is a parameterless function. Nil Ret makes it void.
	Func struct {
		Name string

		Body []Node
		Ret  Node
	}
)
