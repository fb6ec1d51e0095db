/*

Process of compilation

Function Tree (ast) ->
	lower ->
Intermediate Representation (ir) ->
	verify ->
LLVM Module (back) ->
	llc ->
Binary Object (obj)

The ir can also be evaluated directly by interp or dumped by format.

*/
package compiler
