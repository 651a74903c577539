// Package compiler turns Atlas program text into a flat, already-resolved
// list of Steps the evaluator walks in order (spec.md §4.5): no AST is
// kept past Compile returning.
package compiler

import (
	"github.com/soypat/atlas/internal/compute"
	"github.com/soypat/atlas/internal/tensor"
)

// Op identifies a compiled step's behavior. The evaluator dispatches on
// Op with a single flat switch (spec.md §9's "prefer flat dispatch to
// virtual dispatch" note), not a chain of string compares.
type Op int

const (
	OpPushTensor Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpSin
	OpCos
	OpFloor
	OpCeil
	OpMinMax
	OpCat
	OpReverse
	OpTranspose
	OpSlice
	OpShape
	OpSize
	OpLength
	OpDup
	OpRepeat
	OpPop
	OpBury
	OpRaise
	OpFirst
	OpLast
	OpEnclose
	OpExtrude
	OpUnextrude
	OpMatMul
	OpTranslate
	OpRotate
	OpProj
	OpOrtho
	OpIndex
	OpToString
	OpPrint
	OpIf
	OpIfn
	OpCall
	OpReturn
	OpQuit
	OpSet
	OpGet
	OpCompute
	OpImg
	OpLoad
	OpLoadFromStack
	OpKettle
	OpUnkettle
	OpInput
	OpKeys
	OpGamepad
	OpWindowSize
	OpTimeDelta
	OpDepth
	OpAdditive
	OpBackface
	OpTexture
	OpImport
)

// Step is one compiled instruction. Only the fields relevant to Op are
// meaningful; this flat struct stands in for the original's tagged
// union (spec.md §9's "tagged storage" note applies equally well here:
// a plain struct with unused fields is simpler in Go than a simulated
// union, and Step values are cheap and short-lived).
type Step struct {
	Op Op

	// OpPushTensor
	Tensor *tensor.Tensor

	// OpIf, OpIfn, OpCall: Branch is the resolved target step index
	// after pass 5; BranchName is the workspace-qualified name tried
	// first, Unqualified the bare name tried as a fallback (spec.md
	// §4.5 pass 5: "fully-qualified first, then unqualified").
	Branch      int
	BranchName  string
	Unqualified string

	// OpSet, OpGet: VarName is workspace-qualified and is looked up
	// only under that qualified name; unlike branch names there is no
	// fallback to Unqualified. VarSize is the
	// declared size for OpSet (0 = big variable). VarIndex is resolved
	// in pass 5: a slot offset into the uniform block for a sized
	// variable, or an index into BigVars for a size-0 one.
	VarName  string
	VarSize  int
	VarIndex int
	IsBigVar bool

	// OpCompute
	ComputeSpec compute.Spec

	// OpImg, OpLoad, OpImport: file path. Empty Path on OpLoad means
	// "read the filename from the tensor on top of the stack"
	// (OpLoadFromStack is used instead in that case, so Path is always
	// set here).
	Path string

	Filename   string
	Line       int
	CommandNum int

	// rawText holds an OpCall step's command text before workspace
	// qualification, so the variable-collection pass can recognize the
	// short-form `name = N` pattern before it is rewritten into OpSet.
	// Unused past Compile returning.
	rawText string
}
