package compiler

// keywords maps every bare-keyword command (spec.md §4.6's dispatch
// list) to its Op. Commands handled by a dedicated prefix parser
// (l', set', get', if', ifn', img', load, c', include', workspace')
// are not in this table.
var keywords = map[string]Op{
	"+":     OpAdd,
	"-":     OpSub,
	"*":     OpMul,
	"/":     OpDiv,
	"^":     OpPow,
	"sin":   OpSin,
	"cos":   OpCos,
	"floor": OpFloor,
	"ceil":  OpCeil,
	"minmax": OpMinMax,
	"cat":   OpCat,
	"r":     OpReverse,
	"t":     OpTranspose,
	"s":     OpSlice,
	"shape": OpShape,
	"size":  OpSize,
	"l":     OpLength,
	"dup":   OpDup,
	"rep":   OpRepeat,
	"pop":   OpPop,
	"bury":  OpBury,
	"raise": OpRaise,
	"first": OpFirst,
	"last":  OpLast,
	"e":     OpEnclose,
	"ext":   OpExtrude,
	"unext": OpUnextrude,
	"m":         OpMatMul,
	"translate": OpTranslate,
	"rot":       OpRotate,
	"proj":      OpProj,
	"ortho":     OpOrtho,
	"index":     OpIndex,
	"toString":  OpToString,
	"print":     OpPrint,
	"return":    OpReturn,
	"quit":      OpQuit,
	"kettle":    OpKettle,
	"unkettle":  OpUnkettle,
	"input":      OpInput,
	"keys":       OpKeys,
	"gamepad":    OpGamepad,
	"windowSize": OpWindowSize,
	"timeDelta":  OpTimeDelta,
	"depth":    OpDepth,
	"additive": OpAdditive,
	"backface": OpBackface,
	"texture":  OpTexture,
}

// ambiguous keyword "l" collides with the label prefix "l'" only when
// followed immediately by a quote; the parser checks for the prefix
// form first, so a bare "l" command always means length.
