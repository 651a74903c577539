package eval

import (
	"testing"

	"github.com/soypat/atlas/internal/compiler"
)

type mapLoader map[string]string

func (m mapLoader) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, errNotFound(path)
	}
	return []byte(s), nil
}

type errNotFound string

func (e errNotFound) Error() string { return "file not found: " + string(e) }

func mustRun(t *testing.T, src string) *Context {
	t.Helper()
	prog, err := compiler.Compile(nil, "main", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := New(nil, nil, prog, 6)
	if _, err := ctx.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return ctx
}

func TestArithmeticRPNOrder(t *testing.T) {
	// "3; 2; -" computes 3-2, not 2-3.
	ctx := mustRun(t, "3; 2; -; quit")
	top, err := ctx.Stack.Top()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := floatsOf(top); v[0] != 1 {
		t.Fatalf("got %v, want 1", v)
	}
}

func TestDupPrintScenario(t *testing.T) {
	// spec.md §8 scenario 5's "dup; print" idiom: dup doesn't consume a
	// runtime argument, and print consumes its copy, leaving the
	// original on the stack.
	ctx := mustRun(t, "5; dup; print; quit")
	if ctx.Stack.Len() != 1 {
		t.Fatalf("stack len = %d, want 1", ctx.Stack.Len())
	}
	top, _ := ctx.Stack.Top()
	v, _ := floatsOf(top)
	if v[0] != 5 {
		t.Fatalf("got %v, want 5", v)
	}
}

func TestShapePeeksLengthPops(t *testing.T) {
	ctx := mustRun(t, "[1 2 3]; shape; quit")
	if ctx.Stack.Len() != 2 {
		t.Fatalf("shape should not consume its argument, stack len = %d", ctx.Stack.Len())
	}

	ctx2 := mustRun(t, "[1 2 3]; l; quit")
	if ctx2.Stack.Len() != 1 {
		t.Fatalf("length should consume its argument, stack len = %d", ctx2.Stack.Len())
	}
}

func TestIfBranchesOnPositive(t *testing.T) {
	src := "1; if'skip'; 99; l'skip'; 7; quit"
	ctx := mustRun(t, src)
	top, _ := ctx.Stack.Top()
	v, _ := floatsOf(top)
	if v[0] != 7 {
		t.Fatalf("got %v, want 7", v)
	}
}

func TestIfnFallsThroughOnPositive(t *testing.T) {
	src := "1; ifn'skip'; 99; l'skip'; 7; quit"
	ctx := mustRun(t, src)
	if ctx.Stack.Len() != 2 {
		t.Fatalf("expected both 99 and 7 pushed, stack len = %d", ctx.Stack.Len())
	}
}

func TestSetGetRoundTripAliasesVarBlock(t *testing.T) {
	src := "[1 2 3]; set'v'3; get'v'; quit"
	prog, err := compiler.Compile(nil, "main", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := New(nil, nil, prog, 6)
	if _, err := ctx.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	top, err := ctx.Stack.Top()
	if err != nil {
		t.Fatal(err)
	}
	v, _ := floatsOf(top)
	if len(v) != 3 || v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", v)
	}
}

func TestSubroutineCallReturn(t *testing.T) {
	src := "5; sq; quit; l'sq'; dup; *; return"
	ctx := mustRun(t, src)
	top, _ := ctx.Stack.Top()
	v, _ := floatsOf(top)
	if v[0] != 25 {
		t.Fatalf("got %v, want 25", v)
	}
}

func TestReloadResetsStackAndVarBlock(t *testing.T) {
	loader := mapLoader{"second.atl": "9; quit"}
	prog, err := compiler.Compile(nil, "main", "1; 2; 3; load'second.atl'; quit")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := New(loader, nil, prog, 6)
	cont, err := ctx.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !cont {
		t.Fatal("expected LOAD to report continue")
	}
	if ctx.Stack.Len() != 0 {
		t.Fatalf("expected LOAD to reset the stack, got len %d", ctx.Stack.Len())
	}
	cont, err = ctx.Run()
	if err != nil {
		t.Fatalf("run after load: %v", err)
	}
	if cont {
		t.Fatal("expected second program's QUIT to stop the run")
	}
	if ctx.Stack.Len() != 1 {
		t.Fatalf("expected the reloaded program to have run, stack len = %d", ctx.Stack.Len())
	}
}

func TestKettleUnkettleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/snapshot.ktl"
	src := "[1 2 3]; [4 5]; 2; '" + path + "'; kettle; pop; pop; '" + path + "'; unkettle; quit"
	ctx := mustRun(t, src)
	if ctx.Stack.Len() != 2 {
		t.Fatalf("stack len = %d, want 2", ctx.Stack.Len())
	}
	first, _ := ctx.Stack.At(1)
	v1, _ := floatsOf(first)
	if len(v1) != 3 || v1[0] != 1 || v1[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", v1)
	}
	second, _ := ctx.Stack.At(0)
	v2, _ := floatsOf(second)
	if len(v2) != 2 || v2[0] != 4 || v2[1] != 5 {
		t.Fatalf("got %v, want [4 5]", v2)
	}
}
