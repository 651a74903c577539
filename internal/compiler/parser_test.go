package compiler

import "testing"

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

func TestCompileSubroutineScenario(t *testing.T) {
	// spec.md §8's subroutine scenario: squares 5 and prints 25.00.
	src := "l'sq'; dup; *; return; 5; sq; print; quit"
	p, err := Compile(nil, "main", src)
	if err != nil {
		t.Fatal(err)
	}
	wantOps := []Op{OpDup, OpMul, OpReturn, OpPushTensor, OpCall, OpPrint, OpQuit}
	if len(p.Steps) != len(wantOps) {
		t.Fatalf("got %d steps, want %d", len(p.Steps), len(wantOps))
	}
	for i, op := range wantOps {
		if p.Steps[i].Op != op {
			t.Fatalf("step %d: got op %d, want %d", i, p.Steps[i].Op, op)
		}
	}
	call := p.Steps[4]
	if call.Branch != 0 {
		t.Fatalf("call should branch to label index 0 (dup), got %d", call.Branch)
	}
}

func TestCompileWorkspaceQualifiesLabelsAndVars(t *testing.T) {
	src := "workspace'w'; l'loop'; 1; if'loop'; workspace''; get'x'"
	_, err := Compile(nil, "main", src)
	// get'x' is unqualified (workspace reset before it) and undeclared,
	// so this must fail to resolve - exercising the qualify/reset path.
	if err == nil {
		t.Fatal("expected unresolved-variable error")
	}
}

func TestCompileBranchQualifiedThenBare(t *testing.T) {
	// "loop" is defined with no active workspace; the if inside
	// workspace'w' first tries "w.loop" (absent), then falls back to
	// the bare "loop" (present) per spec.md §4.5 pass 5.
	src := "l'loop'; 1; workspace'w'; if'loop'; quit"
	p, err := Compile(nil, "main", src)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, s := range p.Steps {
		if s.Op == OpIf {
			found = true
			if s.Branch != 0 {
				t.Fatalf("if should resolve to bare label 'loop' at index 0, got %d", s.Branch)
			}
		}
	}
	if !found {
		t.Fatal("no OpIf step found")
	}
}

func TestCompileShortFormSet(t *testing.T) {
	src := "workspace'w'; 4; x = 1; get'x'"
	p, err := Compile(nil, "main", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.VarNames) != 1 || p.VarNames[0] != "w_x" {
		t.Fatalf("got var names %v", p.VarNames)
	}
	var setStep, getStep *Step
	for i := range p.Steps {
		switch p.Steps[i].Op {
		case OpSet:
			setStep = &p.Steps[i]
		case OpGet:
			getStep = &p.Steps[i]
		}
	}
	if setStep == nil || getStep == nil {
		t.Fatal("expected both a resolved set and get step")
	}
	if setStep.VarIndex != getStep.VarIndex {
		t.Fatalf("set/get index mismatch: %d vs %d", setStep.VarIndex, getStep.VarIndex)
	}
}

func TestCompileDuplicateLabelError(t *testing.T) {
	_, err := Compile(nil, "main", "l'a'; 1; l'a'; quit")
	if err == nil {
		t.Fatal("expected duplicate label error")
	}
}

func TestCompileInclude(t *testing.T) {
	loader := mapLoader{"lib.atl": "l'helper'; dup; return"}
	src := "include'lib.atl'; 5; helper; print; quit"
	p, err := Compile(loader, "main", src)
	if err != nil {
		t.Fatal(err)
	}
	var sawCall bool
	for _, s := range p.Steps {
		if s.Op == OpCall {
			sawCall = true
			if s.Branch != 0 {
				t.Fatalf("helper call should branch to index 0, got %d", s.Branch)
			}
		}
	}
	if !sawCall {
		t.Fatal("expected an OpCall step resolved against the included label")
	}
}

func TestCompileTensorLiteralPush(t *testing.T) {
	p, err := Compile(nil, "main", "[[1 2][3 4]]; quit")
	if err != nil {
		t.Fatal(err)
	}
	if p.Steps[0].Op != OpPushTensor || p.Steps[0].Tensor.Rank != 2 {
		t.Fatalf("got step %+v", p.Steps[0])
	}
}

func TestCompileComputeDeclaration(t *testing.T) {
	src := "c'pass'gl_Position = vec4(0);'float x;'x(0) = a(0) + 1.0;' 1 1 0 0; quit"
	p, err := Compile(nil, "main", src)
	if err != nil {
		t.Fatal(err)
	}
	if p.Steps[0].Op != OpCompute {
		t.Fatalf("got op %d", p.Steps[0].Op)
	}
	if p.Steps[0].ComputeSpec.ArgCount != 1 || p.Steps[0].ComputeSpec.RetCount != 1 {
		t.Fatalf("got spec %+v", p.Steps[0].ComputeSpec)
	}
}
