package compiler

import (
	"fmt"
	"strings"

	"github.com/soypat/atlas/internal/compute"
	"github.com/soypat/atlas/internal/trie"
)

func computeSynthesize(spec compute.Spec, varNames []string) (string, string, error) {
	return compute.Synthesize(spec, varNames)
}

// labelTable wraps a trie mapping qualified label names to step
// indices; step indices are stored as uint32 per trie.Node.Value.
type labelTable struct{ root *trie.Node }

func newLabelTable() *labelTable { return &labelTable{root: trie.New()} }

func (t *labelTable) has(name string) bool {
	_, ok := t.root.Search(name)
	return ok
}

func (t *labelTable) insert(name string, stepIndex int) {
	t.root.Insert(name, uint32(stepIndex))
}

func (t *labelTable) lookup(name string) (int, bool) {
	v, ok := t.root.Search(name)
	return int(v), ok
}

// glslSafe mirrors internal/compute's own renaming rule: workspace dots
// become underscores so a qualified variable name is a legal GLSL
// identifier in the synthesized uniform block.
func glslSafe(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// varSlotCount returns how many vec4-aligned float slots a variable of
// the given declared size occupies in the linear uniform block
// (spec.md §4.5 pass 4: "Sizes {1,2,3,4} occupy 2 or 4 slots each (for
// alignment), size 16 occupies 16").
func varSlotCount(size int) int {
	switch size {
	case 1, 2:
		return 2
	case 3, 4:
		return 4
	case 16:
		return 16
	}
	return 0
}

// collectVariables implements spec.md §4.5 pass 4: it rewrites
// short-form `set` calls into real OpSet steps, then walks every OpSet
// step in program order to build the linear varBlock (sized variables)
// and assign big-variable indices (size 0).
func collectVariables(p *Program) error {
	seen := map[string]int{} // qualified name -> index in p.VarNames; big vars are tracked in bigSeen
	bigSeen := map[string]int{}

	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Op == OpCall {
			if m := shortFormSet.FindStringSubmatch(s.rawText); m != nil {
				size, err := atoiStrict(m[2])
				if err != nil {
					return fmt.Errorf("short-form set %q: %w", s.rawText, err)
				}
				if err := validateVarSize(size); err != nil {
					return fmt.Errorf("short-form set %q: %w", s.rawText, err)
				}
				qualified := s.BranchName[:len(s.BranchName)-len(s.Unqualified)] + m[1]
				s.Op = OpSet
				s.VarName = qualified
				s.Unqualified = m[1]
				s.VarSize = size
				s.IsBigVar = size == 0
				s.BranchName = ""
			}
		}
		if s.Op != OpSet {
			continue
		}
		if s.IsBigVar {
			if idx, ok := bigSeen[s.VarName]; ok {
				s.VarIndex = idx
				continue
			}
			idx := p.BigVarCount
			bigSeen[s.VarName] = idx
			p.BigVarCount++
			s.VarIndex = idx
			continue
		}
		if idx, ok := seen[s.VarName]; ok {
			if p.VarSizes[idx] != s.VarSize {
				return fmt.Errorf("variable %q redeclared with size %d, previously %d", s.VarName, s.VarSize, p.VarSizes[idx])
			}
			s.VarIndex = p.VarOffsets[idx]
			continue
		}
		offset := 0
		for _, sz := range p.VarSizes {
			offset += varSlotCount(sz)
		}
		idx := len(p.VarNames)
		p.VarNames = append(p.VarNames, glslSafe(s.VarName))
		p.VarSizes = append(p.VarSizes, s.VarSize)
		p.VarOffsets = append(p.VarOffsets, offset)
		seen[s.VarName] = idx
		s.VarIndex = offset
	}
	return nil
}

func atoiStrict(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// resolveReferences implements spec.md §4.5 pass 5: branch targets
// resolve against labels (qualified, then bare); remaining pending
// calls that aren't labels try variables instead (promoted to a get);
// get steps resolve against sized variables, then big variables.
func resolveReferences(p *Program, labels *labelTable) error {
	varIndex := map[string]int{}
	bigVarIndex := map[string]int{}
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Op == OpSet {
			if s.IsBigVar {
				bigVarIndex[s.VarName] = s.VarIndex
			} else {
				varIndex[s.VarName] = s.VarIndex
			}
		}
	}

	for i := range p.Steps {
		s := &p.Steps[i]
		switch s.Op {
		case OpIf, OpIfn, OpCall:
			if idx, ok := labels.lookup(s.BranchName); ok {
				s.Branch = idx
				continue
			}
			if idx, ok := labels.lookup(s.Unqualified); ok {
				s.Branch = idx
				continue
			}
			// Not a label: for OpCall, try resolving as a variable get.
			if s.Op == OpCall {
				if idx, ok := varIndex[s.BranchName]; ok {
					s.Op = OpGet
					s.VarName = s.BranchName
					s.VarIndex = idx
					continue
				}
				if idx, ok := bigVarIndex[s.BranchName]; ok {
					s.Op = OpGet
					s.VarName = s.BranchName
					s.IsBigVar = true
					s.VarIndex = idx
					continue
				}
			}
			return fmt.Errorf("%s:%d command %d: unresolved reference %q", s.Filename, s.Line, s.CommandNum, s.BranchName)
		case OpGet:
			if idx, ok := varIndex[s.VarName]; ok {
				s.VarIndex = idx
				continue
			}
			if idx, ok := bigVarIndex[s.VarName]; ok {
				s.IsBigVar = true
				s.VarIndex = idx
				continue
			}
			return fmt.Errorf("%s:%d command %d: undeclared variable %q", s.Filename, s.Line, s.CommandNum, s.VarName)
		case OpCompute:
			// Validate eagerly against the currently-known uniform
			// block so a malformed compute declaration is a compile
			// error rather than surfacing only once the evaluator
			// first reaches it. internal/eval re-synthesizes (and
			// caches) the actual GL program lazily, since program
			// names are the same set this pass already resolved.
			if _, _, err := computeSynthesize(s.ComputeSpec, p.VarNames); err != nil {
				return fmt.Errorf("%s:%d command %d: %w", s.Filename, s.Line, s.CommandNum, err)
			}
		}
	}
	return nil
}
