package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/soypat/atlas/internal/compute"
	"github.com/soypat/atlas/internal/tensor"
)

// FileLoader resolves an include'path' directive to file contents.
// cmd/atlas wires this to os.ReadFile; tests can use an in-memory map.
type FileLoader interface {
	ReadFile(path string) ([]byte, error)
}

const wsResetSentinel = "\x00ws-reset\x00"

// flatten recursively expands include'path' directives into a single
// ordered command stream, inserting a workspace-reset sentinel on
// either side of an inclusion (spec.md §4.5 pass 2: "resetting the
// active workspace to empty on entry and on return").
func flatten(loader FileLoader, filename, src string, depth int) ([]command, error) {
	if depth > 32 {
		return nil, fmt.Errorf("%s: include nesting too deep", filename)
	}
	pre, err := preprocess(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	cmds := splitCommands(pre)
	for i := range cmds {
		cmds[i].filename = filename
	}
	var out []command
	for _, c := range cmds {
		if path, ok := parseIncludeDirective(c.text); ok {
			if loader == nil {
				return nil, fmt.Errorf("%s:%d: include'%s': no file loader configured", filename, c.line, path)
			}
			data, err := loader.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: include'%s': %w", filename, c.line, path, err)
			}
			out = append(out, command{text: wsResetSentinel, filename: filename, line: c.line})
			sub, err := flatten(loader, path, string(data), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			out = append(out, command{text: wsResetSentinel, filename: filename, line: c.line})
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseIncludeDirective(text string) (path string, ok bool) {
	if !strings.HasPrefix(text, "include'") {
		return "", false
	}
	s, err := parseStringLiteral(text[len("include"):])
	if err != nil {
		return "", false
	}
	return s, true
}

// Program is the compiled, flat result of Compile: a step array ready
// for internal/eval to walk, plus the resolved uniform-variable layout
// internal/compute's synthesizer needs for every OpCompute step.
type Program struct {
	Steps []Step

	// VarNames/VarSizes/VarOffsets describe the linear varBlock built
	// in pass 4, in declaration order. VarNames are GLSL-safe
	// (workspace dots replaced with underscores).
	VarNames   []string
	VarSizes   []int
	VarOffsets []int

	BigVarCount int
}

var shortFormSet = regexp.MustCompile(`^(\S+)\s*=\s*(\d+)$`)

// Compile implements spec.md §4.5's five passes over src, rooted at
// filename (used only for error messages; include paths are handed to
// loader exactly as written, not resolved against filename).
func Compile(loader FileLoader, filename, src string) (*Program, error) {
	cmds, err := flatten(loader, filename, src, 0)
	if err != nil {
		return nil, err
	}

	labels := newLabelTable()
	var steps []Step
	workspace := ""

	for _, c := range cmds {
		if c.text == wsResetSentinel {
			workspace = ""
			continue
		}
		text := c.text

		if ws, ok := parseWorkspaceDirective(text); ok {
			if ws == "" {
				workspace = ""
			} else {
				workspace = ws + "."
			}
			continue
		}

		if name, ok := parseLabelDirective(text); ok {
			qualified := workspace + name
			if labels.has(qualified) {
				return nil, fmt.Errorf("%s:%d: duplicate label %q", c.filename, c.line, qualified)
			}
			labels.insert(qualified, len(steps))
			continue
		}

		step, err := parseCommand(text, workspace)
		if err != nil {
			return nil, fmt.Errorf("%s:%d command %d: %s", c.filename, c.line, c.commandNum, err)
		}
		step.Filename = c.filename
		step.Line = c.line
		step.CommandNum = c.commandNum
		steps = append(steps, step)
	}

	p := &Program{Steps: steps}
	if err := collectVariables(p); err != nil {
		return nil, err
	}
	if err := resolveReferences(p, labels); err != nil {
		return nil, err
	}
	return p, nil
}

func parseWorkspaceDirective(text string) (name string, ok bool) {
	if !strings.HasPrefix(text, "workspace'") {
		return "", false
	}
	s, err := parseStringLiteral(text[len("workspace"):])
	if err != nil {
		return "", false
	}
	return s, true
}

func parseLabelDirective(text string) (name string, ok bool) {
	if !strings.HasPrefix(text, "l'") {
		return "", false
	}
	s, err := parseStringLiteral(text[len("l"):])
	if err != nil {
		return "", false
	}
	return s, true
}

// parseCommand classifies and parses a single, already workspace-aware
// command. workspace is the current prefix (including trailing '.',
// or "" if none); it qualifies every name-producing form.
func parseCommand(text string, workspace string) (Step, error) {
	switch {
	case strings.HasPrefix(text, "set'"):
		return parseSet(text, workspace)
	case strings.HasPrefix(text, "get'"):
		return parseGet(text, workspace)
	case strings.HasPrefix(text, "if'"):
		return parseBranch(text, "if", OpIf, workspace)
	case strings.HasPrefix(text, "ifn'"):
		return parseBranch(text, "ifn", OpIfn, workspace)
	case strings.HasPrefix(text, "img'"):
		return parseImg(text)
	case strings.HasPrefix(text, "import'"):
		return parseImport(text)
	case strings.HasPrefix(text, "c'"):
		return parseCompute(text)
	case text == "load" || strings.HasPrefix(text, "load'"):
		return parseLoad(text)
	}

	if text == "" {
		return Step{}, fmt.Errorf("empty command")
	}

	if op, ok := keywords[text]; ok {
		return Step{Op: op}, nil
	}

	if len(text) >= 2 && text[0] == '\'' {
		s, err := parseStringLiteral(text)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpPushTensor, Tensor: tensor.NewTextBufferView(s)}, nil
	}

	if f, err := strconv.ParseFloat(text, 32); err == nil {
		return Step{Op: OpPushTensor, Tensor: tensor.Scalar(float32(f))}, nil
	}

	if strings.HasPrefix(text, "[") {
		t, err := parseTensorLiteral(text)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpPushTensor, Tensor: t}, nil
	}

	// Fallback: an unmatched bare identifier is a pending subroutine
	// call, possibly a short-form `name = N` variable declaration
	// (resolved in collectVariables) or a plain call-by-name (resolved
	// in resolveReferences).
	return Step{Op: OpCall, BranchName: workspace + text, Unqualified: text, rawText: text}, nil
}

func parseSet(text, workspace string) (Step, error) {
	name, rest, err := splitQuoted(text, "set")
	if err != nil {
		return Step{}, err
	}
	rest = strings.TrimSpace(rest)
	size := 0
	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Step{}, fmt.Errorf("set'%s' has invalid size %q: %w", name, rest, err)
		}
		size = n
	}
	if err := validateVarSize(size); err != nil {
		return Step{}, err
	}
	return Step{Op: OpSet, VarName: workspace + name, Unqualified: name, VarSize: size, IsBigVar: size == 0}, nil
}

func parseGet(text, workspace string) (Step, error) {
	name, _, err := splitQuoted(text, "get")
	if err != nil {
		return Step{}, err
	}
	return Step{Op: OpGet, VarName: workspace + name, Unqualified: name}, nil
}

func parseBranch(text, prefix string, op Op, workspace string) (Step, error) {
	name, _, err := splitQuoted(text, prefix)
	if err != nil {
		return Step{}, err
	}
	return Step{Op: op, BranchName: workspace + name, Unqualified: name}, nil
}

func parseImg(text string) (Step, error) {
	name, _, err := splitQuoted(text, "img")
	if err != nil {
		return Step{}, err
	}
	return Step{Op: OpImg, Path: name}, nil
}

// parseImport handles `import'path'` (spec.md §1's out-of-scope "thin
// wrapper over an external parser" scene loader, supplemented from
// original_source/tensorGltf.c): like img, the path is resolved at
// evaluation time, not baked into a literal.
func parseImport(text string) (Step, error) {
	name, _, err := splitQuoted(text, "import")
	if err != nil {
		return Step{}, err
	}
	return Step{Op: OpImport, Path: name}, nil
}

func parseLoad(text string) (Step, error) {
	if text == "load" {
		return Step{Op: OpLoadFromStack}, nil
	}
	name, _, err := splitQuoted(text, "load")
	if err != nil {
		return Step{}, err
	}
	return Step{Op: OpLoad, Path: name}, nil
}

// splitQuoted extracts the single quoted section following prefix
// (e.g. splitQuoted("set'x' 4", "set") -> "x", " 4", nil).
func splitQuoted(text, prefix string) (quoted, rest string, err error) {
	body := text[len(prefix):]
	if len(body) == 0 || body[0] != '\'' {
		return "", "", fmt.Errorf("%s: expected quoted name", prefix)
	}
	body = body[1:]
	end := strings.IndexByte(body, '\'')
	if end < 0 {
		return "", "", fmt.Errorf("%s: unterminated quoted name", prefix)
	}
	return body[:end], body[end+1:], nil
}

func validateVarSize(size int) error {
	switch size {
	case 0, 1, 2, 3, 4, 16:
		return nil
	}
	return fmt.Errorf("invalid variable size %d: must be one of 0,1,2,3,4,16", size)
}

// parseCompute parses `c'VPRE'V'PRE'MAIN' A R C U` into a Step whose
// ComputeSpec is ready for internal/compute.Synthesize once pass 4's
// variable names are known (spec.md §4.5 pass 5 invokes the
// synthesizer; here we only record the fragments and numeric
// arguments parsed from source).
func parseCompute(text string) (Step, error) {
	sections, tail, err := quotedSections(text, 4)
	if err != nil {
		return Step{}, err
	}
	fields := strings.Fields(tail)
	// fields[0] is the leftover "c" prefix token.
	if len(fields) != 5 {
		return Step{}, fmt.Errorf("compute declaration expects 4 numeric arguments (argCount retCount channels reuse), got %v", fields[1:])
	}
	nums := make([]int, 4)
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Step{}, fmt.Errorf("compute declaration: invalid numeric argument %q: %w", f, err)
		}
		nums[i] = n
	}
	spec := compute.Spec{
		VertexPre:    sections[0],
		Vertex:       sections[1],
		FragmentPre:  sections[2],
		FragmentMain: sections[3],
		ArgCount:     nums[0],
		RetCount:     nums[1],
		Channels:     uint32(nums[2]),
		Reuse:        nums[3] != 0,
	}
	return Step{Op: OpCompute, ComputeSpec: spec}, nil
}
