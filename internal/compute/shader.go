// Package compute synthesizes and drives the vertex+fragment shader
// pairs behind Atlas's GPU compute steps (spec.md §4.4): a user writes
// four GLSL fragments (vertex preamble, vertex body, fragment
// preamble, fragment body), and Synthesize wraps them with the
// argument-sampler uniforms, per-argument element-load helpers, and
// one of two footers (generic packed or channeled) the draw needs.
package compute

import (
	"fmt"
	"strings"

	"github.com/soypat/atlas/internal/tensor"
)

// argNames are the single-letter identifiers the synthesized shader
// assigns to argument positions 0..5 (spec.md §4.4: "six possible
// argument positions a..f").
var argNames = [6]string{"a", "b", "c", "d", "e", "f"}

// Spec is a parsed `c'VPRE'V'PRE'MAIN' A R C U` compute declaration.
type Spec struct {
	VertexPre   string
	Vertex      string
	FragmentPre string
	FragmentMain string
	ArgCount    int
	RetCount    int
	Channels    uint32
	Reuse       bool
}

// Synthesize builds the vertex and fragment shader source for spec,
// given the names of every program variable that must be exposed in
// the shared uniform block (spec.md §4.5 step 4's GLSL-safe renaming:
// dots become underscores).
func Synthesize(spec Spec, varNames []string) (vertexSrc, fragmentSrc string, err error) {
	if spec.ArgCount < 0 || spec.ArgCount > 6 {
		return "", "", fmt.Errorf("compute: argument count %d out of range [0,6]", spec.ArgCount)
	}
	if spec.RetCount < 1 || spec.RetCount > 4 {
		return "", "", fmt.Errorf("compute: return count %d out of range [1,4]", spec.RetCount)
	}
	vertexSrc = synthesizeVertex(spec)
	fragmentSrc = synthesizeFragment(spec, varNames)
	return vertexSrc, fragmentSrc, nil
}

func synthesizeVertex(spec Spec) string {
	var b strings.Builder
	b.WriteString("#version 460 core\n")
	b.WriteString(spec.VertexPre)
	b.WriteString("\n")
	b.WriteString(`const vec2 _a_corners[6] = vec2[6](
	vec2(-1.0, -1.0), vec2(1.0, -1.0), vec2(-1.0, 1.0),
	vec2(-1.0, 1.0), vec2(1.0, -1.0), vec2(1.0, 1.0)
);
`)
	b.WriteString("void main() {\n")
	b.WriteString("vec4 ret = vec4(_a_corners[gl_VertexID % 6], 0.0, 1.0);\n")
	b.WriteString(spec.Vertex)
	b.WriteString("\ngl_Position = ret;\n}\n")
	b.WriteByte(0)
	return b.String()
}

func glslSafe(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func synthesizeFragment(spec Spec, varNames []string) string {
	var b strings.Builder
	b.WriteString("#version 460 core\n")

	for i := 0; i < spec.ArgCount; i++ {
		x := argNames[i]
		fmt.Fprintf(&b, "uniform ivec4 _a_%sstrides;\n", x)
		fmt.Fprintf(&b, "uniform int _a_%stoffset;\n", x)
		fmt.Fprintf(&b, "uniform ivec2 _a_%sdims;\n", x)
		fmt.Fprintf(&b, "uniform sampler2DArray _a_%stex;\n", x)
	}
	b.WriteString("uniform ivec4 _a_dims;\n")
	b.WriteString("uniform ivec4 _a_strides;\n")

	if len(varNames) > 0 {
		b.WriteString("layout(std140) uniform AtlasVars {\n")
		for _, v := range varNames {
			fmt.Fprintf(&b, "\tvec4 %s;\n", glslSafe(v))
		}
		b.WriteString("};\n")
	}

	for i := 0; i < spec.ArgCount; i++ {
		x := argNames[i]
		fmt.Fprintf(&b, `float %s(ivec4 i) {
	int linear = i.x*_a_%sstrides.x + i.y*_a_%sstrides.y + i.z*_a_%sstrides.z + i.w*_a_%sstrides.w + _a_%stoffset;
	int texel = linear / 4;
	int comp = linear %% 4;
	int tx = texel %% _a_%sdims.x;
	int ty = texel / _a_%sdims.x;
	vec4 v = texelFetch(_a_%stex, ivec3(tx, ty, 0), 0);
	return v[comp];
}
`, x, x, x, x, x, x, x, x, x)
		fmt.Fprintf(&b, "vec4 %sf(vec3 uv) { return texture(_a_%stex, uv); }\n", x, x)
	}

	b.WriteString(spec.FragmentPre)
	b.WriteString("\n")

	switch {
	case spec.Channels == tensor.ChannelGeneric:
		writeGenericFooter(&b, spec, spec.RetCount)
	default:
		writeChanneledFooter(&b, spec, spec.RetCount)
	}
	b.WriteByte(0)
	return b.String()
}

// writeGenericFooter evaluates the user body four times per fragment,
// once per packed RGBA component, binding i (an ivec4) and ifloat (the
// linear index as a float) to the logical element being computed
// (spec.md §4.4). t and tf are not declared in this footer.
func writeGenericFooter(b *strings.Builder, spec Spec, retCount int) {
	for r := 0; r < retCount; r++ {
		fmt.Fprintf(b, "layout(location = %d) out vec4 _a_fragColor%d;\n", r, r)
	}
	b.WriteString("void main() {\n")
	b.WriteString("int _a_texel = int(gl_FragCoord.x) + int(gl_FragCoord.y)*_a_dims.x;\n")
	for r := 0; r < retCount; r++ {
		fmt.Fprintf(b, "vec4 _a_out%d;\n", r)
		for comp := 0; comp < 4; comp++ {
			fmt.Fprintf(b, "{\nint linear = _a_texel*4 + %d;\nivec4 i = ivec4(linear %% _a_dims.x, (linear/_a_dims.x) %% _a_dims.y, (linear/(_a_dims.x*_a_dims.y)) %% _a_dims.z, linear/(_a_dims.x*_a_dims.y*_a_dims.z));\nfloat ifloat = float(linear);\nfloat _a_result;\n", comp)
			b.WriteString(spec.FragmentMain)
			fmt.Fprintf(b, "\n_a_out%d[%d] = _a_result;\n}\n", r, comp)
		}
		fmt.Fprintf(b, "_a_fragColor%d = _a_out%d;\n", r, r)
	}
	b.WriteString("}\n")
}

// writeChanneledFooter evaluates the user body once per fragment, with
// tf bound to gl_FragCoord.xy, typed according to spec.Channels.
func writeChanneledFooter(b *strings.Builder, spec Spec, retCount int) {
	count := tensor.ChannelCount(spec.Channels)
	glslType := map[uint32]string{1: "float", 2: "vec2", 3: "vec3", 4: "vec4"}[count]
	for r := 0; r < retCount; r++ {
		fmt.Fprintf(b, "layout(location = %d) out %s _a_fragColor%d;\n", r, glslType, r)
	}
	b.WriteString("void main() {\n")
	b.WriteString("vec2 tf = gl_FragCoord.xy;\n")
	fmt.Fprintf(b, "%s _a_result;\n", glslType)
	for r := 0; r < retCount; r++ {
		b.WriteString(spec.FragmentMain)
		fmt.Fprintf(b, "_a_fragColor%d = %s(_a_result);\n", r, glslType)
	}
	b.WriteString("}\n")
}
