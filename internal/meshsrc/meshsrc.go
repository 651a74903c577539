// Package meshsrc is the built-in implementation of the scene-import
// wrapper spec.md §1 scopes out as "a thin wrapper over an external
// parser": it parses the minimal JSON+binary-buffer glTF 2.0 subset
// original_source/tensorGltf.c reads (POSITION/indices/JOINTS_0/
// WEIGHTS_0 accessors, one animation's first channel) into tensors,
// using encoding/json the way the pack's own
// Carmen-Shannon-oxy-go/engine/loader glTF loader does — no ecosystem
// glTF library exists anywhere in the retrieved pack, so this is the
// one ambient-but-stdlib component in the module (see DESIGN.md).
package meshsrc

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/atlas/internal/tensor"
)

// Loader resolves an import'path' step to a parsed Mesh. cmd/atlas
// wires this to Load; tests can substitute a fake.
type Loader interface {
	Load(path string) (*Mesh, error)
}

// Mesh is everything IMPORT pushes onto the stack, in push order:
// Positions (N,3), Indices (M), Joints (N,4), Weights (N,4),
// AnimTimes (K), AnimValues (K,3|4). Animation fields are nil if the
// asset declares no animations.
type Mesh struct {
	Positions *tensor.Tensor
	Indices   *tensor.Tensor
	Joints    *tensor.Tensor
	Weights   *tensor.Tensor
	AnimTimes *tensor.Tensor
	AnimValues *tensor.Tensor
}

type fileLoader struct{}

// Default is the stdlib-file-backed Loader cmd/atlas uses.
var Default Loader = fileLoader{}

func (fileLoader) Load(path string) (*Mesh, error) { return Load(path) }

// --- glTF JSON document (the fields tensorGltf.c actually reads) ---

type document struct {
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
	Meshes      []gltfMesh       `json:"meshes"`
	Animations  []gltfAnimation  `json:"animations"`
}

type gltfBuffer struct {
	URI        string `json:"uri"`
	ByteLength int    `json:"byteLength"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

type gltfAccessor struct {
	BufferView    int    `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	Normalized    bool   `json:"normalized"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
}

type gltfAnimation struct {
	Channels []gltfChannel `json:"channels"`
	Samplers []gltfSampler `json:"samplers"`
}

type gltfChannel struct {
	Sampler int `json:"sampler"`
	Target  struct {
		Node int    `json:"node"`
		Path string `json:"path"`
	} `json:"target"`
}

type gltfSampler struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// glTF component type codes (glTF 2.0 §5.11).
const (
	componentByte   = 5120
	componentUByte  = 5121
	componentShort  = 5122
	componentUShort = 5123
	componentUInt   = 5125
	componentFloat  = 5126
)

func numComponents(typ string) int {
	switch typ {
	case "SCALAR":
		return 1
	case "VEC2":
		return 2
	case "VEC3":
		return 3
	case "VEC4":
		return 4
	}
	return 0
}

// Load reads and parses the glTF JSON document at path, resolving its
// buffer(s) (a data: URI or a sibling file alongside path), and
// extracts the first mesh primitive's positions/indices/joints/
// weights plus the first animation's first channel's keyframes.
func Load(path string) (*Mesh, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meshsrc: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("meshsrc: parse %s: %w", path, err)
	}

	buffers := make([][]byte, len(doc.Buffers))
	for i, b := range doc.Buffers {
		data, err := resolveBuffer(filepath.Dir(path), b)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: buffer %d: %w", i, err)
		}
		buffers[i] = data
	}

	if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
		return nil, fmt.Errorf("meshsrc: %s has no mesh primitives", path)
	}
	prim := doc.Meshes[0].Primitives[0]

	mesh := &Mesh{}
	if idx, ok := prim.Attributes["POSITION"]; ok {
		mesh.Positions, err = readVectorAccessor(doc, buffers, idx, 3)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: POSITION: %w", err)
		}
	}
	if prim.Indices != nil {
		mesh.Indices, err = readScalarAccessor(doc, buffers, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: indices: %w", err)
		}
	}
	if idx, ok := prim.Attributes["JOINTS_0"]; ok {
		mesh.Joints, err = readVectorAccessor(doc, buffers, idx, 4)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: JOINTS_0: %w", err)
		}
	}
	if idx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		mesh.Weights, err = readVectorAccessor(doc, buffers, idx, 4)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: WEIGHTS_0: %w", err)
		}
	}

	if len(doc.Animations) > 0 && len(doc.Animations[0].Channels) > 0 {
		anim := doc.Animations[0]
		chan0 := anim.Channels[0]
		samp := anim.Samplers[chan0.Sampler]
		mesh.AnimTimes, err = readScalarAccessor(doc, buffers, samp.Input)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: animation input: %w", err)
		}
		n := numComponents(doc.Accessors[samp.Output].Type)
		mesh.AnimValues, err = readVectorAccessor(doc, buffers, samp.Output, n)
		if err != nil {
			return nil, fmt.Errorf("meshsrc: animation output: %w", err)
		}
	}

	return mesh, nil
}

func resolveBuffer(baseDir string, b gltfBuffer) ([]byte, error) {
	const dataPrefix = "data:application/octet-stream;base64,"
	if strings.HasPrefix(b.URI, dataPrefix) {
		return base64.StdEncoding.DecodeString(b.URI[len(dataPrefix):])
	}
	if idx := strings.Index(b.URI, ";base64,"); idx >= 0 {
		return base64.StdEncoding.DecodeString(b.URI[idx+len(";base64,"):])
	}
	return os.ReadFile(filepath.Join(baseDir, b.URI))
}

// readRaw decodes an accessor's elements into a flat []float32 in
// storage order (count * numComponents(accessor.Type) values),
// applying glTF's normalized-integer convention (divide by the
// component type's max value) when Normalized is set.
func readRaw(doc document, buffers [][]byte, accessorIdx int) ([]float32, int, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, 0, fmt.Errorf("accessor index %d out of range", accessorIdx)
	}
	acc := doc.Accessors[accessorIdx]
	view := doc.BufferViews[acc.BufferView]
	buf := buffers[view.Buffer]
	base := view.ByteOffset + acc.ByteOffset

	n := numComponents(acc.Type)
	if n == 0 {
		return nil, 0, fmt.Errorf("unsupported accessor type %q", acc.Type)
	}
	total := acc.Count * n
	out := make([]float32, total)

	compSize := componentSize(acc.ComponentType)
	for i := 0; i < total; i++ {
		off := base + i*compSize
		v, err := readComponent(buf, off, acc.ComponentType)
		if err != nil {
			return nil, 0, err
		}
		if acc.Normalized {
			v = normalize(v, acc.ComponentType)
		}
		out[i] = v
	}
	return out, n, nil
}

func componentSize(componentType int) int {
	switch componentType {
	case componentByte, componentUByte:
		return 1
	case componentShort, componentUShort:
		return 2
	case componentUInt, componentFloat:
		return 4
	}
	return 0
}

func readComponent(buf []byte, off, componentType int) (float32, error) {
	if off+componentSize(componentType) > len(buf) {
		return 0, fmt.Errorf("accessor reads past end of buffer")
	}
	switch componentType {
	case componentByte:
		return float32(int8(buf[off])), nil
	case componentUByte:
		return float32(buf[off]), nil
	case componentShort:
		return float32(int16(binary.LittleEndian.Uint16(buf[off:]))), nil
	case componentUShort:
		return float32(binary.LittleEndian.Uint16(buf[off:])), nil
	case componentUInt:
		return float32(binary.LittleEndian.Uint32(buf[off:])), nil
	case componentFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])), nil
	}
	return 0, fmt.Errorf("unsupported component type %d", componentType)
}

func normalize(v float32, componentType int) float32 {
	switch componentType {
	case componentUByte:
		return v / 255
	case componentUShort:
		return v / 65535
	case componentByte:
		return max32(v/127, -1)
	case componentShort:
		return max32(v/32767, -1)
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func readVectorAccessor(doc document, buffers [][]byte, accessorIdx, components int) (*tensor.Tensor, error) {
	data, n, err := readRaw(doc, buffers, accessorIdx)
	if err != nil {
		return nil, err
	}
	if n != components {
		return nil, fmt.Errorf("expected %d-component accessor, got %d", components, n)
	}
	count := doc.Accessors[accessorIdx].Count
	var shape [tensor.MaxRank]uint32
	shape[0], shape[1] = uint32(count), uint32(components)
	return tensor.New(2, shape, data), nil
}

func readScalarAccessor(doc document, buffers [][]byte, accessorIdx int) (*tensor.Tensor, error) {
	data, n, err := readRaw(doc, buffers, accessorIdx)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, fmt.Errorf("expected scalar accessor, got %d components", n)
	}
	return tensor.Vector(data), nil
}
