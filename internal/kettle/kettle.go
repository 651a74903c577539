// Package kettle implements the KETTLE/UNKETTLE wire format (spec.md
// §4.7/§6): a DEFLATE-compressed snapshot of a run of tensors, framed
// by an outer uncompressed/compressed size pair and an inner
// magic-tagged tensor list. Packing is synchronous (a KETTLE step
// always completes within its own frame); unpacking is modeled as a
// resumable state machine per spec.md §9's redesign note, since
// decompressing and reuploading a large archive can outrun a single
// frame's time budget.
package kettle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/soypat/atlas/internal/tensor"
)

const magic = 0x4B544C31 // "KTL1"

// meta is one tensor's fixed-size header within the inner stream.
// Channels/IsGPU/Mipmapped/Layers/Width/Height describe the tensor's
// GPU residency at pack time. Channels is load-bearing: it picks the
// payload's wire encoding (u8-quantized bytes for channeled 10-99
// codes, raw float32 otherwise), and decodeTensors reads it back to
// choose the matching decode path, so a channeled tensor's values
// round-trip within 1/255 as spec.md §8 requires. The rest of the
// residency metadata is descriptive only — Unpack always reconstructs
// a host tensor regardless
// (internal/tensor.ToGPUMemory re-derives a fresh generic texture
// layout the next time the value is used as a compute argument, so
// persisting the exact prior GPU layout buys nothing).
type meta struct {
	Rank      uint32
	Shape     [tensor.MaxRank]uint32
	Channels  uint32
	IsGPU     uint32
	Size      uint32
	Mipmapped uint32
	Layers    uint32
	Width     uint32
	Height    uint32
}

// gpuMeta reads a tensor's channel/residency metadata before
// EnsureContiguous discards it. Host-resident tensors have no channel
// concept (spec.md's channel code is a GPU-texture notion), so they
// report the generic/zero values with Layers normalized to 1.
func gpuMeta(t *tensor.Tensor) (channels, isGPU, mipmapped, layers, width, height uint32) {
	switch st := t.Storage.(type) {
	case *tensor.GPUStorage:
		channels = st.Channels
		isGPU = 1
		if st.Mipmapped {
			mipmapped = 1
		}
		layers = st.Layers
		width, height = st.Width, st.Height
	case *tensor.InFlightStorage:
		channels = st.Channels
	}
	if layers == 0 {
		layers = 1
	}
	return channels, isGPU, mipmapped, layers, width, height
}

// quantizeU8 maps a normalized [0,1] component to its nearest u8 code,
// matching the 1/255 tolerance decodeTensors' IsU8 branch reverses.
func quantizeU8(v float32) byte {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return byte(v*255 + 0.5)
}

// Pack writes tensors to w in kettle wire format. Each tensor is first
// made contiguous and host-resident in place (EnsureContiguous), same
// as every other op that must read a tensor's raw values.
func Pack(w io.Writer, tensors []*tensor.Tensor) error {
	var inner bytes.Buffer
	if err := binary.Write(&inner, binary.LittleEndian, uint32(magic)); err != nil {
		return err
	}
	if err := binary.Write(&inner, binary.LittleEndian, uint32(len(tensors))); err != nil {
		return err
	}
	for i, t := range tensors {
		channels, isGPU, mipmapped, layers, width, height := gpuMeta(t)
		if err := tensor.EnsureContiguous(t); err != nil {
			return fmt.Errorf("kettle: pack tensor %d: %w", i, err)
		}
		host := t.Storage.(*tensor.HostStorage)
		data := host.Data[t.Offset : t.Offset+int32(t.Size)]
		m := meta{
			Rank:      uint32(t.Rank),
			Shape:     t.Shape,
			Channels:  channels,
			IsGPU:     isGPU,
			Size:      t.Size,
			Mipmapped: mipmapped,
			Layers:    layers,
			Width:     width,
			Height:    height,
		}
		if err := binary.Write(&inner, binary.LittleEndian, m); err != nil {
			return err
		}
		if tensor.IsU8(channels) {
			raw := make([]byte, len(data))
			for j, v := range data {
				raw[j] = quantizeU8(v)
			}
			if err := binary.Write(&inner, binary.LittleEndian, raw); err != nil {
				return fmt.Errorf("kettle: pack tensor %d payload: %w", i, err)
			}
			continue
		}
		if err := binary.Write(&inner, binary.LittleEndian, data); err != nil {
			return fmt.Errorf("kettle: pack tensor %d payload: %w", i, err)
		}
	}

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("kettle: %w", err)
	}
	if _, err := fw.Write(inner.Bytes()); err != nil {
		return fmt.Errorf("kettle: deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("kettle: deflate: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(inner.Len())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(compressed.Len())); err != nil {
		return err
	}
	_, err = w.Write(compressed.Bytes())
	return err
}

// Status reports whether an UnpackState.Step call finished the unpack.
type Status int

const (
	Pending Status = iota
	Done
)

type stage int

const (
	stageStart stage = iota
	stageOpen
	stageRead
	stageUnzip
	stageUpload
	stageDone
)

// UnpackState is a resumable UNKETTLE: repeated Step calls carry it
// through opening the file, reading the compressed body, inflating
// it, and materializing tensors, each call doing as much work as fits
// in its budget before yielding back to the caller's frame loop.
type UnpackState struct {
	path  string
	stage stage

	f                                  *os.File
	uncompressedSize, compressedSize   uint32
	compressed                         []byte
	inner                              []byte
	tensors                            []*tensor.Tensor
}

// NewUnpackState begins an unpack of the kettle file at path. Call
// Step repeatedly until it returns Done.
func NewUnpackState(path string) *UnpackState {
	return &UnpackState{path: path, stage: stageStart}
}

// Tensors returns the unpacked tensors once Step has returned Done.
func (u *UnpackState) Tensors() []*tensor.Tensor { return u.tensors }

// Step advances the unpack by as many stages as fit within budget,
// returning Pending if more Step calls are needed or Done once
// Tensors is ready (or an error occurred, which also reports Done
// since there is nothing further to resume).
func (u *UnpackState) Step(budget time.Duration) (Status, error) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		switch u.stage {
		case stageStart:
			u.stage = stageOpen

		case stageOpen:
			f, err := os.Open(u.path)
			if err != nil {
				return Done, fmt.Errorf("kettle: open %s: %w", u.path, err)
			}
			u.f = f
			var sizes [2]uint32
			if err := binary.Read(f, binary.LittleEndian, &sizes); err != nil {
				f.Close()
				return Done, fmt.Errorf("kettle: read header: %w", err)
			}
			u.uncompressedSize, u.compressedSize = sizes[0], sizes[1]
			u.compressed = make([]byte, u.compressedSize)
			u.stage = stageRead

		case stageRead:
			if _, err := io.ReadFull(u.f, u.compressed); err != nil {
				u.f.Close()
				return Done, fmt.Errorf("kettle: read body: %w", err)
			}
			u.f.Close()
			u.f = nil
			u.stage = stageUnzip

		case stageUnzip:
			fr := flate.NewReader(bytes.NewReader(u.compressed))
			data, err := io.ReadAll(fr)
			fr.Close()
			if err != nil {
				return Done, fmt.Errorf("kettle: inflate: %w", err)
			}
			if uint32(len(data)) != u.uncompressedSize {
				return Done, fmt.Errorf("kettle: inflated size %d does not match header %d", len(data), u.uncompressedSize)
			}
			u.inner = data
			u.stage = stageUpload

		case stageUpload:
			tensors, err := decodeTensors(u.inner)
			if err != nil {
				return Done, err
			}
			u.tensors = tensors
			u.stage = stageDone

		case stageDone:
			return Done, nil
		}
	}
	return Pending, nil
}

func decodeTensors(data []byte) ([]*tensor.Tensor, error) {
	r := bytes.NewReader(data)
	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("kettle: read magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("kettle: bad magic 0x%x", m)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("kettle: read tensor count: %w", err)
	}
	out := make([]*tensor.Tensor, count)
	for i := range out {
		var hdr meta
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			return nil, fmt.Errorf("kettle: read tensor %d header: %w", i, err)
		}
		var payload []float32
		if tensor.IsU8(hdr.Channels) {
			raw := make([]byte, hdr.Size)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("kettle: read tensor %d payload: %w", i, err)
			}
			payload = make([]float32, hdr.Size)
			for j, b := range raw {
				payload[j] = float32(b) / 255
			}
		} else {
			payload = make([]float32, hdr.Size)
			if err := binary.Read(r, binary.LittleEndian, payload); err != nil {
				return nil, fmt.Errorf("kettle: read tensor %d payload: %w", i, err)
			}
		}
		out[i] = tensor.New(int(hdr.Rank), hdr.Shape, payload)
	}
	return out, nil
}
