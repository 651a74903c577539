package tensor

// HostStorage is tensor data living in host memory.
type HostStorage struct {
	Data []float32
}

func (*HostStorage) isStorage() {}

// GPUStorage is tensor data living as a GPU texture with an attached
// framebuffer. A GPU tensor's generic (Channels==0) texture is always
// RGBA32F with Layers==1, packing logical elements 4-per-texel; a
// channeled (Channels!=0) tensor is rank 3 with Shape==(Width,Height,Channels)
// and may have Layers>1 when used as a texture array.
type GPUStorage struct {
	Texture     uint32
	Framebuffer uint32
	Depthbuffer uint32 // 0 until first depth-tested draw allocates it.
	Width       uint32
	Height      uint32
	Layers      uint32
	Channels    uint32
	Mipmapped   bool
}

func (*GPUStorage) isStorage() {}

// InFlightStorage is tensor data mid-asynchronous-readback via a pixel
// buffer object. Reading values from a Tensor backed by InFlightStorage
// is illegal until the transfer is completed (EndToHostMemoryAsync).
type InFlightStorage struct {
	PBO      uint32
	ByteSize uint32
	Channels uint32
}

func (*InFlightStorage) isStorage() {}

// Channel format codes (spec.md §6).
const (
	ChannelGeneric = 0
	ChannelR       = 1
	ChannelRG      = 2
	ChannelRGB     = 3
	ChannelRGBA    = 4

	channelU8Base   = 10
	channelHalfBase = 100
)

// ChannelCount returns the number of color channels (1-4) encoded by a
// channel format code, regardless of its u8/half/float32 tier.
func ChannelCount(channels uint32) uint32 {
	switch {
	case channels == ChannelGeneric:
		return 4
	case channels < channelU8Base:
		return channels
	case channels < channelHalfBase:
		return channels / channelU8Base
	default:
		return channels / channelHalfBase
	}
}

// IsU8 reports whether channels is one of the "10-series" normalized
// u8 channel codes (quantized on kettle, as spec.md §4.7/§8 describe).
func IsU8(channels uint32) bool {
	return channels >= channelU8Base && channels < channelHalfBase
}

// IsHalf reports whether channels is one of the "100-series" half-float
// channel codes.
func IsHalf(channels uint32) bool {
	return channels >= channelHalfBase
}
