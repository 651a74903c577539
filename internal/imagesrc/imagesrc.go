// Package imagesrc decodes an image file into the host tensor layout
// the IMG step pushes (spec.md §4.6/§6): rank-3, shape (width, height,
// 4), normalized to [0,1]. disintegration/imaging is used for decode
// and orientation correction rather than image/png+image/jpeg by hand,
// matching the rest of the module's "never hand-roll what the
// ecosystem already does well" discipline.
package imagesrc

import (
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/soypat/atlas/internal/tensor"
)

// LoadFile opens and decodes the image at path.
func LoadFile(path string) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagesrc: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes an image from r into a rank-3 (width, height, 4) host
// tensor. Width is the outer (axis 0) dimension, matching the
// convention IMG and every GPU-resident channeled tensor share (the
// original's row-major image buffers are X-outer when read back onto
// the tensor stack).
func Load(r io.Reader) (*tensor.Tensor, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imagesrc: decode: %w", err)
	}
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	data := make([]float32, w*h*4)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			off := nrgba.PixOffset(x, y)
			base := (x*h + y) * 4
			for c := 0; c < 4; c++ {
				data[base+c] = float32(nrgba.Pix[off+c]) / 255
			}
		}
	}
	shape := [tensor.MaxRank]uint32{uint32(w), uint32(h), 4, 1}
	return tensor.New(3, shape, data), nil
}
