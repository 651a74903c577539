// Package printer renders a tensor as the nested ASCII box diagram
// TOSTRING/PRINT steps display (spec.md §4.8), ported from
// original_source/tensorPrint.c's recursive, alternating-orientation
// layout: a tensor's outermost axis lays its sub-blocks out
// horizontally, the next vertically, and so on, down to a single row
// of %.2f-formatted, column-aligned numbers at the innermost axis.
package printer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/soypat/atlas/internal/tensor"
)

// Format renders t's current values. t is downloaded to host memory
// and materialized contiguous first if it is not already (a GPU or
// strided tensor cannot be read element-by-element without that).
func Format(t *tensor.Tensor) (string, error) {
	if err := tensor.EnsureContiguous(t); err != nil {
		return "", fmt.Errorf("printer: %w", err)
	}
	host, ok := t.Storage.(*tensor.HostStorage)
	if !ok {
		return "", fmt.Errorf("printer: tensor is not host-resident")
	}
	data := host.Data[t.Offset : t.Offset+int32(t.Size)]

	// The original prepends a dummy leading dimension of size 1 before
	// recursing, so the outermost real axis sits at depth 1, an odd
	// (horizontal) depth, regardless of the tensor's own rank.
	shape := make([]uint32, t.Rank+1)
	shape[0] = 1
	copy(shape[1:], t.Shape[:t.Rank])

	maxLen := 0
	for _, v := range data {
		if l := len(fmt.Sprintf("%.2f", v)); l > maxLen {
			maxLen = l
		}
	}

	lines := render(0, 0, shape, data, maxLen)
	return strings.Join(lines, "\n"), nil
}

// render lays out the block starting at offset in data, recursing
// into shape[dimIndex+1:] until the innermost axis, which is rendered
// as a single row of numbers. Blocks alternate horizontal/vertical
// stacking by depth, with dimIndex itself serving as the depth
// counter since the two always advance in lockstep.
func render(dimIndex, offset int, shape []uint32, data []float32, maxLen int) []string {
	if dimIndex == len(shape)-1 {
		n := int(shape[dimIndex])
		parts := make([]string, n)
		for i := 0; i < n; i++ {
			parts[i] = fmt.Sprintf("%-*.*f", maxLen, 2, data[offset+i])
		}
		return []string{strings.TrimRight(strings.Join(parts, " "), " ")}
	}

	numBlocks := int(shape[dimIndex])
	blockSize := 1
	for i := dimIndex + 1; i < len(shape); i++ {
		blockSize *= int(shape[i])
	}
	blocks := make([][]string, numBlocks)
	for i := 0; i < numBlocks; i++ {
		blocks[i] = boxify(render(dimIndex+1, offset+i*blockSize, shape, data, maxLen))
	}
	return combine(blocks, dimIndex%2 == 1)
}

// boxify wraps lines in a "+---+ | ... | +---+" ASCII box sized to
// the widest line.
func boxify(lines []string) []string {
	width := 0
	for _, l := range lines {
		if w := utf8.RuneCountInString(l); w > width {
			width = w
		}
	}
	border := "+" + strings.Repeat("-", width+2) + "+"
	out := make([]string, 0, len(lines)+2)
	out = append(out, border)
	for _, l := range lines {
		pad := width - utf8.RuneCountInString(l)
		out = append(out, "| "+l+strings.Repeat(" ", pad)+" |")
	}
	out = append(out, border)
	return out
}

// combine stitches already-boxed blocks together, horizontally
// (side-by-side, separated by a space, padded to a common height) or
// vertically (stacked, padded to a common width).
func combine(blocks [][]string, horizontal bool) []string {
	if !horizontal {
		width := 0
		for _, b := range blocks {
			for _, l := range b {
				if w := utf8.RuneCountInString(l); w > width {
					width = w
				}
			}
		}
		var out []string
		for _, b := range blocks {
			for _, l := range b {
				if w := utf8.RuneCountInString(l); w < width {
					l += strings.Repeat(" ", width-w)
				}
				out = append(out, l)
			}
		}
		return out
	}

	height := 0
	for _, b := range blocks {
		if len(b) > height {
			height = len(b)
		}
	}
	padded := make([][]string, len(blocks))
	for i, b := range blocks {
		width := 0
		if len(b) > 0 {
			width = utf8.RuneCountInString(b[0])
		}
		p := make([]string, height)
		copy(p, b)
		for j := len(b); j < height; j++ {
			p[j] = strings.Repeat(" ", width)
		}
		padded[i] = p
	}
	out := make([]string, height)
	for row := 0; row < height; row++ {
		parts := make([]string, len(padded))
		for i := range padded {
			parts[i] = padded[i][row]
		}
		out[row] = strings.TrimRight(strings.Join(parts, " "), " ")
	}
	return out
}
