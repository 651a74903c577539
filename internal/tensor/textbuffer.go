package tensor

// NewTextBufferView builds a rank-1 host tensor holding one float32 per
// rune of s, each the rune's codepoint value. String literals and
// toString results are built with it; no glyph rendering happens here.
// It never mutates s, so the returned tensor is a fresh owned
// allocation rather than a view over shared string bytes.
func NewTextBufferView(s string) *Tensor {
	runes := []rune(s)
	data := make([]float32, len(runes))
	for i, r := range runes {
		data[i] = float32(r)
	}
	return Vector(data)
}
