package eval

import "github.com/soypat/atlas/internal/tensor"

// input pushes a rank-1 vector of [mouseX, mouseY, mouseDX, mouseDY,
// mouseButtons], then zeroes the delta fields: a mouse delta is an
// edge read once per frame, not a level that stays readable until
// overwritten.
func (ctx *Context) input() {
	v := tensor.Vector([]float32{
		ctx.Input.MouseX, ctx.Input.MouseY,
		ctx.Input.MouseDX, ctx.Input.MouseDY,
		ctx.Input.MouseButtons,
	})
	ctx.Input.MouseDX, ctx.Input.MouseDY = 0, 0
	ctx.Stack.Push(v)
}

// keys pushes the full keyboard state as a rank-1 vector, one float
// per key (1 held, 0 released), indexed the way cmd/atlas's key table
// assigns them.
func (ctx *Context) keys() {
	ctx.Stack.Push(tensor.Vector(ctx.Input.Keys))
}

// gamepad pushes every connected controller's axes+buttons stacked
// along a fresh leading dimension: rank-2, shape (controllerCount, 21).
func (ctx *Context) gamepad() {
	n := len(ctx.Input.Gamepads)
	data := make([]float32, n*21)
	for i, g := range ctx.Input.Gamepads {
		copy(data[i*21:], g[:])
	}
	var shape [tensor.MaxRank]uint32
	shape[0], shape[1] = uint32(n), 21
	ctx.Stack.Push(tensor.New(2, shape, data))
}

// windowSize pushes the current framebuffer size as a 2-vector.
func (ctx *Context) windowSize() {
	ctx.Stack.Push(tensor.Vector([]float32{ctx.Input.WindowW, ctx.Input.WindowH}))
}
