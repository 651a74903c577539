//go:build tinygo || !cgo

package compute

import (
	"errors"

	"github.com/soypat/atlas/internal/stack"
)

var errNoCgo = errors.New("compute: GPU compute steps need cgo")

// Compute is the no-cgo stand-in: Atlas's compute steps are unavailable
// without a real GL context.
type Compute struct{}

// Flags carries the evaluator's global render-state toggles into a draw.
type Flags struct {
	DepthTest bool
	Additive  bool
	Backface  bool
}

// New always fails on a build without cgo/OpenGL support.
func New(spec Spec, varNames []string) (*Compute, error) {
	return nil, errNoCgo
}

func (c *Compute) SetVar(name string, values []float32) {}

func (c *Compute) Delete() {}

func (c *Compute) Run(ts *stack.Stack, flags Flags, vertCount int) error {
	return errNoCgo
}
