// Package internal holds small numeric constants shared across the
// math subpackages.
package internal

// Smallfloat32 is a step size suitable for float32 central finite
// differences: small enough to approximate a derivative well, large
// enough to stay well above float32 rounding noise.
const Smallfloat32 = 1.1920929e-4
