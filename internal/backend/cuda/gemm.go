//go:build cuda

package cuda

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/x448/float16"

	"github.com/samcharles93/devplane/internal/backend/cuda/native"
	"github.com/samcharles93/devplane/internal/devctx"
)

// HalfGemm describes C = alpha*op(A)*op(B) + beta*C over column-major fp16
// matrices already resident on the device.
type HalfGemm struct {
	TransA, TransB bool
	M, N, K        int
	Alpha, Beta    float32
	A, B, C        native.DeviceBuffer
	LDA, LDB, LDC  int
}

func (g HalfGemm) validate() error {
	if g.M <= 0 || g.N <= 0 || g.K <= 0 {
		return fmt.Errorf("gemm shape %dx%dx%d: %w", g.M, g.N, g.K, devctx.ErrInvalidArgument)
	}
	rowsA, rowsB := g.M, g.K
	if g.TransA {
		rowsA = g.K
	}
	if g.TransB {
		rowsB = g.N
	}
	if g.LDA < rowsA || g.LDB < rowsB || g.LDC < g.M {
		return fmt.Errorf("gemm leading dimensions %d/%d/%d too small: %w", g.LDA, g.LDB, g.LDC, devctx.ErrInvalidArgument)
	}
	return nil
}

// Computation returns the cuBLAS accumulation type the current GEMM mode
// selects for fp16 inputs.
func Computation(mode *devctx.GemmMode) native.BlasComputeType {
	if mode.TrueFP16() {
		return native.BlasCompute16F
	}
	return native.BlasCompute32F
}

// RunHalfGemm dispatches g on the calling thread's BLAS handle for device.
// The accumulation type follows the manager's GEMM mode at the time of the
// call. The caller must hold its OS thread lock.
func RunHalfGemm(m *devctx.Manager, device int, g HalfGemm) error {
	if err := g.validate(); err != nil {
		return err
	}
	h, err := m.Registry().Blas(device)
	if err != nil {
		return err
	}
	blas, ok := h.(native.BlasHandle)
	if !ok {
		return foreignHandle("blas handle", h)
	}

	compute := Computation(m.Gemm())
	var scalars native.GemmScalars
	alpha32, beta32 := g.Alpha, g.Beta
	alpha16, beta16 := halfBits(g.Alpha), halfBits(g.Beta)
	if compute == native.BlasCompute16F {
		scalars = native.GemmScalars{Alpha: unsafe.Pointer(&alpha16), Beta: unsafe.Pointer(&beta16)}
	} else {
		scalars = native.GemmScalars{Alpha: unsafe.Pointer(&alpha32), Beta: unsafe.Pointer(&beta32)}
	}

	err = native.GemmEx(blas, blasOp(g.TransA), blasOp(g.TransB), g.M, g.N, g.K, scalars,
		g.A, native.BlasF16, g.LDA,
		g.B, native.BlasF16, g.LDB,
		g.C, native.BlasF16, g.LDC,
		compute)
	runtime.KeepAlive(&alpha16)
	runtime.KeepAlive(&beta16)
	runtime.KeepAlive(&alpha32)
	runtime.KeepAlive(&beta32)
	if err != nil {
		return fmt.Errorf("half gemm on device %d: %w", device, err)
	}
	return nil
}

func blasOp(trans bool) native.BlasOp {
	if trans {
		return native.BlasOpT
	}
	return native.BlasOpN
}

// halfBits converts f to IEEE binary16, rounding to nearest even.
func halfBits(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}
