//go:build cuda

package native

/*
#cgo LDFLAGS: -lcudart -lcublas

// Forward declarations so the CUDA headers are not needed at compile time.
// The linker still requires libcudart and libcublas with the cuda tag.
typedef void* cudaStream_t;
typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaGetDevice(int* device);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaDeviceGetAttribute(int* value, int attr, int device);
extern cudaError_t cudaDeviceGetPCIBusId(char* busId, int len, int device);
extern cudaError_t cudaDeviceSynchronize(void);
extern cudaError_t cudaStreamCreateWithFlags(cudaStream_t* stream, unsigned int flags);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMemcpy(void* dst, const void* src, unsigned long long size, int kind);

#define DEVPLANE_CUDA_STREAM_NON_BLOCKING 1
#define DEVPLANE_CUDA_MEMCPY_HOST_TO_DEVICE 1
#define DEVPLANE_CUDA_MEMCPY_DEVICE_TO_HOST 2

typedef struct cublasContext* cublasHandle_t;
typedef int cublasStatus_t;

extern cublasStatus_t cublasCreate_v2(cublasHandle_t* handle);
extern cublasStatus_t cublasDestroy_v2(cublasHandle_t handle);
extern cublasStatus_t cublasSetStream_v2(cublasHandle_t handle, cudaStream_t stream);
extern cublasStatus_t cublasGemmEx(
	cublasHandle_t handle,
	int transa,
	int transb,
	int m,
	int n,
	int k,
	const void* alpha,
	const void* A,
	int Atype,
	int lda,
	const void* B,
	int Btype,
	int ldb,
	const void* beta,
	void* C,
	int Ctype,
	int ldc,
	int computeType,
	int algo);
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/devplane/internal/devctx"
)

// Device attribute ids (cudaDeviceAttr).
const (
	AttrMaxThreadsPerBlock     = 1
	AttrMultiProcessorCount    = 16
	AttrComputeCapabilityMajor = 75
	AttrComputeCapabilityMinor = 76
)

type Stream struct {
	ptr C.cudaStream_t
}

type BlasHandle struct {
	ptr C.cublasHandle_t
}

type DeviceBuffer struct {
	ptr   unsafe.Pointer
	bytes int64
}

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.cudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// Device returns the calling thread's active device.
func Device() (int, error) {
	var dev C.int
	if err := cudaErr(C.cudaGetDevice(&dev)); err != nil {
		return 0, err
	}
	return int(dev), nil
}

// SetDevice makes device active on the calling thread.
func SetDevice(device int) error {
	return cudaErr(C.cudaSetDevice(C.int(device)))
}

func DeviceAttribute(attr, device int) (int, error) {
	var v C.int
	if err := cudaErr(C.cudaDeviceGetAttribute(&v, C.int(attr), C.int(device))); err != nil {
		return 0, err
	}
	return int(v), nil
}

// PCIBusID returns the device's bus id as "domain:bus:device.function".
func PCIBusID(device int) (string, error) {
	var buf [32]C.char
	if err := cudaErr(C.cudaDeviceGetPCIBusId(&buf[0], C.int(len(buf)), C.int(device))); err != nil {
		return "", err
	}
	return C.GoString(&buf[0]), nil
}

// Synchronize waits for all work on the active device.
func Synchronize() error {
	return cudaErr(C.cudaDeviceSynchronize())
}

// NewStream creates a non-blocking stream on the active device.
func NewStream() (Stream, error) {
	var stream C.cudaStream_t
	if err := cudaErr(C.cudaStreamCreateWithFlags(&stream, C.DEVPLANE_CUDA_STREAM_NON_BLOCKING)); err != nil {
		return Stream{}, err
	}
	return Stream{ptr: stream}, nil
}

func (s Stream) Destroy() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.cudaStreamDestroy(s.ptr))
}

func (s Stream) Ptr() unsafe.Pointer {
	return unsafe.Pointer(s.ptr)
}

func (s Stream) Synchronize() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.cudaStreamSynchronize(s.ptr))
}

func AllocDevice(bytes int64) (DeviceBuffer, error) {
	if bytes <= 0 {
		return DeviceBuffer{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.cudaMalloc(&ptr, C.ulonglong(bytes))); err != nil {
		return DeviceBuffer{}, err
	}
	return DeviceBuffer{ptr: ptr, bytes: bytes}, nil
}

func (b DeviceBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.cudaFree(b.ptr))
}

func (b DeviceBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

func (b DeviceBuffer) Bytes() int64 {
	return b.bytes
}

func MemcpyH2D(dst DeviceBuffer, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if int64(len(src)) > dst.bytes {
		return fmt.Errorf("copy of %d bytes overflows %d byte buffer", len(src), dst.bytes)
	}
	return cudaErr(C.cudaMemcpy(dst.ptr, unsafe.Pointer(&src[0]), C.ulonglong(len(src)), C.DEVPLANE_CUDA_MEMCPY_HOST_TO_DEVICE))
}

func MemcpyD2H(dst []byte, src DeviceBuffer) error {
	if len(dst) == 0 {
		return nil
	}
	if int64(len(dst)) > src.bytes {
		return fmt.Errorf("copy of %d bytes overruns %d byte buffer", len(dst), src.bytes)
	}
	return cudaErr(C.cudaMemcpy(unsafe.Pointer(&dst[0]), src.ptr, C.ulonglong(len(dst)), C.DEVPLANE_CUDA_MEMCPY_DEVICE_TO_HOST))
}

// NewBlasHandle creates a cuBLAS handle on the active device bound to stream.
func NewBlasHandle(stream Stream) (BlasHandle, error) {
	var handle C.cublasHandle_t
	if err := cublasErr(C.cublasCreate_v2(&handle)); err != nil {
		return BlasHandle{}, err
	}
	if err := cublasErr(C.cublasSetStream_v2(handle, stream.ptr)); err != nil {
		_ = cublasErr(C.cublasDestroy_v2(handle))
		return BlasHandle{}, err
	}
	return BlasHandle{ptr: handle}, nil
}

func (h BlasHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cublasErr(C.cublasDestroy_v2(h.ptr))
}

type BlasDataType int

const (
	BlasF32  BlasDataType = 0  // CUDA_R_32F
	BlasF16  BlasDataType = 2  // CUDA_R_16F
	BlasI8   BlasDataType = 3  // CUDA_R_8I
	BlasI32  BlasDataType = 10 // CUDA_R_32I
	BlasBF16 BlasDataType = 14 // CUDA_R_16BF
)

type BlasComputeType int

const (
	BlasCompute16F BlasComputeType = 64 // CUBLAS_COMPUTE_16F
	BlasCompute32F BlasComputeType = 68 // CUBLAS_COMPUTE_32F
	BlasCompute32I BlasComputeType = 72 // CUBLAS_COMPUTE_32I
)

type BlasOp int

const (
	BlasOpN BlasOp = 0 // CUBLAS_OP_N
	BlasOpT BlasOp = 1 // CUBLAS_OP_T
)

const blasGemmDefault = -1 // CUBLAS_GEMM_DEFAULT

// GemmScalars holds alpha and beta in the compute type's width.
type GemmScalars struct {
	Alpha, Beta unsafe.Pointer
}

// GemmEx runs C = alpha*op(A)*op(B) + beta*C on h's stream.
func GemmEx(h BlasHandle, transA, transB BlasOp, m, n, k int, s GemmScalars,
	a DeviceBuffer, aType BlasDataType, lda int,
	b DeviceBuffer, bType BlasDataType, ldb int,
	c DeviceBuffer, cType BlasDataType, ldc int,
	compute BlasComputeType) error {
	return cublasErr(C.cublasGemmEx(
		h.ptr,
		C.int(transA),
		C.int(transB),
		C.int(m),
		C.int(n),
		C.int(k),
		s.Alpha,
		a.ptr,
		C.int(aType),
		C.int(lda),
		b.ptr,
		C.int(bType),
		C.int(ldb),
		s.Beta,
		c.ptr,
		C.int(cType),
		C.int(ldc),
		C.int(compute),
		C.int(blasGemmDefault),
	))
}

func cublasErr(code C.cublasStatus_t) error {
	return devctx.Check(int(code), devctx.Blas)
}

func cudaErr(code C.cudaError_t) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.cudaGetErrorString(code))
	return devctx.TranslateMessage(int(code), devctx.Compute, msg)
}
