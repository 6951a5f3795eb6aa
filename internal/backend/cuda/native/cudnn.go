//go:build cuda && cudnn

package native

/*
#cgo LDFLAGS: -lcudnn

typedef void* cudaStream_t;
typedef struct cudnnContext* cudnnHandle_t;
typedef int cudnnStatus_t;

extern const char* cudnnGetErrorString(cudnnStatus_t status);
extern cudnnStatus_t cudnnCreate(cudnnHandle_t* handle);
extern cudnnStatus_t cudnnDestroy(cudnnHandle_t handle);
extern cudnnStatus_t cudnnSetStream(cudnnHandle_t handle, cudaStream_t stream);
*/
import "C"

import (
	"unsafe"

	"github.com/samcharles93/devplane/internal/devctx"
)

type DNNHandle struct {
	ptr C.cudnnHandle_t
}

// NewDNNHandle creates a cuDNN handle on the active device bound to stream.
func NewDNNHandle(stream Stream) (DNNHandle, error) {
	var handle C.cudnnHandle_t
	if err := cudnnErr(C.cudnnCreate(&handle)); err != nil {
		return DNNHandle{}, err
	}
	if err := cudnnErr(C.cudnnSetStream(handle, C.cudaStream_t(stream.Ptr()))); err != nil {
		_ = cudnnErr(C.cudnnDestroy(handle))
		return DNNHandle{}, err
	}
	return DNNHandle{ptr: handle}, nil
}

func (h DNNHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cudnnErr(C.cudnnDestroy(h.ptr))
}

func (h DNNHandle) Ptr() unsafe.Pointer {
	return unsafe.Pointer(h.ptr)
}

func cudnnErr(code C.cudnnStatus_t) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.cudnnGetErrorString(code))
	return devctx.TranslateMessage(int(code), devctx.DNN, msg)
}
