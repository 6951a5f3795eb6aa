package devctx

import (
	"errors"
	"fmt"
	"strconv"
)

// Subsystem names the native library a status code came from.
type Subsystem string

const (
	Compute    Subsystem = "compute"
	Blas       Subsystem = "blas"
	DNN        Subsystem = "dnn"
	Management Subsystem = "management"
)

// StatusError is the uniform report for a non-success native status.
type StatusError struct {
	Subsystem Subsystem
	Code      int
	Name      string
	Message   string
}

func (e *StatusError) Error() string {
	if e.Message != "" && e.Message != e.Name {
		return fmt.Sprintf("%s failed with status %s (%d): %s", e.Subsystem, e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed with status %s (%d)", e.Subsystem, e.Name, e.Code)
}

// Translate maps a native status code to a StatusError. It returns nil for
// success, which is 0 in every supported subsystem.
func Translate(code int, sub Subsystem) *StatusError {
	if code == 0 {
		return nil
	}
	return &StatusError{
		Subsystem: sub,
		Code:      code,
		Name:      StatusName(code, sub),
	}
}

// TranslateMessage is Translate with a message reported by the native library
// itself (for example cudaGetErrorString).
func TranslateMessage(code int, sub Subsystem, msg string) *StatusError {
	st := Translate(code, sub)
	if st != nil {
		st.Message = msg
	}
	return st
}

// Check is Translate returning an error, nil on success.
func Check(code int, sub Subsystem) error {
	if st := Translate(code, sub); st != nil {
		return st
	}
	return nil
}

// statusOf extracts the native status from an error chain.
func statusOf(err error) *StatusError {
	var st *StatusError
	if errors.As(err, &st) {
		return st
	}
	return nil
}

// StatusName returns the symbolic name for code, or "unknown status code N".
func StatusName(code int, sub Subsystem) string {
	var table map[int]string
	switch sub {
	case Compute:
		table = computeStatus
	case Blas:
		table = blasStatus
	case DNN:
		table = dnnStatus
	case Management:
		table = managementStatus
	}
	if name, ok := table[code]; ok {
		return name
	}
	return "unknown status code " + strconv.Itoa(code)
}

// Common cudaError_t values. The runtime defines many more; anything missing
// falls back to the numeric form.
var computeStatus = map[int]string{
	0:   "cudaSuccess",
	1:   "cudaErrorInvalidValue",
	2:   "cudaErrorMemoryAllocation",
	3:   "cudaErrorInitializationError",
	4:   "cudaErrorCudartUnloading",
	98:  "cudaErrorInvalidDeviceFunction",
	100: "cudaErrorNoDevice",
	101: "cudaErrorInvalidDevice",
	209: "cudaErrorNoKernelImageForDevice",
	400: "cudaErrorInvalidResourceHandle",
	700: "cudaErrorIllegalAddress",
	701: "cudaErrorLaunchOutOfResources",
	702: "cudaErrorLaunchTimeout",
	719: "cudaErrorLaunchFailure",
	999: "cudaErrorUnknown",
}

var blasStatus = map[int]string{
	0:  "CUBLAS_STATUS_SUCCESS",
	1:  "CUBLAS_STATUS_NOT_INITIALIZED",
	3:  "CUBLAS_STATUS_ALLOC_FAILED",
	7:  "CUBLAS_STATUS_INVALID_VALUE",
	8:  "CUBLAS_STATUS_ARCH_MISMATCH",
	11: "CUBLAS_STATUS_MAPPING_ERROR",
	13: "CUBLAS_STATUS_EXECUTION_FAILED",
	14: "CUBLAS_STATUS_INTERNAL_ERROR",
	15: "CUBLAS_STATUS_NOT_SUPPORTED",
	16: "CUBLAS_STATUS_LICENSE_ERROR",
}

var dnnStatus = map[int]string{
	0:  "CUDNN_STATUS_SUCCESS",
	1:  "CUDNN_STATUS_NOT_INITIALIZED",
	2:  "CUDNN_STATUS_ALLOC_FAILED",
	3:  "CUDNN_STATUS_BAD_PARAM",
	4:  "CUDNN_STATUS_INTERNAL_ERROR",
	5:  "CUDNN_STATUS_INVALID_VALUE",
	6:  "CUDNN_STATUS_ARCH_MISMATCH",
	7:  "CUDNN_STATUS_MAPPING_ERROR",
	8:  "CUDNN_STATUS_EXECUTION_FAILED",
	9:  "CUDNN_STATUS_NOT_SUPPORTED",
	10: "CUDNN_STATUS_LICENSE_ERROR",
}

var managementStatus = map[int]string{
	0:   "NVML_SUCCESS",
	1:   "NVML_ERROR_UNINITIALIZED",
	2:   "NVML_ERROR_INVALID_ARGUMENT",
	3:   "NVML_ERROR_NOT_SUPPORTED",
	4:   "NVML_ERROR_NO_PERMISSION",
	6:   "NVML_ERROR_NOT_FOUND",
	9:   "NVML_ERROR_DRIVER_NOT_LOADED",
	12:  "NVML_ERROR_LIBRARY_NOT_FOUND",
	999: "NVML_ERROR_UNKNOWN",
}
