//go:build cudnn

package devctx

import (
	"errors"
	"fmt"
)

// DNNHandle is a DNN-primitives library context bound to a stream.
type DNNHandle interface {
	Destroy() error
}

// DNNDriver is implemented by drivers built with the DNN-primitives backend.
type DNNDriver interface {
	NewDNNHandle(device int, stream Stream) (DNNHandle, error)
}

var errNoDNNDriver = errors.New("driver does not provide dnn handles")

type dnnSlot struct {
	handle DNNHandle
}

func (s *dnnSlot) create(drv Driver, device int, stream Stream) error {
	dd, ok := drv.(DNNDriver)
	if !ok {
		return errNoDNNDriver
	}
	h, err := dd.NewDNNHandle(device, stream)
	if err != nil {
		return err
	}
	s.handle = h
	return nil
}

func (s *dnnSlot) destroy() error {
	if s.handle == nil {
		return nil
	}
	return s.handle.Destroy()
}

// DNN returns the context's DNN handle.
func (ec *ExecutionContext) DNN() DNNHandle {
	return ec.dnn.handle
}

// DNN returns the calling thread's DNN handle for device.
func (r *Registry) DNN(device int) (DNNHandle, error) {
	ec, err := r.Context(device)
	if err != nil {
		return nil, err
	}
	return ec.dnn.handle, nil
}

// DataType is an element type of the runtime's tensors.
type DataType int

const (
	Float32 DataType = iota
	Int8
	Int16
	Int32
	Float16
	BFloat16
)

func (t DataType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// DNNDataType is the DNN library's data type enum (cudnnDataType_t).
type DNNDataType int

const (
	DNNFloat    DNNDataType = 0
	DNNHalf     DNNDataType = 2
	DNNInt8     DNNDataType = 3
	DNNInt32    DNNDataType = 4
	DNNBFloat16 DNNDataType = 9
)

// DNNDataTypeOf maps t to the DNN library's type. Int16 has no counterpart.
func DNNDataTypeOf(t DataType) (DNNDataType, error) {
	switch t {
	case Float32:
		return DNNFloat, nil
	case Float16:
		return DNNHalf, nil
	case BFloat16:
		return DNNBFloat16, nil
	case Int32:
		return DNNInt32, nil
	case Int8:
		return DNNInt8, nil
	}
	return 0, fmt.Errorf("%w: no dnn data type for %s", ErrInvalidArgument, t)
}
