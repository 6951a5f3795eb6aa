//go:build !cudnn

package devctx

type dnnSlot struct{}

func (*dnnSlot) create(Driver, int, Stream) error { return nil }

func (*dnnSlot) destroy() error { return nil }
