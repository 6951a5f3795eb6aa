//go:build cuda && cudnn

package cuda

import (
	"github.com/samcharles93/devplane/internal/backend/cuda/native"
	"github.com/samcharles93/devplane/internal/devctx"
)

var _ devctx.DNNDriver = (*Driver)(nil)

// NewDNNHandle creates a cuDNN handle on the active device bound to stream.
func (d *Driver) NewDNNHandle(device int, stream devctx.Stream) (devctx.DNNHandle, error) {
	s, ok := stream.(native.Stream)
	if !ok {
		return nil, foreignHandle("stream", stream)
	}
	h, err := native.NewDNNHandle(s)
	if err != nil {
		return nil, err
	}
	return h, nil
}
