//go:build cuda

package cuda

import (
	"fmt"

	"github.com/samcharles93/devplane/internal/devctx"
)

// foreignHandle reports a handle that some other Driver created.
func foreignHandle(kind string, v any) error {
	return fmt.Errorf("cuda driver: %s of type %T was not created by this driver: %w", kind, v, devctx.ErrInvalidArgument)
}
