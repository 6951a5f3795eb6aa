//go:build !linux && !windows

package devctx

// No GPU runtime ships for these platforms; every thread shares one key.
func currentThreadID() int {
	return 0
}
