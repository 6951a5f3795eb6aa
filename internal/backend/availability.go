package backend

import "strings"

// Has reports whether the named backend is compiled in.
func Has(name string) bool {
	switch name {
	case None, Auto:
		return true
	case CUDA:
		return cudaEnabled
	default:
		return false
	}
}

// Available returns a comma-separated list of compiled-in backends.
func Available() string {
	entries := []string{None}
	if Has(CUDA) {
		entries = append(entries, CUDA)
	}
	return strings.Join(entries, ",")
}
