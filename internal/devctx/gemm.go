package devctx

import "sync/atomic"

// GemmMode selects between true fp16 GEMM (fp16 accumulation) and mixed
// precision (fp32 accumulation). The flag is process-wide. Read it on the
// thread that holds the active scope, while the scope is held.
type GemmMode struct {
	trueFP16 atomic.Bool
	metrics  *Metrics
}

func newGemmMode(trueFP16 bool, metrics *Metrics) *GemmMode {
	g := &GemmMode{metrics: metrics}
	g.trueFP16.Store(trueFP16)
	return g
}

// TrueFP16 reports whether GEMMs should accumulate in fp16.
func (g *GemmMode) TrueFP16() bool {
	return g.trueFP16.Load()
}

// Set changes the flag without a scope.
func (g *GemmMode) Set(trueFP16 bool) {
	g.trueFP16.Store(trueFP16)
}

// With sets the flag and returns a scope that puts back the value it
// replaced. Scopes nest; release them in reverse order, normally with defer:
//
//	defer mode.With(false).Restore()
func (g *GemmMode) With(trueFP16 bool) *GemmScope {
	prev := g.trueFP16.Swap(trueFP16)
	g.metrics.gemmScope(trueFP16)
	return &GemmScope{mode: g, prev: prev}
}

// Do runs fn with the flag set to trueFP16 and restores it on every exit,
// including a panic in fn.
func (g *GemmMode) Do(trueFP16 bool, fn func() error) error {
	defer g.With(trueFP16).Restore()
	return fn()
}

// GemmScope is an active override of a GemmMode.
type GemmScope struct {
	mode     *GemmMode
	prev     bool
	restored bool
}

// Restore puts back the value active when the scope began. Calling it more
// than once has no further effect.
func (s *GemmScope) Restore() {
	if s.restored {
		return
	}
	s.restored = true
	s.mode.trueFP16.Store(s.prev)
}

// Previous returns the value the scope will restore.
func (s *GemmScope) Previous() bool {
	return s.prev
}
