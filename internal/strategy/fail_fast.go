package strategy

import (
	"context"

	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// FailFast returns NoFallback immediately, never attempting recovery.
type FailFast struct{}

// Resolve implements coordinator.Strategy.
func (FailFast) Resolve(_ context.Context, _ *discovery.Index, _ discovery.Priority, missing []int) (coordinator.Resolution, error) {
	return coordinator.Resolution{}, &NoFallback{Missing: missing}
}
