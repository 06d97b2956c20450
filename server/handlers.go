package server

import (
	"context"

	"github.com/onnwee/blindtest/game"
)

// Check is one readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	engine *game.Engine
	checks []Check
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(engine *game.Engine, checks []Check) *Handlers {
	return &Handlers{engine: engine, checks: checks}
}
