// ABOUTME: In-process registry for standard_block actions: named functions executed without a device controller.
// ABOUTME: Virtual subtree transitions and script-defined blocks dispatch through here.
package controller

import (
	"context"
	"fmt"
	"sync"
)

// BlockFunc is one in-process block implementation.
type BlockFunc func(ctx context.Context, params map[string]any) Result

// BlockRegistry maps block names to implementations.
type BlockRegistry struct {
	mu     sync.RWMutex
	blocks map[string]BlockFunc
}

// NewBlockRegistry creates a registry pre-populated with the built-in subtree
// transition blocks, which succeed without device interaction.
func NewBlockRegistry() *BlockRegistry {
	r := &BlockRegistry{blocks: make(map[string]BlockFunc)}
	noop := func(ctx context.Context, params map[string]any) Result {
		return Result{Success: true, Message: "virtual transition"}
	}
	r.Register("enter_subtree", noop)
	r.Register("exit_subtree", noop)
	return r
}

// Register adds or replaces a block under the given name.
func (r *BlockRegistry) Register(name string, fn BlockFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[name] = fn
}

// Execute runs the named block. Unknown names fail rather than erroring so
// the action layer's retry chain applies.
func (r *BlockRegistry) Execute(ctx context.Context, name string, params map[string]any) Result {
	r.mu.RLock()
	fn, ok := r.blocks[name]
	r.mu.RUnlock()
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown standard block %q", name)}
	}
	return fn(ctx, params)
}

// Names lists all registered block names.
func (r *BlockRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.blocks))
	for n := range r.blocks {
		names = append(names, n)
	}
	return names
}
