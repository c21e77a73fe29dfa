// ABOUTME: Command-to-controller routing registry with lazy, cached action-type inference.
// ABOUTME: Controllers are probed in a fixed priority order: verification families before remote, web, desktop, av, power.
package controller

import (
	"sync"

	"github.com/virtualpytest/navigator/navigation"
)

// Registry resolves which action type owns a command when the action record
// does not declare one. Answers are cached for the registry's lifetime.
type Registry struct {
	mu        sync.Mutex
	probes    []probe
	typeCache map[string]navigation.ActionType
}

type probe struct {
	actionType navigation.ActionType
	commands   func() []string
}

// NewRegistry creates an empty routing registry.
func NewRegistry() *Registry {
	return &Registry{typeCache: make(map[string]navigation.ActionType)}
}

// RegisterVerifications adds a verification controller's command set.
// Verification controllers are probed before every action controller, so
// registration order within the verification family is preserved but the
// family itself always wins ties against action families.
func (r *Registry) RegisterVerifications(c VerificationController) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Insert before the first non-verification probe.
	p := probe{actionType: navigation.ActionVerification, commands: c.AvailableVerifications}
	for i, existing := range r.probes {
		if existing.actionType != navigation.ActionVerification {
			r.probes = append(r.probes[:i], append([]probe{p}, r.probes[i:]...)...)
			return
		}
	}
	r.probes = append(r.probes, p)
}

// RegisterActions adds an action controller's command set under the given
// action type. Call in priority order: remote, web, desktop, av.
func (r *Registry) RegisterActions(t navigation.ActionType, c ActionController) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes = append(r.probes, probe{actionType: t, commands: c.AvailableActions})
}

// RegisterPower adds a power controller's command set.
func (r *Registry) RegisterPower(commands []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes = append(r.probes, probe{
		actionType: navigation.ActionPower,
		commands:   func() []string { return commands },
	})
}

// ResolveType determines the action type owning the command, consulting the
// cache first, then each registered controller in priority order. Returns
// false when no controller claims the command.
func (r *Registry) ResolveType(command string) (navigation.ActionType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.typeCache[command]; ok {
		return t, true
	}
	for _, p := range r.probes {
		for _, c := range p.commands() {
			if c == command {
				r.typeCache[command] = p.actionType
				return p.actionType, true
			}
		}
	}
	return "", false
}
