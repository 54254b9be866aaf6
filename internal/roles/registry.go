// Package roles holds the role transition table and the authority that
// executes role changes against it.
package roles

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Role is a platform role name as stored on user documents and in claims.
type Role string

const (
	User            Role = "user"
	Investor        Role = "investor"
	BusinessPerson  Role = "business_person"
	BusinessAdvisor Role = "business_advisor"
	Banker          Role = "banker"
	Admin           Role = "admin"
)

//go:embed roles.yaml
var defaultTable []byte

// State is one node of the role machine.
type State struct {
	Description        string
	AllowedTransitions []Role
}

// Registry is the immutable role transition table. It is built once at
// start-up and only read afterwards, so it is safe for concurrent use.
type Registry struct {
	order      []Role
	states     map[Role]State
	restricted map[Role]bool
}

type fileRole struct {
	Name        Role   `yaml:"name"`
	Description string `yaml:"description"`
	Transitions []Role `yaml:"transitions"`
}

type fileTable struct {
	Restricted []Role      `yaml:"restricted"`
	Roles      []fileRole `yaml:"roles"`
}

// Default returns the built-in table.
func Default() *Registry {
	r, err := Parse(defaultTable)
	if err != nil {
		panic("roles: embedded table is invalid: " + err.Error())
	}
	return r
}

// Load reads a table from path, or returns Default when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role table: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from YAML and validates that every transition
// and restricted entry names a declared role.
func Parse(data []byte) (*Registry, error) {
	var t fileTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse role table: %w", err)
	}
	if len(t.Roles) == 0 {
		return nil, fmt.Errorf("role table declares no roles")
	}
	r := &Registry{states: map[Role]State{}, restricted: map[Role]bool{}}
	for _, fr := range t.Roles {
		if fr.Name == "" {
			return nil, fmt.Errorf("role without a name")
		}
		if _, dup := r.states[fr.Name]; dup {
			return nil, fmt.Errorf("role %q declared twice", fr.Name)
		}
		r.order = append(r.order, fr.Name)
		r.states[fr.Name] = State{Description: fr.Description, AllowedTransitions: fr.Transitions}
	}
	for _, name := range r.order {
		for _, to := range r.states[name].AllowedTransitions {
			if _, ok := r.states[to]; !ok {
				return nil, fmt.Errorf("role %q transitions to unknown role %q", name, to)
			}
			if to == name {
				return nil, fmt.Errorf("role %q transitions to itself", name)
			}
		}
	}
	for _, name := range t.Restricted {
		if _, ok := r.states[name]; !ok {
			return nil, fmt.Errorf("restricted role %q is not declared", name)
		}
		r.restricted[name] = true
	}
	return r, nil
}

// Known reports whether role is declared.
func (r *Registry) Known(role Role) bool {
	_, ok := r.states[role]
	return ok
}

// Describe returns the human-readable description of role.
func (r *Registry) Describe(role Role) string { return r.states[role].Description }

// AllowedTransitions returns a copy of the roles reachable from role.
func (r *Registry) AllowedTransitions(role Role) []Role {
	src := r.states[role].AllowedTransitions
	out := make([]Role, len(src))
	copy(out, src)
	return out
}

// CanTransition reports whether to is an allowed next role for from.
func (r *Registry) CanTransition(from, to Role) bool {
	for _, t := range r.states[from].AllowedTransitions {
		if t == to {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether role can only be granted by an admin.
func (r *Registry) RequiresApproval(role Role) bool { return r.restricted[role] }

// Roles returns every declared role in table order.
func (r *Registry) Roles() []Role {
	out := make([]Role, len(r.order))
	copy(out, r.order)
	return out
}
