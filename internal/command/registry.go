// Package command defines the lookup command registry: the immutable mapping
// from a command name to its upstream endpoint template, audit-channel tag,
// and sanitizer profile. The registry is constructed once at startup and
// passed by reference into the pipeline; nothing mutates it afterwards.
package command

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// placeholder is the single substitution point in an endpoint template.
const placeholder = "{query}"

// Definition describes one registered lookup command.
type Definition struct {
	// Name is the command name without the leading slash, e.g. "pin".
	Name string
	// URLTemplate is the upstream endpoint with exactly one {query} placeholder.
	URLTemplate string
	// AuditTag selects the audit channel the raw result is fanned out to.
	AuditTag string
	// ExtraClean applies the extra sanitizer profile to this command's replies.
	ExtraClean bool
}

// Expand substitutes the query into the endpoint template. The query is
// URL-escaped; the template itself is trusted configuration.
func (d Definition) Expand(query string) string {
	return strings.ReplaceAll(d.URLTemplate, placeholder, url.QueryEscape(query))
}

// Registry is the immutable set of registered lookup commands plus the audit
// channel map keyed by tag. Safe for concurrent use.
type Registry struct {
	defs     map[string]Definition
	channels map[string]int64
	names    []string
}

// NewRegistry validates the definitions and builds a Registry. It rejects
// duplicate names, blank names, and templates missing the {query} placeholder.
// A definition whose audit tag has no channel is accepted; its fan-out is
// simply skipped.
func NewRegistry(defs []Definition, channels map[string]int64) (*Registry, error) {
	r := &Registry{
		defs:     make(map[string]Definition, len(defs)),
		channels: make(map[string]int64, len(channels)),
	}
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("command with empty name")
		}
		if _, dup := r.defs[name]; dup {
			return nil, fmt.Errorf("duplicate command %q", name)
		}
		if !strings.Contains(d.URLTemplate, placeholder) {
			return nil, fmt.Errorf("command %q: template missing %s placeholder", name, placeholder)
		}
		d.Name = name
		r.defs[name] = d
		r.names = append(r.names, name)
	}
	for tag, id := range channels {
		r.channels[tag] = id
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// AuditChannel returns the destination chat for an audit tag, if one is
// configured.
func (r *Registry) AuditChannel(tag string) (int64, bool) {
	id, ok := r.channels[tag]
	return id, ok
}
