package formatkit

import (
	"log/slog"
	"sort"
	"sync"
)

// registry indexes installed formats by namespace/class-name, by official
// IANA MIME type and by translated identifier name. Namespace packages
// populate it from their init functions through New.
type registry struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*Format
	iana       map[string]*Format
	names      map[string][]*Format
	generic    map[string]*Format
}

var defaultRegistry = &registry{
	namespaces: make(map[string]map[string]*Format),
	iana:       make(map[string]*Format),
	names:      make(map[string][]*Format),
	generic:    make(map[string]*Format),
}

func (r *registry) register(f *Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns := r.namespaces[f.namespace]
	if ns == nil {
		ns = make(map[string]*Format)
		r.namespaces[f.namespace] = ns
	}
	if _, ok := ns[f.name]; ok {
		return NewError(KindDefinition, "format %s/%s is already registered", f.namespace, f.name)
	}
	ns[f.name] = f

	if f.ianaMIME != "" {
		if prev, ok := r.iana[f.ianaMIME]; ok {
			slog.Warn("duplicate IANA MIME registration, keeping first",
				"mime", f.ianaMIME, "registered", prev.String(), "ignored", f.String())
			// Keep the loser reachable through the catch-all name index.
			mimeName, err := toMIMEFormatName(f.name)
			if err != nil {
				return err
			}
			r.names[mimeName] = append(r.names[mimeName], f)
		} else {
			r.iana[f.ianaMIME] = f
		}
	} else {
		mimeName, err := toMIMEFormatName(f.name)
		if err != nil {
			return err
		}
		r.names[mimeName] = append(r.names[mimeName], f)
	}
	if f.classifierSpec != nil && f.classifierSpec.Generic {
		mimeName, err := toMIMEFormatName(f.name)
		if err != nil {
			return err
		}
		r.generic[mimeName] = f
	}
	return nil
}

func (r *registry) byIANA(mime string) (*Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.iana[mime]
	return f, ok
}

func (r *registry) byName(mimeName string) []*Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[mimeName]
}

func (r *registry) lookup(namespace, className string) (*Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.namespaces[namespace][className]
	return f, ok
}

func (r *registry) hasNamespace(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.namespaces[namespace]
	return ok
}

func (r *registry) namespaceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

func (r *registry) genericClassifiable(mimeName string) (*Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.generic[mimeName]
	return f, ok
}

func (r *registry) all() []*Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Format
	for _, ns := range r.namespaces {
		for _, f := range ns {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

// Namespaces lists the installed namespace names.
func Namespaces() []string {
	return defaultRegistry.namespaceNames()
}

// Formats returns every registered format in stable (namespace/name)
// order.
func Formats() []*Format {
	return defaultRegistry.all()
}

// FormatsIn returns the registered formats of one namespace in stable
// name order.
func FormatsIn(namespace string) []*Format {
	var out []*Format
	for _, f := range defaultRegistry.all() {
		if f.namespace == namespace {
			out = append(out, f)
		}
	}
	return out
}

// LookupFormat resolves a format by namespace and class name.
func LookupFormat(namespace, name string) (*Format, bool) {
	return defaultRegistry.lookup(namespace, name)
}

// FormatByIANA resolves a format by its exact official IANA MIME type.
func FormatByIANA(mime string) (*Format, bool) {
	return defaultRegistry.byIANA(mime)
}

// FormatsByName returns the formats without an official IANA registration
// whose translated identifier name matches; more than one entry means the
// name is ambiguous under the application/x- catch-all.
func FormatsByName(mimeName string) []*Format {
	found := defaultRegistry.byName(mimeName)
	out := make([]*Format, len(found))
	copy(out, found)
	return out
}

// MatchOption configures FindMatching.
type MatchOption func(*matchConfig)

type matchConfig struct {
	candidates      []*Format
	standardOnly    bool
	includeGeneric  bool
	keepUnconstrain bool
}

// WithCandidates restricts the search to the given formats instead of the
// full registry.
func WithCandidates(candidates ...*Format) MatchOption {
	return func(c *matchConfig) { c.candidates = candidates }
}

// StandardOnly restricts the search to formats in official IANA
// registries.
func StandardOnly() MatchOption {
	return func(c *matchConfig) { c.standardOnly = true }
}

// IncludeGeneric includes the formats of the "generic" namespace, which
// are excluded from discovery by default because they match almost
// anything.
func IncludeGeneric() MatchOption {
	return func(c *matchConfig) { c.includeGeneric = true }
}

// KeepUnconstrained includes formats that declare no constraints at all.
func KeepUnconstrained() MatchOption {
	return func(c *matchConfig) { c.keepUnconstrain = true }
}

// FindMatching returns the registered formats that the given paths match,
// in stable (namespace/name) order. Abstract formats, unconstrained
// formats and the generic namespace are skipped unless options say
// otherwise. Mismatches are part of the search; any other error aborts it.
func FindMatching(paths []string, opts ...MatchOption) ([]*Format, error) {
	var cfg matchConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	candidates := cfg.candidates
	if candidates == nil {
		candidates = defaultRegistry.all()
	}
	var matches []*Format
	for _, f := range candidates {
		if f.abstract || f.wildcard {
			continue
		}
		if cfg.standardOnly && !isIANARegistry(f.namespace) {
			continue
		}
		if !cfg.includeGeneric && f.namespace == "generic" && cfg.candidates == nil {
			continue
		}
		if !cfg.keepUnconstrain && f.Unconstrained() {
			continue
		}
		ok, err := f.Matches(paths...)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, f)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].key() < matches[j].key() })
	return matches, nil
}
