package formatkit

import (
	"fmt"
	"strings"
	"sync"
)

// Property is a named accessor that must evaluate without a mismatch error
// for a file-set to be considered a member of the format declaring it. The
// returned value participates in RequiredPaths when it is a path, a slice
// of paths, a FileSet or a slice of FileSets.
type Property struct {
	Name string
	Get  func(*FileSet) (any, error)

	// Structural marks properties that locate paths rather than constrain
	// them (e.g. the generic single-file selector). Structural properties
	// do not count towards Unconstrained.
	Structural bool
}

// Check is a named validation that must return nil, or a mismatch error to
// signal "does not match". Any other error propagates to the caller.
type Check struct {
	Name string
	Run  func(*FileSet) error
}

// ClassifierSpec configures a format as a type constructor over classifier
// arguments (e.g. Zip.Of(Json)).
type ClassifierSpec struct {
	// Ordered makes the classifier tuple order-significant and permits
	// repeats. Unordered tuples reject repeats and compare as sets.
	Ordered bool

	// Multiple permits more than one classifier argument.
	Multiple bool

	// Allowed restricts the classifier arguments to subtypes of the listed
	// formats. Empty means unrestricted.
	Allowed []*Format

	// Generic marks the format as classifying across namespaces: the
	// classified type takes its namespace from the classifiers alone.
	Generic bool

	// BindContents copies the classifier tuple into the classified type's
	// content types (used by typed directories and sets).
	BindContents bool
}

// Format describes one format class: its place in the type graph and the
// constraints a set of paths must satisfy to belong to it. Format values
// are immutable after construction; classified variants derived with Of
// are cached so that repeated parametrizations yield the identical value.
type Format struct {
	namespace string
	name      string

	ianaMIME      string
	ext           string
	alternateExts []string
	magic         []byte
	magicOffset   int

	abstract bool
	isDir    bool
	category *Format
	parents  []*Format

	props        []Property
	checks       []Check
	contentTypes []*Format

	classifierSpec *ClassifierSpec

	// classified variants (produced by Of)
	unclassified *Format
	classifiers  []*Format
	nsConflict   bool

	// type variables (produced by TypeVar)
	wildcard bool
	bound    *Format

	// optional-content wrappers (produced by Optional)
	optional bool
	wrapped  *Format

	mu              sync.Mutex
	classifiedCache map[string]*Format
	optionalWrapper *Format
	converters      map[*Format]*Converter
	flatProps       []Property
	flatChecks      []Check
	flattened       bool
}

// Base is the abstract root of every file-set format. It is never
// registered and cannot be instantiated; it exists so type variables and
// allowed-classifier restrictions have a common bound.
var Base = &Format{namespace: "core", name: "FileSet", abstract: true}

// Option configures a Format under construction.
type Option func(*Format)

// WithIANA sets the official IANA MIME type of the format.
func WithIANA(mime string) Option {
	return func(f *Format) { f.ianaMIME = mime }
}

// WithExtension sets the primary extension and any alternates. Extensions
// include the leading dot and may be multi-part (".tar.gz").
func WithExtension(ext string, alternates ...string) Option {
	return func(f *Format) {
		f.ext = ext
		f.alternateExts = alternates
	}
}

// WithMagic sets a magic number expected at the start of the primary file.
func WithMagic(magic []byte) Option {
	return WithMagicAt(0, magic)
}

// WithMagicAt sets a magic number expected at the given byte offset of the
// primary file.
func WithMagicAt(offset int, magic []byte) Option {
	return func(f *Format) {
		f.magic = magic
		f.magicOffset = offset
	}
}

// WithParents declares the formats this one derives from. Required
// properties and checks of all ancestors are inherited.
func WithParents(parents ...*Format) Option {
	return func(f *Format) { f.parents = parents }
}

// WithCategory assigns the classifier category. At most one classifier per
// category may appear in an unordered classifier set.
func WithCategory(category *Format) Option {
	return func(f *Format) { f.category = category }
}

// AsDirectory marks the format as representing a directory rather than a
// file.
func AsDirectory() Option {
	return func(f *Format) { f.isDir = true }
}

// Abstract marks the format as a structural base that is excluded from
// discovery and cannot be instantiated.
func Abstract() Option {
	return func(f *Format) { f.abstract = true }
}

// WithRequiredProperty declares a property that must evaluate without a
// mismatch for paths to match the format.
func WithRequiredProperty(name string, get func(*FileSet) (any, error)) Option {
	return func(f *Format) {
		f.props = append(f.props, Property{Name: name, Get: get})
	}
}

// WithStructuralProperty is WithRequiredProperty for properties that locate
// paths rather than constrain them; they are ignored by Unconstrained.
func WithStructuralProperty(name string, get func(*FileSet) (any, error)) Option {
	return func(f *Format) {
		f.props = append(f.props, Property{Name: name, Get: get, Structural: true})
	}
}

// WithCheck declares a validation method run at match time.
func WithCheck(name string, run func(*FileSet) error) Option {
	return func(f *Format) {
		f.checks = append(f.checks, Check{Name: name, Run: run})
	}
}

// WithContentTypes declares the content types of a collection format
// directly (classified collection constructors bind them via Of instead).
func WithContentTypes(types ...*Format) Option {
	return func(f *Format) { f.contentTypes = types }
}

// Classifiable turns the format into a type constructor over classifier
// arguments.
func Classifiable(spec ClassifierSpec) Option {
	return func(f *Format) { f.classifierSpec = &spec }
}

// New creates a format descriptor and registers it in the default registry.
// It panics with a definition error on structural misuse (duplicate name in
// a namespace, missing name); format declaration happens in package init
// functions where such mistakes must surface immediately.
func New(namespace, name string, opts ...Option) *Format {
	f, err := newFormat(namespace, name, opts...)
	if err != nil {
		panic(err)
	}
	if err := defaultRegistry.register(f); err != nil {
		panic(err)
	}
	return f
}

func newFormat(namespace, name string, opts ...Option) (*Format, error) {
	if namespace == "" || name == "" {
		return nil, NewError(KindDefinition, "format requires a namespace and a name (got %q/%q)", namespace, name)
	}
	f := &Format{namespace: namespace, name: name}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.parents) == 0 {
		f.parents = []*Format{Base}
	}
	if len(f.magic) > 0 {
		magic, offset := f.magic, f.magicOffset
		f.checks = append(f.checks, Check{Name: "magic_number", Run: func(fs *FileSet) error {
			return fs.checkMagic(magic, offset)
		}})
	}
	return f, nil
}

// TypeVar creates a wildcard type variable bounded by the given format.
// Type variables stand in for "any subtype of bound" in converter
// registrations and cannot be instantiated.
func TypeVar(name string, bound *Format) *Format {
	if bound == nil {
		bound = Base
	}
	return &Format{namespace: bound.namespace, name: name, wildcard: true, bound: bound, abstract: true}
}

// AnyFileSet is the catch-all type variable used by generic container
// converters such as Zip.Of(AnyFileSet).
var AnyFileSet = TypeVar("AnyFileSet", Base)

// Optional wraps a content type so that its absence does not fail a
// collection's required-content check. The wrapper is cached per format.
func Optional(f *Format) *Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.optionalWrapper == nil {
		f.optionalWrapper = &Format{
			namespace: f.namespace,
			name:      f.name,
			optional:  true,
			wrapped:   f,
			parents:   []*Format{f},
			abstract:  true,
		}
	}
	return f.optionalWrapper
}

// Name returns the format's class name (e.g. "TarGzip").
func (f *Format) Name() string { return f.name }

// Namespace returns the namespace package the format belongs to.
func (f *Format) Namespace() string { return f.namespace }

// IANA returns the official IANA MIME type, or "" if the format has none.
func (f *Format) IANA() string { return f.ianaMIME }

// Ext returns the primary extension including the leading dot ("" if the
// format is not extension-constrained).
func (f *Format) Ext() string { return f.ext }

// Extensions returns the primary extension followed by any alternates.
func (f *Format) Extensions() []string {
	if f.ext == "" {
		return nil
	}
	return append([]string{f.ext}, f.alternateExts...)
}

// IsDir reports whether the format represents a directory.
func (f *Format) IsDir() bool { return f.isDir }

// IsAbstract reports whether the format is a structural base.
func (f *Format) IsAbstract() bool { return f.abstract }

// IsWildcard reports whether the format is a type variable.
func (f *Format) IsWildcard() bool { return f.wildcard }

// IsOptional reports whether the format is an Optional content wrapper.
func (f *Format) IsOptional() bool { return f.optional }

// Unwrap returns the wrapped format of an Optional wrapper, or the format
// itself.
func (f *Format) Unwrap() *Format {
	if f.optional {
		return f.wrapped
	}
	return f
}

// Unclassified returns the un-parametrized base of a classified type, or
// nil for plain formats.
func (f *Format) Unclassified() *Format { return f.unclassified }

// Classifiers returns the normalized classifier tuple of a classified
// type, or nil.
func (f *Format) Classifiers() []*Format { return f.classifiers }

// IsClassified reports whether the format was produced by Of.
func (f *Format) IsClassified() bool { return f.unclassified != nil }

// ContentTypes returns the declared (possibly Optional-wrapped) content
// types of a collection format.
func (f *Format) ContentTypes() []*Format { return f.contentTypes }

// Category returns the classifier category, following parents when the
// format does not set one itself.
func (f *Format) Category() *Format {
	if f.category != nil {
		return f.category
	}
	for _, p := range f.parents {
		if c := p.Category(); c != nil {
			return c
		}
	}
	return nil
}

// String renders the format for error messages, e.g. "application/Zip" or
// "application/Zip[Json]".
func (f *Format) String() string {
	if f.wildcard {
		return fmt.Sprintf("%s (any %s)", f.name, f.bound.name)
	}
	base := f
	suffix := ""
	if f.unclassified != nil {
		base = f.unclassified
		names := make([]string, len(f.classifiers))
		for i, c := range f.classifiers {
			names[i] = c.name
		}
		suffix = "[" + strings.Join(names, ",") + "]"
	}
	return base.namespace + "/" + base.name + suffix
}

// IsSubtypeOf reports whether f is other, or derives from it. The test
// accounts for type variables (subtype of their bound), Optional wrappers
// (transparent) and classified types (base subtyping plus classifier-set
// containment for unordered tuples, or position-wise subtyping for ordered
// tuples of equal length).
func (f *Format) IsSubtypeOf(other *Format) bool {
	if f == nil || other == nil {
		return false
	}
	if f == other {
		return true
	}
	if other.optional {
		return f.IsSubtypeOf(other.wrapped)
	}
	if f.optional {
		return f.wrapped.IsSubtypeOf(other)
	}
	if other == Base {
		return true
	}
	if other.wildcard {
		if f.wildcard {
			return f.bound.IsSubtypeOf(other.bound)
		}
		return f.IsSubtypeOf(other.bound)
	}
	if f.wildcard {
		return f.bound.IsSubtypeOf(other)
	}
	if other.IsClassified() {
		if !f.IsClassified() {
			return false
		}
		if !f.unclassified.IsSubtypeOf(other.unclassified) {
			return false
		}
		if other.unclassified.classifierSpec != nil && other.unclassified.classifierSpec.Ordered {
			if len(f.classifiers) != len(other.classifiers) {
				return false
			}
			for i, oc := range other.classifiers {
				if !f.classifiers[i].IsSubtypeOf(oc) {
					return false
				}
			}
			return true
		}
		for _, oc := range other.classifiers {
			found := false
			for _, fc := range f.classifiers {
				if fc.IsSubtypeOf(oc) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	if f.IsClassified() {
		return f.unclassified.IsSubtypeOf(other)
	}
	for _, p := range f.parents {
		if p.IsSubtypeOf(other) {
			return true
		}
	}
	return false
}

// RequiredProperties returns the flattened required properties of the
// format and all its ancestors, deduplicated by name with the most derived
// declaration winning. The tuple is computed once per format.
func (f *Format) RequiredProperties() []Property {
	f.flatten()
	return f.flatProps
}

// Checks returns the flattened check methods of the format and all its
// ancestors, deduplicated by name.
func (f *Format) Checks() []Check {
	f.flatten()
	return f.flatChecks
}

func (f *Format) flatten() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flattened {
		return
	}
	seenProps := map[string]bool{}
	seenChecks := map[string]bool{}
	var props []Property
	var checks []Check
	var walk func(*Format)
	walk = func(g *Format) {
		for _, p := range g.props {
			if !seenProps[p.Name] {
				seenProps[p.Name] = true
				props = append(props, p)
			}
		}
		for _, c := range g.checks {
			if !seenChecks[c.Name] {
				seenChecks[c.Name] = true
				checks = append(checks, c)
			}
		}
		for _, parent := range g.parents {
			walk(parent)
		}
	}
	walk(f)
	f.flatProps = props
	f.flatChecks = checks
	f.flattened = true
}

// Unconstrained reports whether the format carries no constraint at all
// (no extension, magic number, content type or non-structural property or
// check) and would therefore match any existing path set.
func (f *Format) Unconstrained() bool {
	if f.ext != "" || len(f.magic) > 0 || len(f.contentTypes) > 0 {
		return false
	}
	for _, p := range f.RequiredProperties() {
		if !p.Structural {
			return false
		}
	}
	return len(f.Checks()) == 0
}

// WildcardClassifiers returns the distinct type variables appearing in the
// format's classifier tuple (or the format itself if it is a type
// variable).
func (f *Format) WildcardClassifiers() []*Format {
	if f.wildcard {
		return []*Format{f}
	}
	var vars []*Format
	seen := map[*Format]bool{}
	for _, c := range f.classifiers {
		if c.wildcard && !seen[c] {
			seen[c] = true
			vars = append(vars, c)
		}
	}
	return vars
}

// key is a stable identifier used for cache keys and sorting.
func (f *Format) key() string {
	if f.wildcard {
		return "?" + f.bound.key() + ":" + f.name
	}
	if f.optional {
		return "~" + f.wrapped.key()
	}
	if f.unclassified != nil {
		parts := make([]string, len(f.classifiers))
		for i, c := range f.classifiers {
			parts[i] = c.key()
		}
		return f.unclassified.key() + "[" + strings.Join(parts, ",") + "]"
	}
	return f.namespace + "/" + f.name
}
