package formatkit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a unit of conversion work. Tasks are declared once and bound to
// (target, source) format pairs through RegisterConverter; the Engine
// decides how they execute.
type Task interface {
	Name() string
	Run(ctx context.Context, in *FileSet, target *Format, args map[string]any) (*FileSet, error)
}

type taskFunc struct {
	name string
	fn   func(ctx context.Context, in *FileSet, target *Format, args map[string]any) (*FileSet, error)
}

func (t taskFunc) Name() string { return t.name }

func (t taskFunc) Run(ctx context.Context, in *FileSet, target *Format, args map[string]any) (*FileSet, error) {
	return t.fn(ctx, in, target, args)
}

// NewTask wraps a function as a named Task.
func NewTask(name string, fn func(ctx context.Context, in *FileSet, target *Format, args map[string]any) (*FileSet, error)) Task {
	return taskFunc{name: name, fn: fn}
}

// Engine executes conversion tasks. The default engine runs them inline;
// callers integrating with a workflow system inject their own.
type Engine interface {
	Execute(ctx context.Context, task Task, in *FileSet, target *Format, args map[string]any) (*FileSet, error)
}

// SerialEngine executes tasks synchronously in the calling goroutine.
type SerialEngine struct{}

func (SerialEngine) Execute(ctx context.Context, task Task, in *FileSet, target *Format, args map[string]any) (*FileSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return task.Run(ctx, in, target, args)
}

// Converter binds a Task to a (source, target) format pair, optionally
// with fixed task arguments. Registrations whose In or Out contain type
// variables act as templates matched against concrete pairs at
// resolution time.
type Converter struct {
	Task Task
	In   *Format
	Out  *Format
	Args map[string]any
}

func (c *Converter) String() string {
	return fmt.Sprintf("%s (%s -> %s)", c.Task.Name(), c.In, c.Out)
}

// sameRegistration compares converters by task name and format pair;
// task values hold functions and cannot be compared directly.
func (c *Converter) sameRegistration(other *Converter) bool {
	return c.Task.Name() == other.Task.Name() &&
		c.In.key() == other.In.key() && c.Out.key() == other.Out.key()
}

var (
	templateMu sync.RWMutex
	templates  []*Converter
)

func hasWildcards(f *Format) bool {
	return f != nil && (f.wildcard || len(f.WildcardClassifiers()) > 0)
}

// RegisterConverter makes a converter resolvable. Concrete registrations
// attach to their target format; registrations containing type variables
// join the global template list. Re-registering an identical converter is
// logged and skipped; a conflicting registration for the same pair is a
// definition error.
func RegisterConverter(c Converter) error {
	if c.Task == nil || c.In == nil || c.Out == nil {
		return NewError(KindDefinition, "converter registration requires a task, a source and a target")
	}
	if hasWildcards(c.In) || hasWildcards(c.Out) {
		templateMu.Lock()
		defer templateMu.Unlock()
		for _, t := range templates {
			if t.sameRegistration(&c) {
				slog.Warn("converter already registered, skipping", "converter", c.String())
				return nil
			}
			if t.In.key() == c.In.key() && t.Out.key() == c.Out.key() {
				return NewError(KindDefinition,
					"conflicting converter for %s -> %s: %s already registered, cannot add %s",
					c.In, c.Out, t.Task.Name(), c.Task.Name())
			}
		}
		templates = append(templates, &c)
		return nil
	}
	out := c.Out
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.converters == nil {
		out.converters = make(map[*Format]*Converter)
	}
	if prev, ok := out.converters[c.In]; ok {
		if prev.sameRegistration(&c) {
			slog.Warn("converter already registered, skipping", "converter", c.String())
			return nil
		}
		return NewError(KindDefinition,
			"conflicting converter for %s -> %s: %s already registered, cannot add %s",
			c.In, c.Out, prev.Task.Name(), c.Task.Name())
	}
	out.converters[c.In] = &c
	return nil
}

// MustRegisterConverter is RegisterConverter for package init functions;
// it panics on definition errors.
func MustRegisterConverter(c Converter) {
	if err := RegisterConverter(c); err != nil {
		panic(err)
	}
}

// ResolveConverter finds the converter taking source to target. Exact and
// inherited registrations on the target take precedence over wildcard
// templates; within either tier more than one distinct candidate is an
// ambiguity error listing them.
func ResolveConverter(source, target *Format) (*Converter, error) {
	direct := directCandidates(source, target)
	if len(direct) == 1 {
		return direct[0], nil
	}
	if len(direct) > 1 {
		return nil, ambiguityError(source, target, direct)
	}
	templated := templateCandidates(source, target)
	if len(templated) == 1 {
		return templated[0], nil
	}
	if len(templated) > 1 {
		return nil, ambiguityError(source, target, templated)
	}
	return nil, NewError(KindConversion, "no converter registered from %s to %s", source, target)
}

func ambiguityError(source, target *Format, candidates []*Converter) *Error {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.String()
	}
	return &Error{
		Kind:       KindConversion,
		Message:    fmt.Sprintf("ambiguous converters from %s to %s", source, target),
		Candidates: names,
	}
}

// directCandidates collects registrations attached to the target or its
// ancestors whose registered source admits the given source. An exact
// source match on the target itself short-circuits the search.
func directCandidates(source, target *Format) []*Converter {
	var out []*Converter
	seen := map[*Converter]bool{}
	var walk func(f *Format) *Converter
	walk = func(f *Format) *Converter {
		f.mu.Lock()
		convs := make([]*Converter, 0, len(f.converters))
		for _, c := range f.converters {
			convs = append(convs, c)
		}
		f.mu.Unlock()
		for _, c := range convs {
			if c.In == source && f == target {
				return c
			}
			if source.IsSubtypeOf(c.In) && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		for _, p := range f.parents {
			if exact := walk(p); exact != nil {
				return exact
			}
		}
		return nil
	}
	if exact := walk(target); exact != nil {
		return []*Converter{exact}
	}
	return out
}

// templateCandidates matches the concrete (source, target) pair against
// registrations containing type variables, binding each variable
// consistently across both sides.
func templateCandidates(source, target *Format) []*Converter {
	templateMu.RLock()
	defer templateMu.RUnlock()
	var out []*Converter
	for _, t := range templates {
		bindings := map[*Format]*Format{}
		if !matchTemplate(target, t.Out, bindings) {
			continue
		}
		if !matchTemplate(source, t.In, bindings) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// matchTemplate reports whether a concrete format fits a template,
// extending bindings as type variables are encountered. A variable seen
// twice must admit the concrete format bound the first time.
func matchTemplate(concrete, template *Format, bindings map[*Format]*Format) bool {
	if template == nil || concrete == nil {
		return false
	}
	if template.wildcard {
		if bound, ok := bindings[template]; ok {
			return concrete.IsSubtypeOf(bound) || bound.IsSubtypeOf(concrete)
		}
		if !concrete.IsSubtypeOf(template.bound) {
			return false
		}
		bindings[template] = concrete
		return true
	}
	if template.IsClassified() {
		if !concrete.IsClassified() {
			return false
		}
		if !concrete.unclassified.IsSubtypeOf(template.unclassified) {
			return false
		}
		if len(concrete.classifiers) != len(template.classifiers) {
			return false
		}
		for i, tc := range template.classifiers {
			if !matchTemplate(concrete.classifiers[i], tc, bindings) {
				return false
			}
		}
		return true
	}
	return concrete.IsSubtypeOf(template)
}

// ConvertOption configures Convert.
type ConvertOption func(*convertConfig)

type convertConfig struct {
	engine Engine
	args   map[string]any
}

// WithEngine routes the conversion task through the given engine instead
// of running it inline.
func WithEngine(e Engine) ConvertOption {
	return func(c *convertConfig) { c.engine = e }
}

// WithArgs passes extra arguments to the conversion task, overriding any
// registered defaults of the same name.
func WithArgs(args map[string]any) ConvertOption {
	return func(c *convertConfig) { c.args = args }
}

// Convert produces a file-set of the target format from the given one. A
// source that already satisfies the target is returned unchanged;
// otherwise the resolved converter's task runs through the engine and its
// result is validated against the target.
func Convert(ctx context.Context, in *FileSet, target *Format, opts ...ConvertOption) (*FileSet, error) {
	cfg := convertConfig{engine: SerialEngine{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if in.format.IsSubtypeOf(target) {
		return in, nil
	}
	conv, err := ResolveConverter(in.format, target)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	for k, v := range conv.Args {
		args[k] = v
	}
	for k, v := range cfg.args {
		args[k] = v
	}
	result, err := cfg.engine.Execute(ctx, conv.Task, in, target, args)
	if err != nil {
		return nil, &Error{
			Kind:    KindConversion,
			Message: fmt.Sprintf("converting %s to %s with %s", in, target, conv.Task.Name()),
			Err:     err,
		}
	}
	if result.format == target {
		return result, nil
	}
	out, err := target.New(result.Paths()...)
	if err != nil {
		return nil, &Error{
			Kind:    KindConversion,
			Message: fmt.Sprintf("output of %s does not satisfy %s", conv.Task.Name(), target),
			Err:     err,
		}
	}
	return out, nil
}
