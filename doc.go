// Package formatkit identifies and classifies file formats.
//
// A format is described by a *Format descriptor carrying its matching
// constraints: file extensions, magic numbers, required properties and
// check functions, and (for container-like formats) the content types it
// may be parametrized with. A set of file-system paths can be tested
// against any format with Format.Matches, wrapped into a validated
// FileSet with Format.New, and translated to and from MIME or MIME-like
// identifiers with ToMIME and FromMIME.
//
// Formats register themselves into the default registry from the init
// functions of the namespace subpackages (generic, text, application,
// image), so importing a namespace package makes its formats discoverable
// through Formats, FindMatching and FromMIME.
//
// Converters between format pairs are declarative: a registration binds a
// Task (executed through an injected Engine) to a (target, source) pair,
// optionally involving wildcard type variables for container formats such
// as Zip[AnyFileSet]. Convert resolves the most specific registration,
// invokes the task and wraps the result in the target format.
package formatkit
