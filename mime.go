package formatkit

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is implemented by everything the MIME codec can render: *Format,
// List and Union.
type Type interface {
	isType()
}

// List is the compound type rendered with the "+list-of" suffix.
type List struct {
	Item Type
}

// Union is the compound type rendered as a comma-joined member list.
type Union struct {
	Members []Type
}

func (*Format) isType() {}
func (List) isType()    {}
func (Union) isType()   {}

const listMIMESuffix = "+list-of"

// IANARegistries are the official top-level IANA MIME registries. Formats
// in any other namespace render as "MIME-like" identifiers only.
var IANARegistries = []string{
	"application", "audio", "font", "image", "message",
	"model", "multipart", "text", "video",
}

func isIANARegistry(ns string) bool {
	for _, r := range IANARegistries {
		if ns == r {
			return true
		}
	}
	return false
}

var (
	plusCapRe   = regexp.MustCompile(`__([A-Z])`)
	dotCapRe    = regexp.MustCompile(`_([A-Z])`)
	capRe       = regexp.MustCompile(`[A-Z]`)
	dotPartRe   = regexp.MustCompile(`\.(\w)`)
	plusPartRe  = regexp.MustCompile(`\+(\w)`)
	dashPartRe  = regexp.MustCompile(`-(\w)`)
	leadDigitRe = regexp.MustCompile(`^[0-9]`)
)

// toMIMEFormatName translates a format class name to its identifier form:
// internal capitals become "-x", "_X" becomes ".x", "__X" becomes "+x" and
// a leading underscore (used for names starting with a digit) is dropped.
func toMIMEFormatName(name string) (string, error) {
	if strings.Contains(name, "___") {
		return "", NewError(KindDefinition,
			"cannot convert format name %q to a MIME identifier as it contains a triple underscore", name)
	}
	name = strings.TrimPrefix(name, "_")
	if name == "" {
		return "", NewError(KindDefinition, "cannot convert an empty format name to a MIME identifier")
	}
	name = strings.ToLower(name[:1]) + name[1:]
	name = plusCapRe.ReplaceAllStringFunc(name, func(m string) string {
		return "+" + strings.ToLower(m[2:])
	})
	name = dotCapRe.ReplaceAllStringFunc(name, func(m string) string {
		return "." + strings.ToLower(m[1:])
	})
	name = capRe.ReplaceAllStringFunc(name, func(m string) string {
		return "-" + strings.ToLower(m)
	})
	return name, nil
}

// fromMIMEFormatName restores a format class name from its identifier
// form; the inverse of toMIMEFormatName.
func fromMIMEFormatName(name string) string {
	if name == "" {
		return ""
	}
	if leadDigitRe.MatchString(name) {
		name = "_" + name
	}
	name = strings.ToUpper(name[:1]) + name[1:]
	name = dotPartRe.ReplaceAllStringFunc(name, func(m string) string {
		return "_" + strings.ToUpper(m[1:])
	})
	name = plusPartRe.ReplaceAllStringFunc(name, func(m string) string {
		return "__" + strings.ToUpper(m[1:])
	})
	name = dashPartRe.ReplaceAllStringFunc(name, func(m string) string {
		return strings.ToUpper(m[1:])
	})
	return name
}

// ToMIME renders a type as a MIME (official) or MIME-like identifier.
// Official mode requires an exact IANA MIME registration and refuses
// compound and classified types. MIME-like mode is reversible for every
// registered format: FromMIME(ToMIME(f, false)) yields f back.
func ToMIME(t Type, official bool) (string, error) {
	switch v := t.(type) {
	case List:
		if official {
			return "", NewError(KindRecognition, "a list type has no official MIME type, render it as MIME-like instead")
		}
		item, err := ToMIME(v.Item, official)
		if err != nil {
			return "", err
		}
		if strings.Contains(item, ",") {
			item = "[" + item + "]"
		}
		return item + listMIMESuffix, nil
	case Union:
		if official {
			return "", NewError(KindRecognition, "a union type has no official MIME type, render it as MIME-like instead")
		}
		parts := make([]string, len(v.Members))
		for i, m := range v.Members {
			s, err := ToMIME(m, official)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	case *Format:
		return formatToMIME(v, official)
	default:
		return "", NewError(KindRecognition, "cannot render %T as a MIME identifier", t)
	}
}

func formatToMIME(f *Format, official bool) (string, error) {
	if f.wildcard {
		return "", NewError(KindDefinition, "cannot render type variable %s as a MIME identifier", f)
	}
	if official {
		if f.ianaMIME != "" {
			return f.ianaMIME, nil
		}
		if f.IsClassified() {
			return "", NewError(KindRecognition,
				"classified type %s has no official MIME type, render it as MIME-like instead", f)
		}
		if !isIANARegistry(f.namespace) {
			return "", NewError(KindRecognition,
				"%s is not in an official IANA registry, render it as MIME-like instead", f)
		}
		name, err := toMIMEFormatName(f.name)
		if err != nil {
			return "", err
		}
		return f.namespace + "/" + name, nil
	}
	mime, err := formatMIMELike(f)
	if err != nil {
		return "", err
	}
	// MIME-like identifiers must round-trip back to the same format.
	if _, rerr := FromMIME(mime); rerr != nil {
		return "", fmt.Errorf(
			"cannot create reversible MIME-like identifier for %s, ensure it is registered under the %q namespace: %w",
			f, f.namespace, rerr)
	}
	return mime, nil
}

func formatMIMELike(f *Format) (string, error) {
	if f.ianaMIME != "" {
		return f.ianaMIME, nil
	}
	if f.nsConflict {
		namespaces := map[string]bool{f.unclassified.namespace: true}
		for _, c := range f.classifiers {
			namespaces[c.Unwrap().namespace] = true
		}
		var names []string
		for ns := range namespaces {
			names = append(names, ns)
		}
		return "", &Error{
			Kind:       KindDefinition,
			Message:    "classified type " + f.String() + " spans multiple namespaces",
			Candidates: names,
		}
	}
	if f.IsClassified() {
		if len(f.WildcardClassifiers()) > 0 {
			return "", NewError(KindDefinition,
				"cannot render %s as a MIME identifier while it contains unresolved type variables", f)
		}
		parts := make([]string, len(f.classifiers))
		for i, c := range f.classifiers {
			name, err := toMIMEFormatName(c.Unwrap().name)
			if err != nil {
				return "", err
			}
			parts[i] = name
		}
		baseName, err := toMIMEFormatName(f.unclassified.name)
		if err != nil {
			return "", err
		}
		return f.namespace + "/" + strings.Join(parts, ".") + "+" + baseName, nil
	}
	name, err := toMIMEFormatName(f.name)
	if err != nil {
		return "", err
	}
	return f.namespace + "/" + name, nil
}

// FromMIME resolves a MIME or MIME-like identifier to the corresponding
// type. The inverse of ToMIME for registered formats.
func FromMIME(mime string) (Type, error) {
	if strings.HasSuffix(mime, listMIMESuffix) {
		item := strings.TrimSuffix(mime, listMIMESuffix)
		if strings.HasPrefix(item, "[") && strings.HasSuffix(item, "]") {
			item = item[1 : len(item)-1]
		}
		inner, err := FromMIME(item)
		if err != nil {
			return nil, err
		}
		return List{Item: inner}, nil
	}
	if strings.Contains(mime, ",") {
		parts := strings.Split(mime, ",")
		members := make([]Type, len(parts))
		for i, p := range parts {
			m, err := FromMIME(p)
			if err != nil {
				return nil, err
			}
			members[i] = m
		}
		return Union{Members: members}, nil
	}
	return resolveFormatMIME(mime)
}

func resolveFormatMIME(mime string) (*Format, error) {
	parts := strings.Split(mime, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, NewError(KindRecognition,
			"%q is not a valid MIME-like identifier of the form <namespace>/<format>", mime)
	}
	namespace, formatName := parts[0], parts[1]

	if f, ok := defaultRegistry.byIANA(mime); ok {
		return f, nil
	}

	if namespace == "application" && strings.HasPrefix(formatName, "x-") {
		// "application/x-" is a catch-all: search the generic (non-IANA)
		// name index across every installed namespace.
		name := strings.TrimPrefix(formatName, "x-")
		if name == "" {
			return nil, NewError(KindRecognition,
				"%q names no format after the \"x-\" catch-all prefix", mime)
		}
		candidates := defaultRegistry.byName(name)
		switch len(candidates) {
		case 0:
			return nil, &Error{
				Kind: KindRecognition,
				Message: fmt.Sprintf("no format named %q (for %q) found in any installed namespace",
					fromMIMEFormatName(name), mime),
				Candidates: defaultRegistry.namespaceNames(),
			}
		case 1:
			return candidates[0], nil
		default:
			names := make([]string, len(candidates))
			for i, c := range candidates {
				names[i] = c.String()
			}
			return nil, &Error{
				Kind: KindRecognition,
				Message: fmt.Sprintf("ambiguous identifier %q, set an explicit IANA MIME type on one of the candidates to disambiguate",
					mime),
				Candidates: names,
			}
		}
	}

	if !defaultRegistry.hasNamespace(namespace) {
		return nil, NewError(KindRecognition,
			"no installed namespace %q to interpret %q; import the package providing the %q formats",
			namespace, mime, namespace)
	}
	className := fromMIMEFormatName(formatName)
	if f, ok := defaultRegistry.lookup(namespace, className); ok {
		return f, nil
	}
	if idx := strings.Index(formatName, "+"); idx > 0 {
		qualifierNames := strings.Split(formatName[:idx], ".")
		classifiedName := formatName[idx+1:]
		classifiers := make([]*Format, len(qualifierNames))
		for i, q := range qualifierNames {
			c, ok := defaultRegistry.lookup(namespace, fromMIMEFormatName(q))
			if !ok {
				return nil, NewError(KindRecognition,
					"could not resolve classifier %q of %q in namespace %q",
					q, mime, namespace)
			}
			classifiers[i] = c
		}
		base, ok := defaultRegistry.lookup(namespace, fromMIMEFormatName(classifiedName))
		if !ok {
			base, ok = defaultRegistry.genericClassifiable(classifiedName)
		}
		if !ok {
			return nil, NewError(KindRecognition,
				"could not resolve classified base %q of %q in namespace %q or among generic container formats",
				classifiedName, mime, namespace)
		}
		return Classify(base, classifiers...)
	}
	return nil, NewError(KindRecognition,
		"no format %q found in namespace %q for identifier %q", className, namespace, mime)
}
