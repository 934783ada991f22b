package formatkit

import (
	"sort"
	"strings"
)

// Classify parametrizes a classifiable base format with classifier
// arguments, returning the cached classified type. Two calls with the same
// base and the same classifier tuple (same set for unordered bases) return
// the identical *Format value.
func Classify(base *Format, classifiers ...*Format) (*Format, error) {
	if base.classifierSpec == nil {
		return nil, NewError(KindDefinition, "%s is not classifiable", base)
	}
	if base.IsClassified() {
		return nil, NewError(KindDefinition, "%s is already classified and cannot be re-parametrized", base)
	}
	if len(classifiers) == 0 {
		return nil, NewError(KindDefinition, "no classifiers provided to %s", base)
	}
	spec := base.classifierSpec
	if !spec.Multiple && len(classifiers) > 1 {
		return nil, NewError(KindDefinition, "%s accepts a single classifier, got %d", base, len(classifiers))
	}
	norm, err := normalizeClassifiers(base, spec, classifiers)
	if err != nil {
		return nil, err
	}

	keyParts := make([]string, len(norm))
	for i, c := range norm {
		keyParts[i] = c.key()
	}
	cacheKey := strings.Join(keyParts, "|")

	base.mu.Lock()
	defer base.mu.Unlock()
	if base.classifiedCache == nil {
		base.classifiedCache = make(map[string]*Format)
	}
	if cached, ok := base.classifiedCache[cacheKey]; ok {
		return cached, nil
	}

	cf := &Format{
		name:          base.name,
		ianaMIME:      "", // classified types never carry an official MIME
		ext:           base.ext,
		alternateExts: base.alternateExts,
		magic:         base.magic,
		magicOffset:   base.magicOffset,
		isDir:         base.isDir,
		parents:       []*Format{base},
		unclassified:  base,
		classifiers:   norm,
	}
	cf.namespace, cf.nsConflict = classifiedNamespace(base, spec, norm)
	if spec.BindContents {
		cf.contentTypes = classifiers
	}
	base.classifiedCache[cacheKey] = cf
	return cf, nil
}

// Of is Classify for declarative use in package init functions and tests;
// it panics on definition errors.
func (f *Format) Of(classifiers ...*Format) *Format {
	cf, err := Classify(f, classifiers...)
	if err != nil {
		panic(err)
	}
	return cf
}

func normalizeClassifiers(base *Format, spec *ClassifierSpec, classifiers []*Format) ([]*Format, error) {
	for _, c := range classifiers {
		if c == nil {
			return nil, NewError(KindDefinition, "nil classifier provided to %s", base)
		}
		if len(spec.Allowed) > 0 && !c.wildcard {
			allowed := false
			for _, a := range spec.Allowed {
				if c.Unwrap().IsSubtypeOf(a) {
					allowed = true
					break
				}
			}
			if !allowed {
				names := make([]string, len(spec.Allowed))
				for i, a := range spec.Allowed {
					names[i] = a.String()
				}
				return nil, &Error{
					Kind:       KindDefinition,
					Message:    base.String() + " does not accept " + c.String() + " as a classifier, allowed bases are",
					Candidates: names,
				}
			}
		}
	}
	if spec.Ordered {
		out := make([]*Format, len(classifiers))
		copy(out, classifiers)
		return out, nil
	}
	// Unordered: repeats are rejected, at most one classifier per category,
	// and the tuple is sorted so equal sets share a cache entry.
	seen := map[*Format]bool{}
	categories := map[*Format]*Format{}
	for _, c := range classifiers {
		if seen[c] {
			return nil, NewError(KindDefinition, "classifier %s repeated in unordered classification of %s", c, base)
		}
		seen[c] = true
		if cat := c.Unwrap().Category(); cat != nil {
			if prev, ok := categories[cat]; ok {
				return nil, NewError(KindDefinition,
					"classifiers %s and %s of %s share the category %s", prev, c, base, cat)
			}
			categories[cat] = c
		}
	}
	out := make([]*Format, len(classifiers))
	copy(out, classifiers)
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out, nil
}

// classifiedNamespace computes the namespace of a classified type: the
// union of the classifier namespaces plus, unless the base generically
// classifies, the base's own. More than one distinct namespace is recorded
// as a conflict and surfaces when a MIME identifier is requested.
func classifiedNamespace(base *Format, spec *ClassifierSpec, classifiers []*Format) (string, bool) {
	namespaces := map[string]bool{}
	for _, c := range classifiers {
		if c.wildcard {
			continue
		}
		namespaces[c.Unwrap().namespace] = true
	}
	if !spec.Generic {
		namespaces[base.namespace] = true
	}
	if len(namespaces) == 0 {
		return base.namespace, false
	}
	if len(namespaces) > 1 {
		return base.namespace, true
	}
	for ns := range namespaces {
		return ns, false
	}
	return base.namespace, false
}
