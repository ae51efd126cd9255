// Package reconcile matches a model's flat key/value response against the
// detected form fields and coerces every match into a legal value.
package reconcile

import (
	"errors"
	"log/slog"

	"github.com/hazyhaar/formfill/coerce"
	"github.com/hazyhaar/formfill/field"
)

// Reconciler holds the alias table and logger. It keeps no per-pass state
// and is safe for concurrent use once built.
type Reconciler struct {
	aliases *AliasTable
	logger  *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAliases replaces the default alias table.
func WithAliases(t *AliasTable) Option {
	return func(r *Reconciler) { r.aliases = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a Reconciler using DefaultAliases unless overridden.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{}
	for _, o := range opts {
		o(r)
	}
	if r.aliases == nil {
		r.aliases = DefaultAliases()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Reconcile produces one mapping per descriptor, in input order. Matching is
// independent per descriptor: the same key may feed several fields. A single
// field never stops the pass; its failure is recorded in its mapping.
func (r *Reconciler) Reconcile(descs []field.Descriptor, resp field.Response) ([]field.Mapping, error) {
	if len(descs) == 0 {
		return nil, field.ErrNoDescriptors
	}
	idx := newKeyIndex(resp)
	out := make([]field.Mapping, 0, len(descs))
	for _, d := range descs {
		m := r.reconcileOne(d, resp, idx)
		r.logger.Debug("reconcile: field",
			"field", d.ID, "status", m.Status, "method", m.Method, "key", m.Key, "reason", m.Reason)
		out = append(out, m)
	}
	return out, nil
}

func (r *Reconciler) reconcileOne(d field.Descriptor, resp field.Response, idx keyIndex) field.Mapping {
	m := field.Mapping{Descriptor: d, Status: field.Unmapped, Method: field.MatchNone}

	key, method := r.match(d, resp, idx)
	if method == field.MatchNone {
		m.Reason = "no matching key"
		return m
	}
	raw, _ := resp.Lookup(key)
	m.Key, m.Method, m.Raw = key, method, &raw

	if raw.Empty() {
		m.Status, m.Reason = field.Skipped, "no value"
		return m
	}
	if d.Disabled || d.ReadOnly {
		m.Status, m.Reason = field.Skipped, "not fillable"
		return m
	}

	v, err := coerce.Coerce(raw, d)
	switch {
	case errors.Is(err, coerce.ErrUnsupportedFieldType):
		m.Status, m.Reason = field.Skipped, err.Error()
	case err != nil:
		m.Status, m.Reason = field.Unmapped, err.Error()
	default:
		m.Status, m.Resolved = field.Mapped, &v
	}
	return m
}

// match runs the cascade and returns the chosen key and the tier that
// produced it.
func (r *Reconciler) match(d field.Descriptor, resp field.Response, idx keyIndex) (string, field.MatchMethod) {
	if _, ok := resp.Lookup(d.ID); ok {
		return d.ID, field.MatchDirectID
	}
	if d.Name != "" {
		if _, ok := resp.Lookup(d.Name); ok {
			return d.Name, field.MatchNameAttribute
		}
	}
	if d.HTMLID != "" && d.HTMLID != d.ID {
		if _, ok := resp.Lookup(d.HTMLID); ok {
			return d.HTMLID, field.MatchHTMLID
		}
	}

	if label := Normalize(d.Label); label != "" {
		for _, k := range idx {
			if k.norm == label {
				return k.raw, field.MatchLabelExact
			}
		}
		for _, k := range idx {
			if fuzzy(label, k.norm) {
				return k.raw, field.MatchLabelFuzzy
			}
		}
	}

	for _, alias := range r.aliases.Keys(Normalize(looseLabel(d))) {
		for _, k := range idx {
			if k.norm == alias {
				return k.raw, field.MatchCommonAlias
			}
		}
	}
	return "", field.MatchNone
}

// looseLabel is the best caption available for alias lookup.
func looseLabel(d field.Descriptor) string {
	for _, s := range []string{d.Label, d.Placeholder, d.Name} {
		if s != "" {
			return s
		}
	}
	return ""
}

type indexedKey struct {
	raw  string
	norm string
}

// keyIndex caches normalized response keys in response order.
type keyIndex []indexedKey

func newKeyIndex(resp field.Response) keyIndex {
	keys := resp.Keys()
	idx := make(keyIndex, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, indexedKey{raw: k, norm: Normalize(k)})
	}
	return idx
}
