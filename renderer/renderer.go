// Package renderer substitutes {{name}} placeholder tokens in template bodies.
//
// Matching is literal: a field name is never interpreted as a pattern, so names
// containing characters such as '.', '*' or '$' behave like any other name.
// Substitution is a single left-to-right pass over the template body and
// replacement values are never scanned again. A value that happens to contain
// another field's token is emitted verbatim.
package renderer

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// DefaultSelector is the reserved form field that names the template.
const DefaultSelector = "template"

// Field is a single name/value pair substituted into a template.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered list of fields. When two tokens could match at the same
// position of a template, the field listed first wins. For duplicate names the
// first entry wins.
type Fields []Field

// Get returns the value of the first field named name.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Map returns the fields as a map, keeping the first value of duplicate names.
func (fs Fields) Map() map[string]string {
	m := make(map[string]string, len(fs))
	for _, f := range fs {
		if _, ok := m[f.Name]; !ok {
			m[f.Name] = f.Value
		}
	}
	return m
}

// Token returns the placeholder token for a field name.
func Token(name string) string {
	return "{{" + name + "}}"
}

// Render replaces every occurrence of each field's token in body with the
// field's value. Tokens without a matching field are left untouched.
func Render(body string, fields Fields) string {
	if len(fields) == 0 || body == "" {
		return body
	}
	pairs := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		pairs = append(pairs, Token(f.Name), f.Value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

var placeholderRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Placeholders returns the distinct placeholder names found in body, in order
// of first appearance.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Unresolved returns the placeholders of body that have no matching field.
func Unresolved(body string, fields Fields) []string {
	var out []string
	for _, name := range Placeholders(body) {
		if _, ok := fields.Get(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

// FieldsFromValues converts submitted form values into Fields, dropping the
// selector key. Names are sorted so the result does not depend on map order,
// and only the first value of a repeated name is used.
func FieldsFromValues(values url.Values, selector string) Fields {
	names := make([]string, 0, len(values))
	for name := range values {
		if name == selector {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(Fields, 0, len(names))
	for _, name := range names {
		v := ""
		if vs := values[name]; len(vs) > 0 {
			v = vs[0]
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	return fields
}

// FieldsFromMap converts a decoded JSON object into Fields, dropping the
// selector key. Names are sorted.
func FieldsFromMap(m map[string]string, selector string) Fields {
	values := make(url.Values, len(m))
	for k, v := range m {
		values.Set(k, v)
	}
	return FieldsFromValues(values, selector)
}
