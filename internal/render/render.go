// Package render substitutes {{name}} placeholders in configuration
// template bodies. Pure text transformation, no I/O.
package render

import "regexp"

// Placeholder token: the whole {{name}} literal, exact-name match. Names that
// are prefixes of other names cannot collide because replacement is anchored
// on the full token.
var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_.\-]+)\}\}`)

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render replaces every occurrence of {{name}} with its value, falling back
// to the declared default, falling back to the literal placeholder itself.
// Placeholders left in the output signal an incomplete render; callers gate
// on Undeclared / unresolved-required checks before persisting the result.
func (r *Renderer) Render(body string, values, defaults map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := values[name]; ok {
			return v
		}
		if v, ok := defaults[name]; ok {
			return v
		}
		return tok
	})
}

// Placeholders returns the distinct placeholder names in body, in first-seen
// order.
func (r *Renderer) Placeholders(body string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Undeclared returns the placeholder names in body that are not present in
// declared. Used as a pre-flight gate before template save and render.
func (r *Renderer) Undeclared(body string, declared []string) []string {
	known := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		known[d] = struct{}{}
	}
	var out []string
	for _, name := range r.Placeholders(body) {
		if _, ok := known[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
