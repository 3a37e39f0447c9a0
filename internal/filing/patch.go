package filing

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Target selects which Field elements a patch writes.
type Target int

const (
	// FirstMatch writes the first Field under the first Scope.
	FirstMatch Target = iota
	// EveryMatch writes every Field under every Scope.
	EveryMatch
	// FirstBlank writes the first blank Field under any Scope. Successive
	// FirstBlank patches fill successive slots.
	FirstBlank
)

// Patch is one field-level change to a filing. Resolvers return patches and
// the orchestrator applies them once, to a copy of the normalized filing.
type Patch struct {
	Source string
	// Scope is the enclosing element. A zero Scope means the document root.
	Scope  QName
	Field  QName
	Value  string
	Target Target
	// OnlyIfBlank leaves populated fields alone.
	OnlyIfBlank bool
	// Required fails the apply when no Field element exists.
	Required bool
}

// PatchList accumulates patches in the order they were produced.
type PatchList []Patch

// Add appends patches.
func (l *PatchList) Add(p ...Patch) { *l = append(*l, p...) }

// Apply returns a copy of d with every patch written. d is not modified.
func (l PatchList) Apply(d *Document) (*Document, error) {
	out := d.Clone()
	for _, p := range l {
		n := p.apply(out)
		if n == 0 && p.Required {
			return nil, &ValidationError{
				Document: d.Name,
				Reason:   fmt.Sprintf("Xml error - could not find <%s> section to set %s", p.Field.Local, p.Source),
			}
		}
	}
	return out, nil
}

// apply writes p into d and returns the number of elements that matched.
func (p Patch) apply(d *Document) int {
	scopes := []*etree.Element{d.Root()}
	if p.Scope.Local != "" {
		scopes = d.All(p.Scope)
	}

	matched := 0
	for _, scope := range scopes {
		fields := Descendants(scope, p.Field, false)
		for _, f := range fields {
			blank := strings.TrimSpace(Value(f)) == ""
			switch p.Target {
			case FirstBlank:
				if !blank {
					continue
				}
				f.SetText(p.Value)
				return 1
			case FirstMatch:
				if !p.OnlyIfBlank || blank {
					f.SetText(p.Value)
				}
				return 1
			default:
				matched++
				if !p.OnlyIfBlank || blank {
					f.SetText(p.Value)
				}
			}
		}
		if p.Target == FirstMatch && p.Scope.Local != "" {
			// only the first scope is considered
			break
		}
	}
	return matched
}
