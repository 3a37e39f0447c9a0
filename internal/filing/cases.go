package filing

import (
	"strings"

	"github.com/beevik/etree"
)

var civilCase = Q(NSCivil, "CivilCase")

// CaseMatch is the case chosen from a case list response.
type CaseMatch struct {
	Case       *etree.Element
	Title      string
	TrackingID string
}

// SelectCase picks the case for defendant from a case list response.
//
// A case is a direct child of the response root that is either a criminal
// case (any namespace) or a civil case. The first case holding any element
// whose text ends with defendant wins; otherwise the first case in the
// response is used. The title prefers any CaseTitleText in the response that
// ends with defendant, then the selected case's own title.
func SelectCase(list *Document, defendant string) CaseMatch {
	var cases []*etree.Element
	for _, c := range list.Root().ChildElements() {
		if isCase(c) {
			cases = append(cases, c)
		}
	}
	if len(cases) == 0 {
		// some backends wrap the list one level deeper
		walk(list.Root(), false, func(e *etree.Element) bool {
			if isCase(e) {
				cases = append(cases, e)
			}
			return true
		})
	}

	var m CaseMatch
	for _, c := range cases {
		if endsWithName(c, defendant) {
			m.Case = c
			break
		}
	}
	if m.Case == nil && len(cases) > 0 {
		m.Case = cases[0]
	}

	for _, t := range DescendantsLocal(list.Root(), "casetitletext", false) {
		if v := strings.TrimSpace(Value(t)); v != "" && strings.HasSuffix(v, defendant) {
			m.Title = v
			break
		}
	}
	if m.Case == nil {
		return m
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(Value(FirstLocal(m.Case, "casetitletext")))
	}
	m.TrackingID = strings.TrimSpace(Value(FirstLocal(m.Case, "casetrackingid")))
	return m
}

func isCase(e *etree.Element) bool {
	return strings.EqualFold(e.Tag, "criminalcase") || civilCase.Is(e)
}

// endsWithName reports whether any element under c has text ending with name.
func endsWithName(c *etree.Element, name string) bool {
	found := false
	walk(c, false, func(e *etree.Element) bool {
		if strings.HasSuffix(strings.TrimSpace(Value(e)), name) {
			found = true
			return false
		}
		return true
	})
	return found
}
