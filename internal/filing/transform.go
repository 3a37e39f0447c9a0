package filing

import (
	"strings"

	"github.com/beevik/etree"
)

// NilFields lists the elements the backend schema requires to carry an
// explicit xsi:nil marker when they are present but empty.
var NilFields = []QName{
	Q(NSCore, "PersonCitizenshipFIPS10-4Code"),
	Q(NSCore, "LanguageCode"),
	Q(NSJustice, "DrivingJurisdictionAuthorityNCICLSTACode"),
	Q(NSCore, "LocationCountryFIPS10-4Code"),
	Q(NSCore, "DateTime"),
}

// Normalize marks every empty element from NilFields with xsi:nil="true" and
// drops its whitespace content. Elements already carrying a nil attribute are
// left untouched. It returns the number of markers added.
func Normalize(d *Document) int {
	added := 0
	for _, q := range NilFields {
		for _, e := range d.All(q) {
			if hasNilMarker(e) || strings.TrimSpace(Value(e)) != "" {
				continue
			}
			setNilMarker(e)
			added++
		}
	}
	return added
}

func hasNilMarker(e *etree.Element) bool {
	for i := range e.Attr {
		if e.Attr[i].Key == "nil" && e.Attr[i].Space != "xmlns" {
			return true
		}
	}
	return false
}

func setNilMarker(e *etree.Element) {
	prefix := prefixFor(e, NSXSI)
	if prefix == "" {
		prefix = "xsi"
		e.CreateAttr("xmlns:"+prefix, NSXSI)
	}
	e.CreateAttr(prefix+":nil", "true")
	e.SetText("")
}

// prefixFor returns the prefix bound to uri in e's scope, or "".
func prefixFor(e *etree.Element, uri string) string {
	for n := e; n != nil; n = n.Parent() {
		for _, a := range n.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				return a.Key
			}
		}
	}
	return ""
}
