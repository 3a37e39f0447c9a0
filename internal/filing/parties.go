package filing

import (
	"strings"

	"github.com/beevik/etree"
)

var (
	entityPerson = Q(NSECF, "EntityPerson")
	personName   = Q(NSCore, "PersonName")
	givenName    = Q(NSCore, "PersonGivenName")
	middleName   = Q(NSCore, "PersonMiddleName")
	surName      = Q(NSCore, "PersonSurName")
)

// DefendantRole is the structures:id value marking the defendant in a filing.
const DefendantRole = "DEF"

// PersonName holds the parts of a NIEM person name.
type PersonName struct {
	First  string
	Middle string
	Last   string
}

// Defendant returns the name of the first EntityPerson with structures:id="DEF".
func Defendant(d *Document) PersonName {
	for _, p := range d.All(entityPerson) {
		if id, _ := AttrNS(p, NSStructures, "id"); id != DefendantRole {
			continue
		}
		name := Child(p, personName)
		return PersonName{
			First:  strings.TrimSpace(Value(Child(name, givenName))),
			Middle: strings.TrimSpace(Value(Child(name, middleName))),
			Last:   strings.TrimSpace(Value(Child(name, surName))),
		}
	}
	return PersonName{}
}

// Natural is "First Middle Last" with empty parts dropped. Case titles end
// with the defendant in this form.
func (n PersonName) Natural() string {
	return joinNonEmpty(" ", n.First, n.Middle, n.Last)
}

// Sorted is "Last, First Middle", the form reported downstream.
func (n PersonName) Sorted() string {
	given := joinNonEmpty(" ", n.First, n.Middle)
	switch {
	case n.Last == "":
		return given
	case given == "":
		return n.Last
	}
	return n.Last + ", " + given
}

// FiledDocuments returns the DocumentFileControlID values in document order.
func FiledDocuments(d *Document) []string {
	var ids []string
	for _, e := range DescendantsLocal(d.Root(), "DocumentFileControlID", true) {
		if e.Tag != "DocumentFileControlID" {
			continue
		}
		ids = append(ids, strings.TrimSpace(Value(e)))
	}
	return ids
}

// PartyIdentifier returns the identifier of the first case participant whose
// EntityPerson role starts with "Party" and who has a given name. Ties go to
// document order.
func PartyIdentifier(caseDoc *Document) string {
	for _, par := range caseDoc.All(Q(NSECF, "CaseParticipant")) {
		role, _ := AttrNS(Child(par, entityPerson), NSStructures, "id")
		if !strings.HasPrefix(role, "Party") || !hasGivenName(par) {
			continue
		}
		if id := strings.TrimSpace(Value(FirstLocal(par, "identificationid"))); id != "" {
			return id
		}
	}
	return ""
}

func hasGivenName(e *etree.Element) bool {
	for _, g := range DescendantsLocal(e, "PersonGivenName", false) {
		if strings.TrimSpace(Value(g)) != "" {
			return true
		}
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
