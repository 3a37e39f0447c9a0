package filing

import (
	"strings"
	"testing"
)

func TestNormalizeMarksEmptyFields(t *testing.T) {
	d := loadFixture(t)

	added := Normalize(d)
	// DateTime and the whitespace-only citizenship code; LanguageCode already carries a marker.
	if added != 2 {
		t.Fatalf("Normalize() added = %d, want 2", added)
	}

	for _, q := range []QName{Q(NSCore, "DateTime"), Q(NSCore, "PersonCitizenshipFIPS10-4Code"), Q(NSCore, "LanguageCode")} {
		e := d.First(q)
		if v, ok := AttrNS(e, NSXSI, "nil"); !ok || v != "true" {
			t.Errorf("%s nil marker = %q, %v; want true", q.Local, v, ok)
		}
	}
	country := d.First(Q(NSCore, "LocationCountryFIPS10-4Code"))
	if _, ok := AttrNS(country, NSXSI, "nil"); ok {
		t.Errorf("populated country code must not be marked nil")
	}
}

func TestNormalizeLeavesOtherFieldsAlone(t *testing.T) {
	d := loadFixture(t)
	Normalize(d)

	for _, q := range []QName{Q(NSCore, "CaseTrackingID"), Q(NSCore, "PaymentID"), Q(NSUBLBasic, "PaymentID")} {
		for _, e := range d.All(q) {
			if len(e.Attr) != 0 {
				t.Errorf("%s gained attributes %v", q.Local, e.Attr)
			}
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	d := loadFixture(t)
	Normalize(d)
	first := d.String()
	if added := Normalize(d); added != 0 {
		t.Fatalf("second Normalize() added = %d, want 0", added)
	}
	if d.String() != first {
		t.Fatalf("second Normalize() changed the document")
	}
}

func TestNormalizeDeclaresNamespaceWhenMissing(t *testing.T) {
	d := mustParse(t, `<r xmlns:nc="http://niem.gov/niem/niem-core/2.0"><nc:LanguageCode/></r>`)
	if added := Normalize(d); added != 1 {
		t.Fatalf("Normalize() added = %d, want 1", added)
	}
	out := d.String()
	if !strings.Contains(out, `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`) || !strings.Contains(out, `xsi:nil="true"`) {
		t.Fatalf("serialized output missing nil marker: %s", out)
	}
	reparsed := mustParse(t, out)
	if v, ok := AttrNS(reparsed.First(Q(NSCore, "LanguageCode")), NSXSI, "nil"); !ok || v != "true" {
		t.Fatalf("nil marker lost on round trip")
	}
}

func TestNormalizeSkipsMissingNodes(t *testing.T) {
	d := mustParse(t, `<r xmlns:nc="http://niem.gov/niem/niem-core/2.0"><nc:Other/></r>`)
	before := d.String()
	if added := Normalize(d); added != 0 {
		t.Fatalf("Normalize() added = %d, want 0", added)
	}
	if d.String() != before {
		t.Fatalf("document changed without target nodes")
	}
}
