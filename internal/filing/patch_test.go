package filing

import (
	"errors"
	"strings"
	"testing"
)

func TestPatchListApplyLeavesSourceUntouched(t *testing.T) {
	d := loadFixture(t)
	before := d.String()

	var patches PatchList
	patches.Add(Patch{Source: "tracking id", Scope: Q(NSJustice, "CaseLineageCase"), Field: Q(NSCore, "CaseTrackingID"), Value: "TRK-1", Required: true})

	out, err := patches.Apply(d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if d.String() != before {
		t.Fatalf("Apply() modified its input")
	}
	if got := Value(out.First(Q(NSCore, "CaseTrackingID"))); got != "TRK-1" {
		t.Fatalf("CaseTrackingID = %q, want TRK-1", got)
	}
}

func TestPatchTargets(t *testing.T) {
	d := loadFixture(t)
	patches := PatchList{
		{Source: "attorney", Scope: Q(NSECF, "FilingAttorneyID"), Field: Q(NSCore, "IdentificationID"), Value: "ATTY-1", Target: EveryMatch, OnlyIfBlank: true},
		{Source: "party", Scope: Q(NSECF, "FilingPartyID"), Field: Q(NSCore, "IdentificationID"), Value: "PARTY-9", Target: EveryMatch},
		{Source: "party", Scope: Q(NSECF, "FilingPartyID"), Field: Q(NSCore, "IdentificationCategoryText"), Value: "IDENTIFICATION", Target: EveryMatch},
		{Source: "contact", Scope: Q(NSECF, "ElectronicServiceInformation"), Field: Q(NSCore, "IdentificationID"), Value: "SC-1", Target: FirstBlank},
		{Source: "contact", Scope: Q(NSECF, "ElectronicServiceInformation"), Field: Q(NSCore, "IdentificationID"), Value: "SC-2", Target: FirstBlank},
		{Source: "contact", Scope: Q(NSECF, "ElectronicServiceInformation"), Field: Q(NSCore, "IdentificationID"), Value: "SC-3", Target: FirstBlank},
		{Source: "payment", Field: Q(NSUBLBasic, "PaymentID"), Value: "PAY-1"},
	}
	out, err := patches.Apply(d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	attorney := Child(out.First(Q(NSECF, "FilingAttorneyID")), Q(NSCore, "IdentificationID"))
	if Value(attorney) != "ATTY-1" {
		t.Errorf("attorney id = %q", Value(attorney))
	}
	party := out.First(Q(NSECF, "FilingPartyID"))
	if Value(Child(party, Q(NSCore, "IdentificationID"))) != "PARTY-9" || Value(Child(party, Q(NSCore, "IdentificationCategoryText"))) != "IDENTIFICATION" {
		t.Errorf("filing party not rewritten: %q", Value(party))
	}
	var slots []string
	for _, e := range out.All(Q(NSECF, "ElectronicServiceInformation")) {
		slots = append(slots, strings.TrimSpace(Value(e)))
	}
	if strings.Join(slots, ",") != "SC-1,SC-2" {
		t.Errorf("service slots = %v, want [SC-1 SC-2]", slots)
	}
	if Value(out.First(Q(NSUBLBasic, "PaymentID"))) != "PAY-1" {
		t.Errorf("payment id not set")
	}
}

func TestPatchOnlyIfBlankKeepsValue(t *testing.T) {
	d := mustParse(t, `<r xmlns:nc="http://niem.gov/niem/niem-core/2.0"><nc:IdentificationID>KEEP</nc:IdentificationID></r>`)
	out, err := PatchList{{Field: Q(NSCore, "IdentificationID"), Value: "NEW", OnlyIfBlank: true}}.Apply(d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := Value(out.First(Q(NSCore, "IdentificationID"))); got != "KEEP" {
		t.Fatalf("IdentificationID = %q, want KEEP", got)
	}
}

func TestPatchRequiredMissing(t *testing.T) {
	d := mustParse(t, `<r/>`)
	_, err := PatchList{{Source: "case tracking id", Scope: Q(NSJustice, "CaseLineageCase"), Field: Q(NSCore, "CaseTrackingID"), Value: "X", Required: true}}.Apply(d)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Apply() error = %v, want *ValidationError", err)
	}
	if !strings.Contains(err.Error(), "<CaseTrackingID>") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
