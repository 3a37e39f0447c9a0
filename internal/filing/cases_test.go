package filing

import "testing"

const caseList = `<CaseListResponseMessage xmlns:nc="http://niem.gov/niem/niem-core/2.0" xmlns:crim="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CriminalCase-4.0" xmlns:civil="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CivilCase-4.0">
  <crim:CriminalCase>
    <nc:CaseTitleText>State v. Richard Roe</nc:CaseTitleText>
    <nc:CaseTrackingID>TRK-ROE</nc:CaseTrackingID>
  </crim:CriminalCase>
  <crim:CriminalCase>
    <nc:CaseTitleText>State v. John A Doe</nc:CaseTitleText>
    <nc:CaseTrackingID>TRK-DOE</nc:CaseTrackingID>
  </crim:CriminalCase>
  <civil:CivilCase>
    <nc:CaseTitleText>Doe v. Acme</nc:CaseTitleText>
    <nc:CaseTrackingID>TRK-CIVIL</nc:CaseTrackingID>
  </civil:CivilCase>
</CaseListResponseMessage>`

func TestSelectCase(t *testing.T) {
	list := mustParse(t, caseList)
	tests := []struct {
		name      string
		defendant string
		tracking  string
		title     string
	}{
		{"matches defendant suffix", "John A Doe", "TRK-DOE", "State v. John A Doe"},
		{"falls back to first case", "Nobody Known", "TRK-ROE", "State v. Richard Roe"},
		{"empty name takes first case", "", "TRK-ROE", "State v. Richard Roe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := SelectCase(list, tt.defendant)
			if m.TrackingID != tt.tracking || m.Title != tt.title {
				t.Fatalf("SelectCase(%q) = (%q, %q), want (%q, %q)", tt.defendant, m.TrackingID, m.Title, tt.tracking, tt.title)
			}
		})
	}
}

func TestSelectCaseIsDeterministic(t *testing.T) {
	list := mustParse(t, caseList)
	first := SelectCase(list, "John A Doe")
	for i := 0; i < 5; i++ {
		if got := SelectCase(list, "John A Doe"); got.TrackingID != first.TrackingID {
			t.Fatalf("run %d tracking = %q, want %q", i, got.TrackingID, first.TrackingID)
		}
	}
}

func TestSelectCaseEmptyList(t *testing.T) {
	m := SelectCase(mustParse(t, `<CaseListResponseMessage/>`), "John A Doe")
	if m.Case != nil || m.TrackingID != "" {
		t.Fatalf("SelectCase() = %+v, want no case", m)
	}
}
