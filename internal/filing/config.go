package filing

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/beevik/etree"
)

// ConfigElement is the local-only configuration block embedded by the
// originating application.
var ConfigElement = Q(NSProfile, "eProsCfg")

// ValidationError reports a filing that cannot be submitted as written.
type ValidationError struct {
	Document string
	Reason   string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ParseConfig extracts the configuration block from d. The document is not
// changed; call RemoveConfig once the block is no longer needed.
func ParseConfig(d *Document) (models.FilingConfig, error) {
	block := d.First(ConfigElement)
	if block == nil {
		return models.FilingConfig{}, &ValidationError{
			Document: d.Name,
			Reason:   fmt.Sprintf("Invalid OFS filing, missing <eProsCfg> element section in %s", d.Name),
		}
	}

	cfg := models.FilingConfig{
		CaseNumber:    childValue(block, "casenumber"),
		CourtLocation: strings.TrimSpace(childValue(block, "casecourtlocation")),
		DocketNumber:  strings.TrimSpace(childValue(block, "casedocketnumber")),
		FilingDocID:   strings.TrimSpace(childValue(block, "filingdocid")),
		Attorney: models.AttorneyIdentity{
			BarNumber:  childValue(block, "attybarnumber"),
			FirstName:  childValue(block, "attyfirstname"),
			MiddleName: childValue(block, "attymiddlename"),
			LastName:   childValue(block, "attylastname"),
		},
	}

	for _, c := range DescendantsLocal(block, "svcContact", false) {
		cfg.ServiceContacts = append(cfg.ServiceContacts, parseContact(c))
	}
	if statutes := ChildLocal(block, "missingstatutes"); statutes != nil {
		for _, s := range statutes.ChildElements() {
			cfg.MissingStatutes = append(cfg.MissingStatutes, parseStatute(s, s.SelectAttrValue("id", "")))
		}
	}
	return cfg, nil
}

// RemoveConfig detaches the configuration block. It reports whether a block was found.
func RemoveConfig(d *Document) bool {
	block := d.First(ConfigElement)
	if block == nil {
		return false
	}
	if parent := block.Parent(); parent != nil {
		parent.RemoveChild(block)
		return true
	}
	return false
}

func parseContact(c *etree.Element) models.ServiceContactDescriptor {
	public := strings.TrimSpace(childValue(c, "svcIsPublic"))
	return models.ServiceContactDescriptor{
		FirstName:  childValue(c, "svcFirstName"),
		MiddleName: childValue(c, "svcMiddleName"),
		LastName:   childValue(c, "svcLastName"),
		Phone:      childValue(c, "svcPhoneNumber"),
		Email:      childValue(c, "svcEmail"),
		Address1:   childValue(c, "svcAddress1"),
		Address2:   childValue(c, "svcAddress2"),
		City:       childValue(c, "svcCity"),
		State:      childValue(c, "svcState"),
		Zip:        childValue(c, "svcZip"),
		IsPublic:   strings.EqualFold(public, "true") || public == "1",
		AdminCopy:  childValue(c, "svcAdminCopy"),
	}
}

func parseStatute(s *etree.Element, sequenceID string) models.StatuteCode {
	code := models.StatuteCode{
		SequenceID: sequenceID,
		BaseWord:   childValue(s, "statutecodeidentificationword"),
		Name:       childValue(s, "statutecodeidentificationdesc"),
	}
	if attrs := ChildLocal(s, "statutecodeattributes"); attrs != nil {
		for _, a := range attrs.ChildElements() {
			if v := strings.TrimSpace(Value(a)); v != "" {
				code.Prefixes = append(code.Prefixes, v)
			}
		}
	}
	if extra := ChildLocal(s, "additionalstatutes"); extra != nil {
		for _, a := range extra.ChildElements() {
			if strings.TrimSpace(childValue(a, "statutecodeidentificationword")) == "" {
				continue
			}
			code.AdditionalStatutes = append(code.AdditionalStatutes, parseStatute(a, sequenceID))
		}
	}
	return code
}

func childValue(e *etree.Element, local string) string {
	return Value(ChildLocal(e, local))
}
