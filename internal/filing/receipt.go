package filing

import (
	"strings"

	"github.com/beevik/etree"
)

var (
	docIdentification = Q(NSCore, "DocumentIdentification")
	identificationID  = Q(NSCore, "IdentificationID")
	identificationCat = Q(NSCore, "IdentificationCategoryText")
	ecfError          = Q(NSECF, "Error")
	ecfErrorCode      = Q(NSECF, "ErrorCode")
	ecfErrorText      = Q(NSECF, "ErrorText")
)

// No-error sentinel reported by the backend for an accepted submission.
const (
	NoErrorCode = "0"
	NoErrorText = "No Error"
)

// StatusEntry is one ecf:Error entry of a backend message.
type StatusEntry struct {
	Code string
	Text string
}

// Receipt reads the identifiers and status entries of a backend message
// receipt, such as the result of a review filing call.
type Receipt struct {
	root *etree.Element
}

// NewReceipt wraps a backend message.
func NewReceipt(d *Document) Receipt { return Receipt{root: d.Root()} }

// FilingID returns the FILINGID identifier, or the sole document identifier
// when the receipt carries a single untyped one.
func (r Receipt) FilingID() string {
	if ids := r.identifiers("FILINGID"); len(ids) > 0 {
		return ids[0]
	}
	return strings.TrimSpace(Value(Child(Child(r.root, docIdentification), identificationID)))
}

// FilingIDs returns every FILINGID identifier.
func (r Receipt) FilingIDs() []string { return r.identifiers("FILINGID") }

// EnvelopeID returns the ENVELOPEID identifier.
func (r Receipt) EnvelopeID() string {
	if ids := r.identifiers("ENVELOPEID"); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func (r Receipt) identifiers(category string) []string {
	var out []string
	for _, di := range r.root.ChildElements() {
		if !docIdentification.Is(di) {
			continue
		}
		if strings.TrimSpace(Value(Child(di, identificationCat))) != category {
			continue
		}
		out = append(out, strings.TrimSpace(Value(Child(di, identificationID))))
	}
	return out
}

// Statuses returns the receipt's top-level ecf:Error entries.
func (r Receipt) Statuses() []StatusEntry {
	var out []StatusEntry
	for _, e := range r.root.ChildElements() {
		if ecfError.Is(e) {
			out = append(out, StatusEntry{
				Code: strings.TrimSpace(Value(ChildLocal(e, "errorcode"))),
				Text: strings.TrimSpace(Value(ChildLocal(e, "errortext"))),
			})
		}
	}
	return out
}

// Errors returns every ecf:Error entry anywhere in the receipt.
func (r Receipt) Errors() []StatusEntry {
	var out []StatusEntry
	for _, e := range Descendants(r.root, ecfError, false) {
		out = append(out, StatusEntry{
			Code: strings.TrimSpace(Value(Child(e, ecfErrorCode))),
			Text: strings.TrimSpace(Value(Child(e, ecfErrorText))),
		})
	}
	return out
}

// Outcome classifies a receipt.
type Outcome int

const (
	// OutcomeMalformed means the receipt has no Error section at all.
	OutcomeMalformed Outcome = iota
	// OutcomeRejected means Error entries exist but none is the no-error sentinel.
	OutcomeRejected
	// OutcomeAccepted means an Error entry carries the no-error sentinel.
	OutcomeAccepted
)

// Classify reports whether the backend accepted the submission. A no-error
// entry wins even when other entries report sub-errors.
func (r Receipt) Classify() Outcome {
	errs := r.Errors()
	if len(errs) == 0 {
		return OutcomeMalformed
	}
	for _, e := range errs {
		if e.Code == NoErrorCode && e.Text == NoErrorText {
			return OutcomeAccepted
		}
	}
	return OutcomeRejected
}
