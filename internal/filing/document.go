package filing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

// Namespaces used by ECF 4.0 filings and the backend's responses.
const (
	NSCore       = "http://niem.gov/niem/niem-core/2.0"
	NSECF        = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CommonTypes-4.0"
	NSJustice    = "http://niem.gov/niem/domains/jxdm/4.0"
	NSProfile    = "urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0"
	NSStructures = "http://niem.gov/niem/structures/2.0"
	NSCivil      = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CivilCase-4.0"
	NSCriminal   = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CriminalCase-4.0"
	NSCallback   = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:ReviewFilingCallbackMessage-4.0"
	NSUBLBasic   = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NSXSI        = "http://www.w3.org/2001/XMLSchema-instance"
	NSSOAP       = "http://schemas.xmlsoap.org/soap/envelope/"
)

// QName identifies an element by namespace URI and local name.
type QName struct {
	Space string
	Local string
}

// Q is shorthand for building a QName.
func Q(space, local string) QName { return QName{Space: space, Local: local} }

func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return "{" + q.Space + "}" + q.Local
}

// Is reports whether e carries this name.
func (q QName) Is(e *etree.Element) bool {
	return e != nil && e.Tag == q.Local && e.NamespaceURI() == q.Space
}

// Document is a filing or backend message held as an ordered element tree.
// Prefixes and namespace declarations are preserved on write.
type Document struct {
	Name string
	tree *etree.Document
}

// Parse reads a document from raw bytes. name is used in error messages only.
func Parse(name string, data []byte) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if tree.Root() == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", name)
	}
	return &Document{Name: name, tree: tree}, nil
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(filepath.Base(path), data)
}

// FromElement wraps a copy of e as a standalone document. Namespace
// declarations inherited from e's ancestors are copied onto the new root.
func FromElement(name string, e *etree.Element) *Document {
	root := e.Copy()
	declared := map[string]bool{}
	for _, a := range root.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			declared[a.FullKey()] = true
		}
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			isDecl := a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
			if !isDecl || declared[a.FullKey()] {
				continue
			}
			declared[a.FullKey()] = true
			root.CreateAttr(a.FullKey(), a.Value)
		}
	}
	tree := etree.NewDocument()
	tree.SetRoot(root)
	return &Document{Name: name, tree: tree}
}

// Root returns the document element.
func (d *Document) Root() *etree.Element { return d.tree.Root() }

// Clone returns a deep copy that can be changed without affecting d.
func (d *Document) Clone() *Document {
	return &Document{Name: d.Name, tree: d.tree.Copy()}
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	return d.tree.WriteToBytes()
}

// String serializes the document, returning an empty string on failure.
func (d *Document) String() string {
	s, err := d.tree.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// All returns every element named q in document order.
func (d *Document) All(q QName) []*etree.Element { return Descendants(d.Root(), q, true) }

// First returns the first element named q in document order, or nil.
func (d *Document) First(q QName) *etree.Element { return FirstDescendant(d.Root(), q, true) }

// Descendants returns the elements under e named q, in document order.
// includeSelf also tests e itself.
func Descendants(e *etree.Element, q QName, includeSelf bool) []*etree.Element {
	var out []*etree.Element
	walk(e, includeSelf, func(n *etree.Element) bool {
		if q.Is(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FirstDescendant returns the first element under e named q, or nil.
func FirstDescendant(e *etree.Element, q QName, includeSelf bool) *etree.Element {
	var found *etree.Element
	walk(e, includeSelf, func(n *etree.Element) bool {
		if q.Is(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// DescendantsLocal matches on local name only, case-insensitively.
func DescendantsLocal(e *etree.Element, local string, includeSelf bool) []*etree.Element {
	var out []*etree.Element
	walk(e, includeSelf, func(n *etree.Element) bool {
		if strings.EqualFold(n.Tag, local) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FirstLocal returns the first descendant with the given local name, case-insensitively.
func FirstLocal(e *etree.Element, local string) *etree.Element {
	var found *etree.Element
	walk(e, false, func(n *etree.Element) bool {
		if strings.EqualFold(n.Tag, local) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Child returns the first direct child of e named q.
func Child(e *etree.Element, q QName) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if q.Is(c) {
			return c
		}
	}
	return nil
}

// ChildLocal returns the first direct child whose local name matches, case-insensitively.
func ChildLocal(e *etree.Element, local string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if strings.EqualFold(c.Tag, local) {
			return c
		}
	}
	return nil
}

// Value returns the concatenated character data of e and all its descendants.
func Value(e *etree.Element) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	appendText(&b, e)
	return b.String()
}

func appendText(b *strings.Builder, e *etree.Element) {
	for _, t := range e.Child {
		switch v := t.(type) {
		case *etree.CharData:
			b.WriteString(v.Data)
		case *etree.Element:
			appendText(b, v)
		}
	}
}

// AttrNS returns the value of the attribute local in namespace space.
func AttrNS(e *etree.Element, space, local string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attr {
		if a.Key != local || a.Space == "xmlns" {
			continue
		}
		uri := ""
		if a.Space != "" {
			uri = lookupNamespace(e, a.Space)
		}
		if uri == space {
			return a.Value, true
		}
	}
	return "", false
}

// lookupNamespace resolves prefix in e's scope. Attribute namespaces are
// resolved here rather than through etree so copied trees stay self-contained.
func lookupNamespace(e *etree.Element, prefix string) string {
	for n := e; n != nil; n = n.Parent() {
		for _, a := range n.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// walk visits e's subtree in document order until fn returns false.
func walk(e *etree.Element, includeSelf bool, fn func(*etree.Element) bool) bool {
	if e == nil {
		return true
	}
	if includeSelf && !fn(e) {
		return false
	}
	for _, c := range e.ChildElements() {
		if !walk(c, true, fn) {
			return false
		}
	}
	return true
}
