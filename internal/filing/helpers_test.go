package filing

import (
	"testing"
)

func loadFixture(t *testing.T) *Document {
	t.Helper()
	d, err := Load("testdata/filing.xml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return d
}

func mustParse(t *testing.T, xml string) *Document {
	t.Helper()
	d, err := Parse("inline.xml", []byte(xml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return d
}
