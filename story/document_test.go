package story

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	blocks := []Block{
		{Type: BlockHeading, Level: 2, Text: "Timeline"},
		{Type: BlockParagraph, Text: "It began on a Tuesday."},
	}
	a := NewDocument("A Story", "en", blocks)
	b := NewDocument("A Story", "en", blocks)
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("identical documents must share a fingerprint: %s vs %s", a.Fingerprint(), b.Fingerprint())
	}
	if len(a.Fingerprint()) != 32 {
		t.Errorf("fingerprint should be 32 hex chars, got %d", len(a.Fingerprint()))
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	base := NewDocument("A Story", "en", []Block{{Type: BlockParagraph, Text: "body"}})

	tests := []struct {
		name string
		doc  Document
	}{
		{"different title", NewDocument("Another Story", "en", []Block{{Type: BlockParagraph, Text: "body"}})},
		{"different language", NewDocument("A Story", "jp", []Block{{Type: BlockParagraph, Text: "body"}})},
		{"different body", NewDocument("A Story", "en", []Block{{Type: BlockParagraph, Text: "other body"}})},
		{"different block type", NewDocument("A Story", "en", []Block{{Type: BlockHeading, Level: 2, Text: "body"}})},
	}
	for _, tt := range tests {
		if tt.doc.Fingerprint() == base.Fingerprint() {
			t.Errorf("%s: fingerprint collided with base", tt.name)
		}
	}
}

func TestNewDocumentCopiesBlocks(t *testing.T) {
	blocks := []Block{{Type: BlockParagraph, Text: "original"}}
	doc := NewDocument("A Story", "en", blocks)
	fp := doc.Fingerprint()

	blocks[0].Text = "mutated"
	if doc.Blocks[0].Text != "original" {
		t.Error("document must not alias the caller's block slice")
	}
	if doc.Fingerprint() != fp {
		t.Error("fingerprint must not change after construction")
	}
}
