package story

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockMedia     BlockType = "media"
)

// Block is one structural unit of a story body. Level is meaningful
// for headings, Ref for media references.
type Block struct {
	Type  BlockType
	Level int
	Text  string
	Ref   string
}

// Document is an immutable story ready for submission. Build one with
// NewDocument; the fingerprint is derived once from title, body and
// language and is the identity used by the duplicate ledger.
type Document struct {
	Title       string
	Language    string
	Blocks      []Block
	fingerprint string
}

func NewDocument(title, language string, blocks []Block) Document {
	copied := make([]Block, len(blocks))
	copy(copied, blocks)
	d := Document{Title: title, Language: language, Blocks: copied}
	d.fingerprint = computeFingerprint(d)
	return d
}

// Fingerprint is the deterministic content identity of the document.
func (d Document) Fingerprint() string { return d.fingerprint }

func computeFingerprint(d Document) string {
	h := sha256.New()
	writeField(h, d.Title)
	writeField(h, d.Language)
	for _, b := range d.Blocks {
		writeField(h, string(b.Type))
		fmt.Fprintf(h, "%d\x00", b.Level)
		writeField(h, b.Text)
		writeField(h, b.Ref)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, s)
	w.Write([]byte{0})
}
