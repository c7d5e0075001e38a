package story

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/yukimura/storypost/platform"
)

var parser = goldmark.New()

// Parse converts a markdown artifact into a Document. The first level-1
// heading becomes the title; everything else maps onto the block model
// (headings, paragraphs, list items as paragraphs, image-only
// paragraphs as media references).
func Parse(src []byte, language string) (Document, error) {
	root := parser.Parser().Parse(text.NewReader(src))

	var title string
	var blocks []Block
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			txt := nodeText(n, src)
			if n.Level == 1 && title == "" {
				title = txt
				continue
			}
			blocks = append(blocks, Block{Type: BlockHeading, Level: n.Level, Text: txt})
		case *ast.Paragraph:
			if img, ok := soleImage(n, src); ok {
				blocks = append(blocks, Block{
					Type: BlockMedia,
					Ref:  string(img.Destination),
					Text: nodeText(img, src),
				})
				continue
			}
			if txt := nodeText(n, src); txt != "" {
				blocks = append(blocks, Block{Type: BlockParagraph, Text: txt})
			}
		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				if txt := nodeText(item, src); txt != "" {
					blocks = append(blocks, Block{Type: BlockParagraph, Text: txt})
				}
			}
		case *ast.ThematicBreak:
			// Section dividers carry no content.
		}
	}

	if title == "" {
		return Document{}, platform.Errorf(platform.KindValidation, "story.parse",
			"artifact has no level-1 heading to use as title")
	}
	return NewDocument(title, language, blocks), nil
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func soleImage(p *ast.Paragraph, src []byte) (*ast.Image, bool) {
	var img *ast.Image
	for child := p.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Image:
			if img != nil {
				return nil, false
			}
			img = c
		case *ast.Text:
			if strings.TrimSpace(string(c.Segment.Value(src))) != "" {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return img, img != nil
}

var (
	retriggerRe  = regexp.MustCompile(`<!--\s*retrigger\s*-->\s*`)
	blankRunsRe  = regexp.MustCompile(`(?:\n[ \t]*){3,}`)
)

// Sanitize cleans rendered markdown before it is written or composed:
// control comments are stripped, runs of blank lines collapsed, and the
// artifact ends with exactly one newline.
func Sanitize(md string) string {
	clean := retriggerRe.ReplaceAllString(md, "")
	clean = blankRunsRe.ReplaceAllString(clean, "\n\n")
	return strings.TrimRight(clean, " \t\n") + "\n"
}
