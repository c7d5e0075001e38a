package story

import (
	"errors"
	"testing"

	"github.com/yukimura/storypost/platform"
)

const sampleArtifact = `# 物語のタイトル（最終更新：2026-08-23）

**3行要約**

- 一つ目
- 二つ目

## タイムライン

最初の段落です。

![現場の写真](media/scene.png)

二番目の段落です。
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleArtifact), "jp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "物語のタイトル（最終更新：2026-08-23）" {
		t.Errorf("unexpected title: %q", doc.Title)
	}
	if doc.Language != "jp" {
		t.Errorf("unexpected language: %q", doc.Language)
	}

	want := []Block{
		{Type: BlockParagraph, Text: "3行要約"},
		{Type: BlockParagraph, Text: "一つ目"},
		{Type: BlockParagraph, Text: "二つ目"},
		{Type: BlockHeading, Level: 2, Text: "タイムライン"},
		{Type: BlockParagraph, Text: "最初の段落です。"},
		{Type: BlockMedia, Ref: "media/scene.png", Text: "現場の写真"},
		{Type: BlockParagraph, Text: "二番目の段落です。"},
	}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(doc.Blocks), doc.Blocks)
	}
	for i, w := range want {
		got := doc.Blocks[i]
		if got.Type != w.Type || got.Text != w.Text || got.Ref != w.Ref {
			t.Errorf("block %d: got %+v, want %+v", i, got, w)
		}
		if w.Type == BlockHeading && got.Level != w.Level {
			t.Errorf("block %d: got level %d, want %d", i, got.Level, w.Level)
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	a, err := Parse([]byte(sampleArtifact), "jp")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse([]byte(sampleArtifact), "jp")
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("parsing the same artifact twice must yield the same fingerprint")
	}
}

func TestParseRequiresTitle(t *testing.T) {
	_, err := Parse([]byte("just a paragraph, no heading\n"), "en")
	if err == nil {
		t.Fatal("expected an error for an artifact without a level-1 heading")
	}
	var pe *platform.Error
	if !errors.As(err, &pe) || pe.Kind != platform.KindValidation {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"strips retrigger comments",
			"# T\n\n<!-- retrigger -->\nbody\n",
			"# T\n\nbody\n",
		},
		{
			"collapses blank runs",
			"# T\n\n\n\n\nbody",
			"# T\n\nbody\n",
		},
		{
			"single trailing newline",
			"# T\n\nbody\n\n\n",
			"# T\n\nbody\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
