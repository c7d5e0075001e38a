package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/yukimura/storypost/platform"
	"github.com/yukimura/storypost/story"
)

// recordingSurface captures composition calls in order.
type recordingSurface struct {
	ops       []string
	titleErr  error
	openErr   error
	appendErr error
}

func (r *recordingSurface) Login(ctx context.Context, creds platform.Credentials) error { return nil }
func (r *recordingSurface) LoggedIn(ctx context.Context) (bool, error)                  { return true, nil }
func (r *recordingSurface) Cookies(ctx context.Context) ([]platform.Cookie, error)      { return nil, nil }
func (r *recordingSurface) SetCookies(ctx context.Context, cookies []platform.Cookie) error {
	return nil
}

func (r *recordingSurface) OpenEditor(ctx context.Context) error {
	r.ops = append(r.ops, "open")
	return r.openErr
}

func (r *recordingSurface) SetTitle(ctx context.Context, title string) error {
	r.ops = append(r.ops, "title:"+title)
	return r.titleErr
}

func (r *recordingSurface) AppendHeading(ctx context.Context, level int, text string) error {
	r.ops = append(r.ops, fmt.Sprintf("h%d:%s", level, text))
	return r.appendErr
}

func (r *recordingSurface) AppendParagraph(ctx context.Context, text string) error {
	r.ops = append(r.ops, "p:"+text)
	return r.appendErr
}

func (r *recordingSurface) AppendMediaStub(ctx context.Context, ref, caption string) error {
	r.ops = append(r.ops, "media:"+ref)
	return r.appendErr
}

func (r *recordingSurface) SaveDraft(ctx context.Context) error {
	r.ops = append(r.ops, "save")
	return nil
}

func (r *recordingSurface) ListDrafts(ctx context.Context) ([]platform.DraftEntry, error) {
	return nil, nil
}

func (r *recordingSurface) DumpDebug(ctx context.Context, tag string) {}
func (r *recordingSurface) Close() error                              { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestComposePreservesBlockOrder(t *testing.T) {
	doc := story.NewDocument("見出し", "jp", []story.Block{
		{Type: story.BlockHeading, Level: 2, Text: "タイムライン"},
		{Type: story.BlockParagraph, Text: "本文。"},
		{Type: story.BlockMedia, Ref: "media/a.png", Text: "写真"},
	})
	surf := &recordingSurface{}

	if err := New(testLogger()).Compose(context.Background(), surf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"open", "title:見出し", "h2:タイムライン", "p:本文。", "media:media/a.png"}
	if len(surf.ops) != len(want) {
		t.Fatalf("expected %d operations, got %v", len(want), surf.ops)
	}
	for i, op := range want {
		if surf.ops[i] != op {
			t.Errorf("operation %d: got %q, want %q", i, surf.ops[i], op)
		}
	}
}

func TestComposeNeverSaves(t *testing.T) {
	doc := story.NewDocument("T", "en", []story.Block{{Type: story.BlockParagraph, Text: "x"}})
	surf := &recordingSurface{}
	if err := New(testLogger()).Compose(context.Background(), surf, doc); err != nil {
		t.Fatal(err)
	}
	for _, op := range surf.ops {
		if op == "save" {
			t.Fatal("compose must never trigger the draft-save action")
		}
	}
}

func TestComposeUnknownBlockType(t *testing.T) {
	doc := story.NewDocument("T", "en", []story.Block{{Type: story.BlockType("table"), Text: "x"}})
	err := New(testLogger()).Compose(context.Background(), &recordingSurface{}, doc)
	if err == nil {
		t.Fatal("expected an error for an unmapped block type")
	}
	if platform.KindOf(err) != platform.KindFormat {
		t.Errorf("expected a format error, got %v", err)
	}
}

func TestComposePropagatesSurfaceErrors(t *testing.T) {
	doc := story.NewDocument("T", "en", []story.Block{{Type: story.BlockParagraph, Text: "x"}})
	uiErr := platform.Errorf(platform.KindUI, "test", "editor gone")

	surf := &recordingSurface{openErr: uiErr}
	if err := New(testLogger()).Compose(context.Background(), surf, doc); !errors.Is(err, uiErr) {
		t.Errorf("open error not propagated: %v", err)
	}

	surf = &recordingSurface{appendErr: uiErr}
	if err := New(testLogger()).Compose(context.Background(), surf, doc); !errors.Is(err, uiErr) {
		t.Errorf("append error not propagated: %v", err)
	}
}
