// Package composer drives a platform surface to a ready-to-submit
// state. It never triggers the draft-save action itself: submission is
// a separate step owned by the controller, so a crash mid-compose can
// never publish anything.
package composer

import (
	"context"
	"log/slog"

	"github.com/yukimura/storypost/platform"
	"github.com/yukimura/storypost/story"
)

type Composer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Composer {
	return &Composer{logger: logger}
}

// Compose navigates to the composition surface and injects title and
// body blocks in order, translating each block to the platform's
// structural equivalent.
func (c *Composer) Compose(ctx context.Context, surf platform.Surface, doc story.Document) error {
	if err := surf.OpenEditor(ctx); err != nil {
		return err
	}
	if err := surf.SetTitle(ctx, doc.Title); err != nil {
		return err
	}
	for i, block := range doc.Blocks {
		var err error
		switch block.Type {
		case story.BlockHeading:
			err = surf.AppendHeading(ctx, block.Level, block.Text)
		case story.BlockParagraph:
			err = surf.AppendParagraph(ctx, block.Text)
		case story.BlockMedia:
			err = surf.AppendMediaStub(ctx, block.Ref, block.Text)
		default:
			err = platform.Errorf(platform.KindFormat, "composer.compose",
				"block %d: type %q has no renderable mapping", i, block.Type)
		}
		if err != nil {
			return err
		}
	}
	c.logger.Info("draft composed",
		slog.String("fingerprint", doc.Fingerprint()),
		slog.String("language", doc.Language),
		slog.Int("blocks", len(doc.Blocks)))
	return nil
}
