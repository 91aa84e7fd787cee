package entries

import (
	"fmt"
	"strings"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/models"
)

type EntryAddCmd struct {
	Text   string   `arg:"" optional:"" help:"Entry text. #hashtags become tags."`
	Mood   string   `help:"Mood (happy, excited, grateful, calm, neutral, tired, anxious, sad, angry)."`
	Rating int      `help:"Day rating from 1 to 10."`
	Tag    []string `help:"Extra tag. Repeatable." short:"t"`
	Media  []string `help:"Media reference as kind:ref (photo, voice, location). Repeatable."`
}

func (c *EntryAddCmd) Run(ctx *cli.Context) error {
	mood, err := models.ParseMood(c.Mood)
	if err != nil {
		return err
	}
	media, err := cli.ParseMedia(c.Media)
	if err != nil {
		return err
	}
	in := models.EntryInput{Text: c.Text, Mood: mood, MediaRefs: media, Tags: c.Tag}
	if c.Rating != 0 {
		r := c.Rating
		in.Rating = &r
	}

	e, err := ctx.Journal.CreateEntry(ctx.Ctx(), ctx.User, in)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Added entry %s\n", e.ID)
	return nil
}

type EntryEditCmd struct {
	ID          string   `arg:"" help:"ID of the entry to edit."`
	Text        *string  `help:"Replace the text."`
	Mood        *string  `help:"Replace the mood. Pass an empty value to clear it."`
	Rating      int      `help:"Replace the rating (1-10)."`
	ClearRating bool     `help:"Remove the rating."`
	Tag         []string `help:"Replace the explicit tags. Repeatable." short:"t"`
	ClearTags   bool     `help:"Remove all explicit tags."`
	Media       []string `help:"Replace media references (kind:ref). Repeatable."`
	ClearMedia  bool     `help:"Remove all media references."`
}

func (c *EntryEditCmd) patch() (models.EntryPatch, error) {
	var p models.EntryPatch
	p.Text = c.Text
	if c.Mood != nil {
		m, err := models.ParseMood(*c.Mood)
		if err != nil {
			return p, err
		}
		p.Mood = &m
	}
	if c.Rating != 0 {
		r := c.Rating
		p.Rating = &r
	}
	p.ClearRating = c.ClearRating
	switch {
	case c.ClearTags:
		p.Tags = &[]string{}
	case len(c.Tag) > 0:
		tags := append([]string(nil), c.Tag...)
		p.Tags = &tags
	}
	switch {
	case c.ClearMedia:
		p.MediaRefs = &[]models.MediaRef{}
	case len(c.Media) > 0:
		refs, err := cli.ParseMedia(c.Media)
		if err != nil {
			return p, err
		}
		p.MediaRefs = &refs
	}
	return p, nil
}

func (c *EntryEditCmd) Run(ctx *cli.Context) error {
	p, err := c.patch()
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		return fmt.Errorf("nothing to change: pass at least one of --text, --mood, --rating, --tag, --media or a --clear-* flag")
	}
	e, err := ctx.Journal.UpdateEntry(ctx.Ctx(), ctx.User, c.ID, p)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Updated entry %s\n", e.ID)
	ctx.Println(cli.FormatEntry(e, ctx.Location))
	return nil
}

type EntryDeleteCmd struct {
	ID []string `arg:"" help:"IDs of the entries to delete."`
}

func (c *EntryDeleteCmd) Run(ctx *cli.Context) error {
	for _, id := range c.ID {
		if err := ctx.Journal.DeleteEntry(ctx.Ctx(), ctx.User, strings.TrimSpace(id)); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		ctx.Printf("✓ Deleted entry %s\n", id)
	}
	return nil
}
