package entries

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/models"
)

// FilterFlags are shared by search and export.
type FilterFlags struct {
	Mood string `help:"Only entries with this mood."`
	Tag  string `help:"Only entries with this tag."`
	From string `help:"First day to include (YYYY-MM-DD)."`
	To   string `help:"Last day to include (YYYY-MM-DD)."`
}

func (f FilterFlags) resolve(now time.Time, loc *time.Location) (models.Mood, *time.Time, *time.Time, error) {
	mood, err := models.ParseMood(f.Mood)
	if err != nil {
		return "", nil, nil, err
	}
	r, err := cli.ParseRange(f.From, f.To, now, loc)
	if err != nil {
		return "", nil, nil, err
	}
	var from, to *time.Time
	if !r.From.IsZero() {
		from = &r.From
	}
	if !r.To.IsZero() {
		to = &r.To
	}
	return mood, from, to, nil
}

type SearchCmd struct {
	Keywords    []string `arg:"" optional:"" help:"Words that must all appear. #tag matches a tag."`
	FilterFlags `embed:""`
	Limit       int  `help:"Maximum number of results (0 for all)." default:"20" short:"n"`
	JSON        bool `help:"Print entries as JSON."`
}

func (c *SearchCmd) Run(ctx *cli.Context) error {
	mood, from, to, err := c.resolve(ctx.Now(), ctx.Location)
	if err != nil {
		return err
	}
	q := index.Query{Keywords: c.Keywords, Mood: mood, Tag: c.Tag, From: from, To: to, Limit: c.Limit}
	if q.IsZero() {
		return fmt.Errorf("search needs at least one keyword, --mood or --tag")
	}

	ids, err := ctx.Index.Search(ctx.Ctx(), ctx.User, q)
	if err != nil {
		return err
	}
	entries, err := ctx.Journal.GetEntries(ctx.Ctx(), ctx.User, ids)
	if err != nil {
		return err
	}
	return printEntries(ctx, entries, c.JSON, "No entries match "+describe(q)+".")
}

func describe(q index.Query) string {
	var parts []string
	if len(q.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("%q", strings.Join(q.Keywords, " ")))
	}
	if q.Mood != "" {
		parts = append(parts, "mood "+string(q.Mood))
	}
	if q.Tag != "" {
		parts = append(parts, "#"+strings.TrimPrefix(q.Tag, "#"))
	}
	return strings.Join(parts, ", ")
}
