package entries

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/models"
)

type StatsCmd struct {
	From string `help:"First day to include (YYYY-MM-DD)."`
	To   string `help:"Last day to include (YYYY-MM-DD)."`
	JSON bool   `help:"Print stats as JSON."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	r, err := cli.ParseRange(c.From, c.To, ctx.Now(), ctx.Location)
	if err != nil {
		return err
	}
	stats, err := ctx.Journal.ComputeStats(ctx.Ctx(), ctx.User, r)
	if err != nil {
		return err
	}
	if c.JSON {
		return ctx.PrintJSON(stats)
	}

	ctx.Printf("Entries:          %d\n", stats.EntryCount)
	ctx.Printf("Days with entries: %d\n", stats.DaysWithEntries)
	if stats.RatedEntries > 0 {
		ctx.Printf("Average rating:   %.1f (%d rated)\n", stats.AverageRating, stats.RatedEntries)
	}
	if len(stats.MoodDistribution) > 0 {
		ctx.Println("Moods:")
		for _, m := range models.AllMoods {
			if n := stats.MoodDistribution[m]; n > 0 {
				ctx.Printf("  %-9s %s %d\n", m, bar(n, stats.EntryCount), n)
			}
		}
	}
	if len(stats.EntriesPerDay) > 0 {
		days := make([]string, 0, len(stats.EntriesPerDay))
		for d := range stats.EntriesPerDay {
			days = append(days, d)
		}
		slices.Sort(days)
		ctx.Printf("First day: %s, last day: %s\n", days[0], days[len(days)-1])
	}
	return nil
}

func bar(n, total int) string {
	const width = 20
	if total == 0 {
		return ""
	}
	filled := n * width / total
	if filled == 0 {
		filled = 1
	}
	return fmt.Sprintf("%-*s", width, strings.Repeat("█", filled))
}
