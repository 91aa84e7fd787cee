package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/dayjot/internal/models"
)

func newEntryForm(fm *EntryFormModel) *huh.Form {
	moods := []huh.Option[models.Mood]{huh.NewOption("(none)", models.Mood(""))}
	for _, m := range models.AllMoods {
		moods = append(moods, huh.NewOption(string(m), m))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Entry").
				Description("#hashtags become tags").
				Value(&fm.Text),
			huh.NewSelect[models.Mood]().
				Title("Mood").
				Options(moods...).
				Value(&fm.Mood),
			huh.NewInput().
				Title("Day rating (1-10)").
				Value(&fm.Rating).
				Validate(validateRating),
			huh.NewInput().
				Title("Tags").
				Description("Comma separated").
				Value(&fm.Tags),
		),
	).WithTheme(huh.ThemeDracula())
}

func validateRating(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	r, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("rating must be a number")
	}
	if r < models.MinRating || r > models.MaxRating {
		return fmt.Errorf("rating must be %d-%d", models.MinRating, models.MaxRating)
	}
	return nil
}

// input converts the completed form into an entry input. Validation of the
// entry itself is left to the journal.
func (fm *EntryFormModel) input() models.EntryInput {
	in := models.EntryInput{Text: fm.Text, Mood: fm.Mood}
	if r, err := strconv.Atoi(strings.TrimSpace(fm.Rating)); err == nil {
		in.Rating = &r
	}
	for _, t := range strings.Split(fm.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			in.Tags = append(in.Tags, t)
		}
	}
	return in
}
