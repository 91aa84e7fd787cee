package reminders

import (
	"fmt"
	"time"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/constants"
	"github.com/julianstephens/dayjot/internal/models"
)

type ReminderCmd struct {
	Set        ReminderSetCmd        `cmd:"" help:"Create a recurring reminder."`
	List       ReminderListCmd       `cmd:"" help:"List reminders." default:"1"`
	Get        ReminderGetCmd        `cmd:"" help:"Show one reminder as JSON."`
	Reschedule ReminderRescheduleCmd `cmd:"" help:"Change a reminder's schedule or timezone."`
	Enable     ReminderEnableCmd     `cmd:"" help:"Resume a reminder from now on."`
	Disable    ReminderDisableCmd    `cmd:"" help:"Pause a reminder."`
	Tick       ReminderTickCmd       `cmd:"" help:"Fire every due reminder once and exit."`
}

type ReminderSetCmd struct {
	Schedule string `arg:"" help:"'daily HH:MM', 'weekdays HH:MM', 'weekly mon,thu HH:MM', 'monthly D HH:MM' or a 5-field cron expression."`
	Timezone string `help:"IANA timezone the schedule is read in." default:"${timezone}" short:"z"`
	Label    string `help:"Text shown with the reminder." short:"l"`
}

func (c *ReminderSetCmd) Run(ctx *cli.Context) error {
	r, err := ctx.Reminders.SetReminder(ctx.Ctx(), ctx.User, c.Schedule, c.Timezone, c.Label)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Added reminder %s, next at %s\n", r.ID, formatFire(r))
	return nil
}

type ReminderListCmd struct {
	JSON bool `help:"Print reminders as JSON."`
}

func (c *ReminderListCmd) Run(ctx *cli.Context) error {
	list, err := ctx.Reminders.ListReminders(ctx.Ctx(), ctx.User)
	if err != nil {
		return err
	}
	if c.JSON {
		return ctx.PrintJSON(list)
	}
	if len(list) == 0 {
		ctx.Println("No reminders. Add one with 'dayjot reminder set \"daily 21:00\"'.")
		return nil
	}
	now := ctx.Now()
	for _, r := range list {
		label := r.Label
		if label == "" {
			label = "-"
		}
		ctx.Printf("%s  %-9s  %-22s  %-16s  next %s  %s\n",
			r.ID, r.StateAt(now), r.Schedule, r.Timezone, formatFire(r), label)
	}
	return nil
}

type ReminderGetCmd struct {
	ID string `arg:"" help:"ID of the reminder."`
}

func (c *ReminderGetCmd) Run(ctx *cli.Context) error {
	r, err := ctx.Reminders.GetReminder(ctx.Ctx(), ctx.User, c.ID)
	if err != nil {
		return err
	}
	return ctx.PrintJSON(r)
}

type ReminderRescheduleCmd struct {
	ID       string `arg:"" help:"ID of the reminder."`
	Schedule string `arg:"" help:"New schedule."`
	Timezone string `help:"New timezone. Keeps the current one when omitted." short:"z"`
}

func (c *ReminderRescheduleCmd) Run(ctx *cli.Context) error {
	r, err := ctx.Reminders.Reschedule(ctx.Ctx(), ctx.User, c.ID, c.Schedule, c.Timezone)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Rescheduled %s, next at %s\n", r.ID, formatFire(r))
	return nil
}

type ReminderEnableCmd struct {
	ID string `arg:"" help:"ID of the reminder."`
}

func (c *ReminderEnableCmd) Run(ctx *cli.Context) error {
	r, err := ctx.Reminders.EnableReminder(ctx.Ctx(), ctx.User, c.ID)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Enabled %s, next at %s\n", r.ID, formatFire(r))
	return nil
}

type ReminderDisableCmd struct {
	ID string `arg:"" help:"ID of the reminder."`
}

func (c *ReminderDisableCmd) Run(ctx *cli.Context) error {
	r, err := ctx.Reminders.DisableReminder(ctx.Ctx(), ctx.User, c.ID)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Disabled %s\n", r.ID)
	return nil
}

// ReminderTickCmd runs a single pass, for cron-driven deployments that do
// not keep 'dayjot run' alive.
type ReminderTickCmd struct {
	JSON bool `help:"Print the tick report as JSON."`
}

func (c *ReminderTickCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Reminders.Tick(ctx.Ctx(), ctx.Now())
	if err != nil {
		return err
	}
	if c.JSON {
		return ctx.PrintJSON(report)
	}
	ctx.Printf("Due %d, sent %d, failed %d, conflicts %d\n", report.Due, report.Sent, report.Failed, report.Conflicts)
	if report.Deferred {
		ctx.Println("More reminders are due than one tick handles; run again to continue.")
	}
	return nil
}

func formatFire(r models.Reminder) string {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s %s", r.NextFireAt.In(loc).Format(constants.DateFormat+" "+constants.TimeFormat), r.Timezone)
}
