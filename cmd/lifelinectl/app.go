package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dandantas/lifeline/internal/client"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

const clientKey = "client"

// now is replaced in tests
var now = time.Now

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "lifelinectl",
		Usage:     "Lifeline check-in monitor client",
		UsageText: "lifelinectl [global options] command [arguments]",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Lifeline server `URL`",
				Value:   client.DefaultURL,
				EnvVars: []string{"LIFELINE_URL"},
			},
			&cli.StringFlag{
				Name:    "demo-key",
				Usage:   "value sent in the X-Demo-Key header",
				EnvVars: []string{"LIFELINE_DEMO_KEY"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 15 * time.Second,
			},
		},
		Before: withClient,
		Commands: []*cli.Command{
			{
				Name:      "checkin",
				Usage:     "Record a check-in for a subject",
				ArgsUsage: "SUBJECT",
				Action:    checkIn,
			},
			{
				Name:      "enroll",
				Usage:     "Start monitoring a subject",
				ArgsUsage: "SUBJECT",
				Action:    enroll,
			},
			{
				Name:      "status",
				Usage:     "Show every monitored subject, or a single one",
				ArgsUsage: "[SUBJECT]",
				Action:    status,
			},
			{
				Name:      "notify",
				Usage:     "Send an alert for a subject right away",
				ArgsUsage: "SUBJECT",
				Action:    notifyNow,
			},
			{
				Name:      "sms-test",
				Usage:     "Send a test message through the configured sender",
				ArgsUsage: "TO BODY",
				Action:    smsTest,
			},
		},
	}
}

func withClient(ctx *cli.Context) error {
	c, err := client.New(ctx.String("url"), ctx.String("demo-key"), ctx.Duration("timeout"))
	if err != nil {
		return err
	}
	ctx.App.Metadata = map[string]interface{}{clientKey: c}
	return nil
}

func apiClient(ctx *cli.Context) *client.Client {
	return ctx.App.Metadata[clientKey].(*client.Client)
}

func subjectArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", errors.New("exactly one SUBJECT argument is required")
	}
	return ctx.Args().First(), nil
}

func checkIn(ctx *cli.Context) error {
	subjectID, err := subjectArg(ctx)
	if err != nil {
		return err
	}

	resp, err := apiClient(ctx).CheckIn(ctx.Context, subjectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Checked in %s, next deadline %s (%s)\n",
		resp.SubjectID, resp.Deadline, relative(resp.DeadlineTime()))
	return nil
}

func enroll(ctx *cli.Context) error {
	subjectID, err := subjectArg(ctx)
	if err != nil {
		return err
	}

	resp, err := apiClient(ctx).Enroll(ctx.Context, subjectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Enrolled %s, deadline %s (%s)\n",
		resp.SubjectID, resp.Deadline, relative(resp.DeadlineTime()))
	return nil
}

func status(ctx *cli.Context) error {
	c := apiClient(ctx)

	if ctx.NArg() == 1 {
		subject, err := c.Subject(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		writeSubjects(ctx.App.Writer, []model.SubjectResponse{subject})
		return nil
	}

	resp, err := c.Status(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Policy: %s, window: %s, subjects: %s\n",
		resp.Policy,
		time.Duration(resp.WindowSec)*time.Second,
		humanize.Comma(int64(len(resp.Subjects))),
	)
	if resp.LastSweepMs != nil {
		fmt.Fprintf(ctx.App.Writer, "Last sweep: %s\n", relative(time.UnixMilli(*resp.LastSweepMs)))
	}
	if len(resp.Subjects) > 0 {
		writeSubjects(ctx.App.Writer, resp.Subjects)
	}
	return nil
}

func notifyNow(ctx *cli.Context) error {
	subjectID, err := subjectArg(ctx)
	if err != nil {
		return err
	}

	resp, err := apiClient(ctx).Notify(ctx.Context, subjectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Alert sent for %s (receipt %s, status %s)\n",
		subjectID, resp.Receipt.ID, resp.Receipt.Status)
	return nil
}

func smsTest(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return errors.New("TO and BODY arguments are required")
	}

	resp, err := apiClient(ctx).SendTestSMS(ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1))
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Message sent (receipt %s, status %s)\n", resp.Receipt.ID, resp.Receipt.Status)
	return nil
}

func writeSubjects(out io.Writer, subjects []model.SubjectResponse) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tDEADLINE\tLAST CHECK-IN\tLAST ALERT\tGENERATION")
	for _, s := range subjects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.SubjectID,
			relative(s.DeadlineTime()),
			relativeMs(s.LastCheckInMs),
			relativeMs(s.LastAlertMs),
			s.Generation,
		)
	}
	w.Flush()
}

func relative(t time.Time) string {
	return humanize.RelTime(t, now(), "ago", "from now")
}

func relativeMs(ms *int64) string {
	if ms == nil {
		return "never"
	}
	return relative(time.UnixMilli(*ms))
}
