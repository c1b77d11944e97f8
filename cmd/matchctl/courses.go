package main

import (
	"fmt"
	"time"

	"github.com/okian/matchflow/internal/adapters/ingest"
	app "github.com/okian/matchflow/internal/app"
	"github.com/okian/matchflow/pkg/logger"
	"github.com/urfave/cli/v2"
)

var coursesCmd = &cli.Command{
	Name:    "courses",
	Usage:   "Assign applicants to scheduled courses",
	Aliases: []string{"c"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "courses",
			Required: true,
			Usage:    "specify the input courses.json",
		},
		&cli.StringFlag{
			Name:     "applicants",
			Required: true,
			Usage:    "specify the input applicants.json",
		},
		&cli.TimestampFlag{
			Name:   "reference",
			Layout: time.RFC3339,
			Usage:  "schedule origin; defaults to the earliest slot",
		},
		&cli.StringFlag{
			Name:     "out",
			Required: true,
			Usage:    "specify the output assignments.json",
		},
	},
	Action: func(ctx *cli.Context) error {
		var reference time.Time
		if ts := ctx.Timestamp("reference"); ts != nil {
			reference = *ts
		}

		courseRecords, err := readRecords[ingest.CourseRecord](ctx.String("courses"))
		if err != nil {
			return err
		}
		courses, err := ingest.Courses(courseRecords, reference)
		if err != nil {
			return fmt.Errorf("load courses: %w", err)
		}
		applicantRecords, err := readRecords[ingest.ApplicantRecord](ctx.String("applicants"))
		if err != nil {
			return err
		}
		applicants, err := ingest.Applicants(applicantRecords, courses)
		if err != nil {
			return fmt.Errorf("load applicants: %w", err)
		}

		engine := app.NewEngine(logger.Named("matchctl"))
		res, err := engine.Courses(ctx.Context, app.CourseInput{Courses: courses, Applicants: applicants})
		if err != nil {
			return err
		}
		if err := writeAll([]output{{path: ctx.String("out"), value: res.Assignments}}); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "%d assigned by flow, %d conflicts removed, %d backfilled\n",
			res.FlowAssigned, res.ConflictsRemoved, res.Backfilled)
		return nil
	},
}
