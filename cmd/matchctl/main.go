// Command matchctl runs matchings and course assignments on JSON files.
package main

import (
	"fmt"
	"os"

	"github.com/okian/matchflow/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "matchctl",
		Usage: "Solve tutoring matchings and course assignments offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "text or json",
			},
		},
		Before: func(ctx *cli.Context) error {
			if err := logger.Init(logger.WithOutput(ctx.App.ErrWriter), logger.WithFormat(ctx.String("log-format"))); err != nil {
				return err
			}
			return logger.SetLevelString(ctx.String("log-level"))
		},
		Commands: []*cli.Command{
			matchCmd,
			coursesCmd,
		},
	}
}
