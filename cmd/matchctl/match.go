package main

import (
	"fmt"
	"time"

	"github.com/okian/matchflow/internal/adapters/ingest"
	app "github.com/okian/matchflow/internal/app"
	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/matching"
	"github.com/okian/matchflow/pkg/logger"
	"github.com/urfave/cli/v2"
)

var matchCmd = &cli.Command{
	Name:    "match",
	Usage:   "Match requesters with providers",
	Aliases: []string{"m"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "requesters",
			Required: true,
			Usage:    "specify the input requesters.json",
		},
		&cli.StringFlag{
			Name:     "providers",
			Required: true,
			Usage:    "specify the input providers.json",
		},
		&cli.StringFlag{
			Name:  "balancing",
			Usage: "specify the input balancing.json (target share per cost component)",
		},
		&cli.StringFlag{
			Name:  "algorithm",
			Value: matching.SuccessiveShortestPaths.String(),
			Usage: "successive-shortest-paths or cycle-canceling",
		},
		&cli.TimestampFlag{
			Name:   "now",
			Layout: time.RFC3339,
			Usage:  "measure waiting time against this instant instead of the clock",
		},
		&cli.StringSliceFlag{
			Name:  "requester",
			Usage: "only match the given requester uuid (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "provider",
			Usage: "only match the given provider uuid (repeatable)",
		},
		&cli.StringFlag{
			Name:     "matches",
			Required: true,
			Usage:    "specify the output matches.json",
		},
		&cli.StringFlag{
			Name:  "stats",
			Usage: "specify the output stats.json",
		},
	},
	Action: func(ctx *cli.Context) error {
		algorithm, err := matching.ParseAlgorithm(ctx.String("algorithm"))
		if err != nil {
			return err
		}

		now := time.Now
		if ts := ctx.Timestamp("now"); ts != nil {
			fixed := *ts
			now = func() time.Time { return fixed }
		}
		dec := ingest.NewDecoder(
			ingest.WithClock(now),
			ingest.WithRequesterFilter(ctx.StringSlice("requester")),
			ingest.WithProviderFilter(ctx.StringSlice("provider")),
		)

		requesterRecords, err := readRecords[ingest.RequesterRecord](ctx.String("requesters"))
		if err != nil {
			return err
		}
		requesters, err := dec.Requesters(requesterRecords)
		if err != nil {
			return fmt.Errorf("load requesters: %w", err)
		}
		providerRecords, err := readRecords[ingest.ProviderRecord](ctx.String("providers"))
		if err != nil {
			return err
		}
		providers, err := dec.Providers(providerRecords)
		if err != nil {
			return fmt.Errorf("load providers: %w", err)
		}

		var (
			targets map[cost.Component]float64
			ignored []string
		)
		if path := ctx.String("balancing"); path != "" {
			raw, err := readBalancing(path)
			if err != nil {
				return err
			}
			if targets, ignored, err = ingest.Balancing(raw); err != nil {
				return fmt.Errorf("load balancing: %w", err)
			}
		}

		engine := app.NewEngine(logger.Named("matchctl"))
		res, err := engine.Matching(ctx.Context, app.MatchingInput{
			Requesters: requesters,
			Providers:  providers,
			Targets:    targets,
			Ignored:    ignored,
			Algorithm:  algorithm,
		})
		if err != nil {
			return err
		}

		outputs := []output{{path: ctx.String("matches"), value: res.Matches}}
		if path := ctx.String("stats"); path != "" {
			outputs = append(outputs, output{path: path, value: res.Stats})
		}
		if err := writeAll(outputs); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "%d matches, cost %.3f\n", res.Stats.Matches, res.Stats.MatchingCost)
		return nil
	},
}
