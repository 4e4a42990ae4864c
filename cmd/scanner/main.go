package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/namehu/pixishelf/pkg/config"
	"github.com/namehu/pixishelf/pkg/database"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/namehu/pixishelf/pkg/version"
	"github.com/namehu/pixishelf/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/segmentio/encoding/json"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	app := &cli.App{
		Name:    "scanner",
		Usage:   "ingest an artwork export into the library",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "discover sidecars under the scan root and ingest new artworks",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "wipe the library and re-ingest everything",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "scan root, overriding the stored setting",
					},
					&cli.StringFlag{
						Name:  "paths-file",
						Usage: "file with one root-relative sidecar path per line, replacing discovery",
					},
				},
				Action: func(c *cli.Context) error {
					paths, err := readPaths(c.String("paths-file"))
					if err != nil {
						return err
					}
					return run(c.Context, log, func(ctx context.Context, w *worker.Worker, cancelled *atomic.Bool) (*worker.ScanResult, error) {
						return w.Scan(ctx, worker.ScanOptions{
							ForceUpdate:   c.Bool("force"),
							Root:          c.String("root"),
							MetadataPaths: paths,
							ShouldCancel:  cancelled.Load,
							OnProgress: func(p worker.Progress) {
								log.Info(p.Message, logger.Data{"phase": p.Phase, "percentage": p.Percentage})
							},
						})
					})
				},
			},
			{
				Name:      "rescan",
				Usage:     "re-read one artwork's sidecar and replace its stored data",
				ArgsUsage: "<external id> [relative dir]",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return cli.Exit("an external id is required", 2)
					}
					externalID, dir := c.Args().Get(0), c.Args().Get(1)
					return run(c.Context, log, func(ctx context.Context, w *worker.Worker, _ *atomic.Bool) (*worker.ScanResult, error) {
						return w.Rescan(ctx, externalID, dir)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("scanner failed")
	}
}

type runFunc func(ctx context.Context, w *worker.Worker, cancelled *atomic.Bool) (*worker.ScanResult, error)

// run opens the database, runs fn, and prints its result as JSON. An interrupt
// asks the scan to stop at the next batch boundary.
func run(ctx context.Context, log logger.Logger, fn runFunc) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		return err
	}

	var cancelled atomic.Bool
	graceful := signals.Setup()
	go func() {
		<-graceful
		log.Warn("interrupt received, stopping after the current batch")
		cancelled.Store(true)
	}()

	result, runErr := fn(ctx, worker.New(cfg, db, nil), &cancelled)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(out))

	return runErr
}

func readPaths(file string) ([]string, error) {
	if file == "" {
		return nil, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", file)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			paths = append(paths, line)
		}
	}
	return paths, errors.WithStack(scanner.Err())
}
