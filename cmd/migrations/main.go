package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/namehu/pixishelf/pkg/config"
	"github.com/namehu/pixishelf/pkg/database"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// libraryTables are reported by `status` once the schema exists.
var libraryTables = []string{"artists", "tags", "artworks", "images", "artwork_tags", "settings"}

type app struct {
	db *bun.DB
}

func main() {
	log := logger.New()
	a := &app{}

	cliApp := &cli.App{
		Name:        "migrations",
		Usage:       "manage the pixishelf library schema",
		Description: "Applies, rolls back, and inspects the bun migrations for the artwork library database.",
		Before:      a.open,
		After:       a.close,
		Commands: []*cli.Command{
			{Name: "init", Usage: "create the migration bookkeeping tables", Action: a.init},
			{Name: "migrate", Usage: "apply every pending migration", Action: a.migrate},
			{Name: "rollback", Usage: "roll back the last migration group", Action: a.rollback},
			{Name: "create", Usage: "create a Go migration", ArgsUsage: "<name words...>", Action: a.create},
			{Name: "status", Usage: "print applied and pending migrations and library row counts", Action: a.status},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Err(err).Fatal("migrations failed")
	}
}

func (a *app) open(_ *cli.Context) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	a.db, err = database.New(cfg)
	return err
}

func (a *app) close(_ *cli.Context) error {
	if a.db == nil {
		return nil
	}
	return errors.WithStack(a.db.Close())
}

func (a *app) migrator() *migrate.Migrator {
	return migrate.NewMigrator(a.db, migrations.Migrations, migrate.WithMarkAppliedOnSuccess(true))
}

func (a *app) init(c *cli.Context) error {
	return errors.WithStack(a.migrator().Init(c.Context))
}

func (a *app) migrate(c *cli.Context) error {
	m := a.migrator()
	if err := m.Init(c.Context); err != nil {
		return errors.WithStack(err)
	}

	group, err := m.Migrate(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	if group.IsZero() {
		fmt.Println("Library schema is up to date")
		return nil
	}
	fmt.Printf("Migrated to %s (%s)\n", group, group.Migrations)
	return nil
}

func (a *app) rollback(c *cli.Context) error {
	group, err := a.migrator().Rollback(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	if group.IsZero() {
		fmt.Println("There is no migration group to roll back")
		return nil
	}
	fmt.Printf("Rolled back %s (%s)\n", group, group.Migrations)
	return nil
}

func (a *app) create(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a migration name is required", 2)
	}
	name := strings.Join(c.Args().Slice(), "_")
	mf, err := a.migrator().CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
	return nil
}

func (a *app) status(c *cli.Context) error {
	ms, err := a.migrator().MigrationsWithStatus(c.Context)
	if err != nil {
		return errors.WithStack(err)
	}
	unapplied := ms.Unapplied()
	fmt.Printf("Applied migrations: %s\n", ms.Applied())
	fmt.Printf("Pending migrations: %s\n", unapplied)
	fmt.Printf("Last migration group: %s\n", ms.LastGroup())

	if len(ms.Applied()) == 0 {
		return nil
	}
	counts, err := tableCounts(c.Context, a.db)
	if err != nil {
		return err
	}
	for _, table := range libraryTables {
		fmt.Printf("  %-13s %d rows\n", table, counts[table])
	}
	return nil
}

func tableCounts(ctx context.Context, db *bun.DB) (map[string]int, error) {
	counts := make(map[string]int, len(libraryTables))
	for _, table := range libraryTables {
		n, err := db.NewSelect().Table(table).Count(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
