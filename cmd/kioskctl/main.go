// Command kioskctl is the operator CLI: schema migrations and printable
// scan-code labels.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/urfave/cli/v3"

	"github.com/iliyamo/seat-locker-kiosk/internal/database"
	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

func main() {
	_ = godotenv.Load()
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "kioskctl",
		Usage: "operate the seat and locker kiosk backend",
		Commands: []*cli.Command{
			migrateCommand(),
			labelsCommand(out),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "apply, roll back or inspect the MySQL schema",
		ArgsUsage: "[up|down|status]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-user", Sources: cli.EnvVars("DB_USER"), Required: true},
			&cli.StringFlag{Name: "db-pass", Sources: cli.EnvVars("DB_PASS")},
			&cli.StringFlag{Name: "db-host", Sources: cli.EnvVars("DB_HOST"), Value: "127.0.0.1"},
			&cli.StringFlag{Name: "db-port", Sources: cli.EnvVars("DB_PORT"), Value: "3306"},
			&cli.StringFlag{Name: "db-name", Sources: cli.EnvVars("DB_NAME"), Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			direction := cmd.Args().First()
			db, err := database.Open(cmd.String("db-user"), cmd.String("db-pass"),
				cmd.String("db-host"), cmd.String("db-port"), cmd.String("db-name"))
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db, direction)
		},
	}
}

func labelsCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "labels",
		Usage: "print scan codes for a seat grid and locker bank",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: string(model.FormatLegacy), Usage: "LEGACY or APP1"},
			&cli.StringFlag{Name: "rows", Value: "A-D", Usage: "seat row letters, e.g. A-D"},
			&cli.IntFlag{Name: "cols", Value: 4, Usage: "seats per row"},
			&cli.IntFlag{Name: "lockers", Value: 20, Usage: "number of lockers"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return writeLabels(out, cmd.String("format"), cmd.String("rows"), int(cmd.Int("cols")), int(cmd.Int("lockers")))
		},
	}
}

// writeLabels prints one tab-separated line per resource: kind, id, code.
func writeLabels(w io.Writer, format, rows string, cols, lockers int) error {
	f := model.QRFormat(strings.ToUpper(format))
	if !f.Valid() {
		return fmt.Errorf("unknown format %q", format)
	}
	seats, err := scan.SeatGrid(rows, cols)
	if err != nil {
		return err
	}
	lockerIDs, err := scan.LockerRange(lockers)
	if err != nil {
		return err
	}
	emit := func(kind model.ResourceKind, ids []string) error {
		for _, id := range ids {
			code, err := scan.Generate(kind, id, f)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", kind, id, code); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emit(model.KindSeat, seats); err != nil {
		return err
	}
	return emit(model.KindLocker, lockerIDs)
}
