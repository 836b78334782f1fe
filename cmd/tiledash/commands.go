package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v3"

	"github.com/starford/tiledash/internal"
	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/mcpserver"
)

// open loads the configured dashboard for a one-shot command. Logs go to
// stderr so stdout stays clean for data and protocol traffic.
func open(ctx context.Context, cmd *cli.Command) (*internal.Components, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)
	return internal.Open(ctx, cfg, nil, logger)
}

func closeComponents(c *internal.Components) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		slog.Error("close failed", slog.String("error", err.Error()))
	}
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	comp, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeComponents(comp)

	return mcpserver.New(comp.Service, version).ServeStdio()
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	comp, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeComponents(comp)

	renderStatus(color.Output, comp.Service.ListTiles(ctx, ""), comp.Store.Now())
	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format != "json" && format != "csv" {
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}

	comp, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeComponents(comp)

	var out io.Writer = os.Stdout
	if p := cmd.String("output"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("create %s: %w", p, err)
		}
		defer f.Close()
		out = f
	}
	return export(ctx, comp.Service, format, out)
}

func export(ctx context.Context, svc *dashboard.Service, format string, w io.Writer) error {
	if format == "csv" {
		return svc.ExportCSV(ctx, w)
	}
	data, err := backup.Marshal(svc.Export(ctx))
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// renderStatus prints one row per tile. Overdue tiles are red and tiles
// due soon are yellow.
func renderStatus(w io.Writer, tiles []dashboard.TileDetail, now time.Time) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("TITLE"), bold.Sprint("DUE"), bold.Sprint("PROGRESS"), bold.Sprint("UPDATED"))

	overdue := 0
	for _, t := range tiles {
		dueCol := "-"
		if t.Due != nil {
			switch {
			case t.Due.IsOverdue:
				overdue++
				dueCol = red.Sprint(t.Due.Label)
			case t.Due.IsDueToday || t.Due.IsDueSoon:
				dueCol = yellow.Sprint(t.Due.Label)
			default:
				dueCol = t.Due.Label
			}
		}
		progress := "-"
		if t.Progress != nil {
			progress = fmt.Sprintf("%d%%", *t.Progress)
		}
		updated := "-"
		if ts, err := time.Parse(time.RFC3339Nano, t.LastUpdated); err == nil {
			updated = humanize.RelTime(ts, now, "ago", "from now")
		}
		tbl.AddRow(t.ID, t.Title, dueCol, progress, updated)
	}

	_, _ = fmt.Fprintln(w, tbl)
	_, _ = fmt.Fprintf(w, "\n%s tiles, %s overdue\n", humanize.Comma(int64(len(tiles))), humanize.Comma(int64(overdue)))
}
