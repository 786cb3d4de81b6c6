package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"lod-engine/src/export"
	"lod-engine/src/models"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	series []string
	from   string
	to     string
	width  int
	xlsx   string
	png    string
}

// -----------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Decimate stored series for a given width and write them to xlsx or png",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.xlsx == "" && opts.png == "" {
				return fmt.Errorf("at least one of --xlsx or --png is required")
			}
			return runExport(opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.series, "series", nil, "series ids (default: every configured series)")
	cmd.Flags().StringVar(&opts.from, "from", "", "range start, RFC3339 or unix ms (default: first stored bar)")
	cmd.Flags().StringVar(&opts.to, "to", "", "range end, RFC3339 or unix ms (default: last stored bar)")
	cmd.Flags().IntVar(&opts.width, "width", export.DefaultWidth, "pixel width the series are decimated for")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "workbook to write")
	cmd.Flags().StringVar(&opts.png, "png", "", "chart to write (first series only)")
	return cmd
}

// -----------------------------------------------------------------------------

func runExport(opts exportOptions) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Offline engine: no sink, no metrics, one pane sized by --width
	for i := range cfg.Series {
		cfg.Series[i].Pane = "export"
		cfg.Series[i].WidthPx = opts.width
	}
	eng, err := setupEngine(cfg, nil, nil, nil)
	if err != nil {
		return err
	}

	ids := opts.series
	if len(ids) == 0 {
		for _, sc := range cfg.Series {
			ids = append(ids, sc.ID)
		}
	}

	var out []*models.MDecimatedSeries
	for _, id := range ids {
		r, err := exportRange(db.Bounds, id, opts.from, opts.to)
		if err != nil {
			return err
		}
		if r == nil {
			appLogger.Warning("Series %s has no stored data, skipping", id)
			continue
		}
		bars, err := db.LoadRange(id, *r)
		if err != nil {
			return err
		}
		if _, err := eng.SetData(id, bars); err != nil {
			return err
		}
		eng.SetVisibleRange("export", *r)
		d, ok := eng.GetOrBuildRenderSeries(id, "export")
		if !ok {
			appLogger.Warning("Series %s has no points in range, skipping", id)
			continue
		}
		appLogger.Info("%s: %d of %d points at %s detail", id, d.Len(), d.SourceCount, d.Level)
		out = append(out, d)
	}
	if len(out) == 0 {
		return fmt.Errorf("no series to export")
	}

	if opts.xlsx != "" {
		if err := export.WriteXLSX(opts.xlsx, out...); err != nil {
			return err
		}
		appLogger.Info("Wrote %s", opts.xlsx)
	}
	if opts.png != "" {
		f, err := os.Create(opts.png)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.WritePNG(f, out[0], opts.width, export.DefaultHeight); err != nil {
			return err
		}
		appLogger.Info("Wrote %s", opts.png)
	}
	return nil
}

// -----------------------------------------------------------------------------

// exportRange resolves --from/--to, defaulting to the stored bounds of id
func exportRange(bounds func(string) (*models.MTimeRange, error), id, from, to string) (*models.MTimeRange, error) {
	stored, err := bounds(id)
	if err != nil {
		return nil, err
	}
	if stored == nil && (from == "" || to == "") {
		return nil, nil
	}

	r := models.MTimeRange{}
	if stored != nil {
		r = *stored
	}
	if from != "" {
		if r.Start, err = parseTime(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if r.End, err = parseTime(to); err != nil {
			return nil, err
		}
	}
	if r.End < r.Start {
		return nil, fmt.Errorf("--to is before --from")
	}
	return &r, nil
}

// -----------------------------------------------------------------------------

func parseTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want RFC3339 or unix ms", s)
	}
	return t.UnixMilli(), nil
}
