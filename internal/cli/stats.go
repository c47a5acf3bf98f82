package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clicktrail/clicktrail/internal/clicklog"
	"github.com/clicktrail/clicktrail/internal/model"
	"github.com/clicktrail/clicktrail/internal/stats"
)

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.cfg)
	if err != nil {
		return err
	}

	if c.Date != "" {
		if _, err := time.Parse(model.DateLayout, c.Date); err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
	}

	path := c.LogPath
	if path == "" {
		path = cfg.ClickLogPath
	}
	top := c.Top
	if top <= 0 {
		top = cfg.StatsTopDomains
	}

	var listArchives func() ([]string, error)
	if c.IncludeArchived {
		listArchives = func() ([]string, error) { return clicklog.Archives(path) }
	}

	agg := stats.Aggregator{
		Location:    cfg.Location(),
		TopN:        top,
		HourBuckets: cfg.StatsHourlyBuckets,
		Date:        c.Date,
	}
	st, err := agg.AggregateLog(path, listArchives)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", path, err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	c.printHuman(path, st)
	return nil
}

func (c *StatsCommand) printHuman(path string, st *model.AggregatedStats) {
	fmt.Fprintln(c.out, "Click Statistics")
	fmt.Fprintln(c.out, "================")
	fmt.Fprintf(c.out, "Log:           %s (%d segments)\n", path, st.Segments)
	fmt.Fprintf(c.out, "Total:         %d\n", st.Total)
	fmt.Fprintf(c.out, "Today:         %d (%s)\n", st.Today, st.Date)
	if st.Skipped > 0 {
		fmt.Fprintf(c.out, "Skipped:       %d malformed records\n", st.Skipped)
	}

	if len(st.TopDomains) > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "Top Domains:")
		for _, d := range st.TopDomains {
			fmt.Fprintf(c.out, "  %-30s %d\n", d.Domain, d.Clicks)
		}
	}

	if len(st.Hourly) > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "Hourly:")
		for _, h := range st.Hourly {
			fmt.Fprintf(c.out, "  %s:00  %d\n", h.Hour, h.Clicks)
		}
	}
}
