package cli

import (
	"io"

	"github.com/clicktrail/clicktrail/internal/config"
	"github.com/clicktrail/clicktrail/internal/kv"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	JSON    bool `long:"json" description:"Output in JSON format"`
	Version bool `long:"version" description:"Show version and exit"`
}

// StatsCommand aggregates the click log.
type StatsCommand struct {
	IncludeArchived bool   `long:"include-archived" description:"Include rotated segments"`
	Date            string `long:"date" description:"Day counted as today (YYYY-MM-DD)"`
	LogPath         string `long:"log" description:"Active click log path (default CLICK_LOG_PATH)"`
	Top             int    `long:"top" description:"Number of top domains (default STATS_TOP_DOMAINS)"`

	globals *GlobalFlags
	version string
	out     io.Writer
	cfg     *config.Config
}

// PruneCommand deletes expired unique markers and rate-limit state.
type PruneCommand struct {
	RetentionDays int `long:"retention-days" description:"Days of unique markers to keep (default UNIQUE_RETENTION_DAYS)"`

	globals *GlobalFlags
	version string
	out     io.Writer
	cfg     *config.Config
	store   kv.Store
}

// HashTokenCommand generates an admin token or hashes an existing one.
type HashTokenCommand struct {
	Token string `long:"token" description:"Hash this token instead of generating one"`

	globals *GlobalFlags
	version string
	out     io.Writer
}
