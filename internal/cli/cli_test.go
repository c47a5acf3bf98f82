package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicktrail/clicktrail/internal/auth"
	"github.com/clicktrail/clicktrail/internal/config"
	"github.com/clicktrail/clicktrail/internal/impression"
	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/model"
	"github.com/clicktrail/clicktrail/internal/ratelimit"
	"github.com/clicktrail/clicktrail/internal/testutil"
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		AppPort:              8080,
		AnalyticsEnabled:     true,
		ClickLogPath:         filepath.Join(dir, "clicks.log"),
		RateLimitEnabled:     true,
		RateLimitMaxRequests: 20,
		RateLimitWindow:      time.Hour,
		StateBackend:         config.StateBackendBolt,
		StatePath:            filepath.Join(dir, "state.db"),
		StateOpenTimeout:     time.Second,
		Timezone:             "UTC",
		UniqueRetentionDays:  2,
		AdminRateLimit:       60,
		StatsTopDomains:      10,
		StatsHourlyBuckets:   24,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestVersionFlag(t *testing.T) {
	var buf bytes.Buffer
	err := RunWithArgs("1.2.3", []string{"--version"}, &buf)

	assert.NoError(t, err)
	assert.Equal(t, "clickctl 1.2.3", strings.TrimSpace(buf.String()))
}

func TestSubcommandsRegistered(t *testing.T) {
	parser, _, _ := buildParser("test", &bytes.Buffer{})
	for _, name := range []string{"stats", "prune", "hash-token"} {
		assert.NotNil(t, parser.Find(name), "missing subcommand %s", name)
	}
}

func TestUnknownSubcommand(t *testing.T) {
	err := RunWithArgs("test", []string{"explode"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func seedLog(t *testing.T, cfg *config.Config, now time.Time) {
	t.Helper()
	line := func(u string, at time.Time) string {
		return testutil.EncodeLogLine(t, testutil.NewTestClickEvent(t, u, at))
	}
	testutil.WriteLogFile(t, cfg.ClickLogPath+".20260313-080000",
		line("https://old.example/", now.Add(-26*time.Hour)),
	)
	testutil.WriteLogFile(t, cfg.ClickLogPath,
		line("https://a.example/", now),
		line("https://a.example/x", now),
		line("https://b.example/", now),
		"garbage\n",
	)
}

func TestStats_Human(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	seedLog(t, cfg, time.Now().UTC())

	var out bytes.Buffer
	cmd := &StatsCommand{globals: &GlobalFlags{}, out: &out, cfg: cfg}
	require.NoError(t, cmd.Execute(nil))

	output := out.String()
	assert.Contains(t, output, "Total:         3")
	assert.Contains(t, output, "Today:         3")
	assert.Contains(t, output, "Skipped:       1 malformed records")
	assert.Contains(t, output, "a.example")
	assert.NotContains(t, output, "old.example")
}

func TestStats_JSONIncludeArchived(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	now := time.Now().UTC()
	seedLog(t, cfg, now)

	var out bytes.Buffer
	cmd := &StatsCommand{globals: &GlobalFlags{JSON: true}, out: &out, cfg: cfg, IncludeArchived: true, Top: 1}
	require.NoError(t, cmd.Execute(nil))

	var st model.AggregatedStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, int64(4), st.Total)
	assert.Equal(t, 2, st.Segments)
	require.Len(t, st.TopDomains, 1)
	assert.Equal(t, model.DomainCount{Domain: "a.example", Clicks: 2}, st.TopDomains[0])
}

func TestStats_Date(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	seedLog(t, cfg, now)

	var out bytes.Buffer
	cmd := &StatsCommand{globals: &GlobalFlags{JSON: true}, out: &out, cfg: cfg, IncludeArchived: true, Date: "2026-03-13"}
	require.NoError(t, cmd.Execute(nil))

	var st model.AggregatedStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, "2026-03-13", st.Date)
	assert.Equal(t, int64(1), st.Today)
}

func TestStats_InvalidDate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	cmd := &StatsCommand{globals: &GlobalFlags{}, out: &bytes.Buffer{}, cfg: cfg, Date: "yesterday"}
	assert.Error(t, cmd.Execute(nil))
}

func TestStats_MissingLog(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	var out bytes.Buffer
	cmd := &StatsCommand{globals: &GlobalFlags{}, out: &out, cfg: cfg}
	require.NoError(t, cmd.Execute(nil))
	assert.Contains(t, out.String(), "Total:         0")
}

func TestPrune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir)
	ctx := context.Background()

	store, err := kv.NewBoltStore(cfg.StatePath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tracker := impression.NewTracker(store)
	today := time.Now().UTC()
	for _, day := range []time.Time{today.AddDate(0, 0, -10), today.AddDate(0, 0, -5), today} {
		_, err := tracker.MarkAndCheck(ctx, "10.0.0.1", day.Format(model.DateLayout))
		require.NoError(t, err)
	}

	expired := ratelimit.New(store, ratelimit.Config{Enabled: true, MaxRequests: 5, Window: time.Hour}).
		WithClock(func() time.Time { return today.Add(-3 * time.Hour) })
	_, err = expired.Check(ctx, "10.0.0.1")
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := &PruneCommand{globals: &GlobalFlags{JSON: true}, out: &out, cfg: cfg, store: store}
	require.NoError(t, cmd.Execute(nil))

	var report pruneJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, pruneJSON{MarkersPruned: 2, StatesPruned: 1, RetentionDays: 2}, report)

	unique, err := tracker.MarkAndCheck(ctx, "10.0.0.1", today.Format(model.DateLayout))
	require.NoError(t, err)
	assert.False(t, unique, "today's marker is kept")
}

func TestPrune_Human(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir)
	store, err := kv.NewBoltStore(cfg.StatePath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var out bytes.Buffer
	cmd := &PruneCommand{globals: &GlobalFlags{}, out: &out, cfg: cfg, store: store, RetentionDays: 7}
	require.NoError(t, cmd.Execute(nil))

	assert.Contains(t, out.String(), "Pruned 0 unique markers older than 7 days")
}

func TestHashToken_Generate(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := &HashTokenCommand{globals: &GlobalFlags{JSON: true}, out: &out}
	require.NoError(t, cmd.Execute(nil))

	var got hashTokenJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, auth.ValidateTokenFormat(got.Token))

	ok, err := auth.VerifyToken(got.Token, got.Hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashToken_Existing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := &HashTokenCommand{globals: &GlobalFlags{}, out: &out, Token: "operator-chosen-secret"}
	require.NoError(t, cmd.Execute(nil))

	output := out.String()
	assert.NotContains(t, output, "Token:")
	assert.Contains(t, output, "does not use the generated ct_admin_ format")

	_, hash, ok := strings.Cut(strings.TrimSpace(output[strings.Index(output, "ADMIN_TOKEN_HASH="):]), "=")
	require.True(t, ok)
	match, err := auth.VerifyToken("operator-chosen-secret", hash)
	require.NoError(t, err)
	assert.True(t, match)
}
