// Package stats aggregates the click log into summary statistics.
//
// Aggregation is a read-only sequential scan. Only newline-terminated lines
// are records: a reader racing an append may see a prefix of the file but
// never treats a partial final line as valid. Lines that do not decode, or
// whose timestamp does not parse, are skipped and counted.
package stats

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/clicktrail/clicktrail/internal/model"
)

const (
	// DefaultTopDomains is the size of the domain ranking.
	DefaultTopDomains = 10
	// DefaultHourBuckets is the number of hourly buckets retained.
	DefaultHourBuckets = 24
)

// Aggregator computes AggregatedStats. The zero value is usable.
type Aggregator struct {
	Location    *time.Location   // zone of record timestamps, UTC when nil
	TopN        int              // DefaultTopDomains when 0
	HourBuckets int              // DefaultHourBuckets when 0
	Date        string           // DateLayout day counted as "today", derived from Now when empty
	Now         func() time.Time // time.Now when nil
}

// Aggregate scans one segment.
// An I/O error returns the statistics gathered so far together with the error.
func (a Aggregator) Aggregate(r io.Reader) (*model.AggregatedStats, error) {
	acc := a.newAccumulator()
	err := acc.scan(r)
	acc.segments = 1
	return acc.result(), err
}

// AggregateFiles scans the given segments in order as one log.
// Missing files count as empty segments.
func (a Aggregator) AggregateFiles(paths ...string) (*model.AggregatedStats, error) {
	acc := a.newAccumulator()

	var errs []error
	for _, path := range paths {
		if err := acc.scanFile(path); err != nil {
			errs = append(errs, err)
		}
	}

	return acc.result(), errors.Join(errs...)
}

// AggregateLog scans a rotating log: the archives returned by listArchives,
// oldest first, then the active segment. A nil listArchives scans the active
// segment only.
//
// The active segment is opened before the archives are listed, and an
// archive that is the opened file is skipped. A rotation during the call
// therefore neither drops the segment it seals nor counts it twice.
func (a Aggregator) AggregateLog(active string, listArchives func() ([]string, error)) (*model.AggregatedStats, error) {
	acc := a.newAccumulator()
	var errs []error

	f, err := os.Open(active)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("open segment: %w", err))
	}
	var activeInfo os.FileInfo
	if f != nil {
		defer f.Close()
		if activeInfo, err = f.Stat(); err != nil {
			errs = append(errs, fmt.Errorf("stat segment: %w", err))
		}
	}

	if listArchives != nil {
		archives, err := listArchives()
		if err != nil {
			errs = append(errs, fmt.Errorf("list archives: %w", err))
		}
		for _, path := range archives {
			if activeInfo != nil {
				if info, err := os.Stat(path); err == nil && os.SameFile(info, activeInfo) {
					continue
				}
			}
			if err := acc.scanFile(path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if f != nil {
		acc.segments++
		if err := acc.scan(f); err != nil {
			errs = append(errs, fmt.Errorf("read segment %s: %w", active, err))
		}
	}

	return acc.result(), errors.Join(errs...)
}

func (a Aggregator) newAccumulator() *accumulator {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}
	topN := a.TopN
	if topN <= 0 {
		topN = DefaultTopDomains
	}
	buckets := a.HourBuckets
	if buckets <= 0 {
		buckets = DefaultHourBuckets
	}

	generatedAt := now()
	date := a.Date
	if date == "" {
		date = generatedAt.In(loc).Format(model.DateLayout)
	}

	return &accumulator{
		loc:         loc,
		topN:        topN,
		buckets:     buckets,
		date:        date,
		generatedAt: generatedAt,
		domains:     make(map[string]int),
		hours:       make(map[string]int64),
	}
}

type accumulator struct {
	loc         *time.Location
	topN        int
	buckets     int
	date        string
	generatedAt time.Time

	total    int64
	today    int64
	skipped  int64
	segments int

	// domain -> index into ranking, preserving first-seen order
	domains map[string]int
	ranking []model.DomainCount
	hours   map[string]int64
}

func (acc *accumulator) scanFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	acc.segments++
	if err := acc.scan(f); err != nil {
		return fmt.Errorf("read segment %s: %w", path, err)
	}
	return nil
}

func (acc *accumulator) scan(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if err == io.EOF {
			// an unterminated tail is an append in flight
			return nil
		}
		if err != nil {
			return err
		}
		acc.add(bytes.TrimSpace(line))
	}
}

func (acc *accumulator) add(line []byte) {
	if len(line) == 0 {
		return
	}

	var event model.ClickEvent
	if err := json.Unmarshal(line, &event); err != nil {
		acc.skipped++
		return
	}
	if _, err := event.ClickedAt(acc.loc); err != nil {
		acc.skipped++
		return
	}

	acc.total++
	if strings.HasPrefix(event.Timestamp, acc.date) {
		acc.today++
	}
	acc.hours[event.Timestamp[:len(model.HourLayout)]]++

	if domain := ExtractDomain(event.URL); domain != "" {
		if i, ok := acc.domains[domain]; ok {
			acc.ranking[i].Clicks++
		} else {
			acc.domains[domain] = len(acc.ranking)
			acc.ranking = append(acc.ranking, model.DomainCount{Domain: domain, Clicks: 1})
		}
	}
}

func (acc *accumulator) result() *model.AggregatedStats {
	return &model.AggregatedStats{
		Total:       acc.total,
		Today:       acc.today,
		Date:        acc.date,
		Skipped:     acc.skipped,
		Segments:    acc.segments,
		TopDomains:  topDomains(acc.ranking, acc.topN),
		Hourly:      recentHours(acc.hours, acc.buckets),
		GeneratedAt: acc.generatedAt,
	}
}

// topDomains ranks by descending clicks. Ties keep first-seen order.
func topDomains(ranking []model.DomainCount, limit int) []model.DomainCount {
	sorted := make([]model.DomainCount, len(ranking))
	copy(sorted, ranking)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Clicks > sorted[j].Clicks
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// recentHours keeps the latest buckets, oldest first.
func recentHours(hours map[string]int64, limit int) []model.HourBucket {
	keys := make([]string, 0, len(hours))
	for hour := range hours {
		keys = append(keys, hour)
	}
	// HourLayout sorts chronologically
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	buckets := make([]model.HourBucket, len(keys))
	for i, hour := range keys {
		buckets[i] = model.HourBucket{Hour: hour, Clicks: hours[hour]}
	}
	return buckets
}

// ExtractDomain returns the lowercased host of a target URL, or "" when
// the URL has none.
func ExtractDomain(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}

	return strings.ToLower(parsed.Host)
}
