// Package timing evaluates the small rule language used for queue
// operating-hours and agent shift windows.
//
// A rule string is either the literal "24/7" (case-insensitive) or a
// pipe-separated list of rules of the form "<time-ranges>;<day-spec>".
// See SPEC_FULL.md §4.1 for the full grammar.
package timing

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func dayIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, d := range weekdays {
		if strings.EqualFold(d, name) {
			return i, true
		}
	}
	return -1, false
}

// timeRange is a half-open [startMin, endMin) window within one day,
// expressed in minutes since midnight.
type timeRange struct {
	startMin int
	endMin   int
}

func (r timeRange) contains(minOfDay int) bool {
	if r.startMin > r.endMin {
		// Explicitly unsupported per §4.1 — an overnight range on a single
		// day is treated as inactive.
		return false
	}
	return minOfDay >= r.startMin && minOfDay < r.endMin
}

func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func parseTimeRange(s string, logger zerolog.Logger) (timeRange, bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		logger.Warn().Str("range", s).Msg("malformed time range, skipping")
		return timeRange{}, false
	}
	start, ok := parseClock(strings.TrimSpace(parts[0]))
	if !ok {
		logger.Warn().Str("range", s).Msg("malformed time range start, skipping")
		return timeRange{}, false
	}
	end, ok := parseClock(strings.TrimSpace(parts[1]))
	if !ok {
		logger.Warn().Str("range", s).Msg("malformed time range end, skipping")
		return timeRange{}, false
	}
	if end == 0 && start != 0 {
		end = 24 * 60
	}
	return timeRange{startMin: start, endMin: end}, true
}

// daySet is the set of weekday indices (0=Sun..6=Sat) a day-spec admits.
type daySet map[int]bool

func parseDaySpec(s string, logger zerolog.Logger) daySet {
	set := daySet{}
	for _, seg := range strings.Split(s, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if idx := strings.Index(seg, "-"); idx >= 0 {
			startName, endName := seg[:idx], seg[idx+1:]
			start, ok1 := dayIndex(startName)
			end, ok2 := dayIndex(endName)
			if !ok1 || !ok2 {
				logger.Warn().Str("day-segment", seg).Msg("malformed day range, skipping")
				continue
			}
			i := start
			for {
				set[i] = true
				if i == end {
					break
				}
				i = (i + 1) % 7
			}
			continue
		}
		idx, ok := dayIndex(seg)
		if !ok {
			logger.Warn().Str("day-segment", seg).Msg("malformed day, skipping")
			continue
		}
		set[idx] = true
	}
	return set
}

type rule struct {
	ranges []timeRange
	days   daySet
}

func parseRule(s string, logger zerolog.Logger) (rule, bool) {
	parts := strings.SplitN(s, ";", 2)
	if len(parts) != 2 {
		logger.Warn().Str("rule", s).Msg("malformed rule, missing day-spec, skipping")
		return rule{}, false
	}
	var ranges []timeRange
	for _, rs := range strings.Split(parts[0], ",") {
		rs = strings.TrimSpace(rs)
		if rs == "" {
			continue
		}
		tr, ok := parseTimeRange(rs, logger)
		if !ok {
			continue
		}
		ranges = append(ranges, tr)
	}
	if len(ranges) == 0 {
		logger.Warn().Str("rule", s).Msg("rule has no usable time ranges, skipping")
		return rule{}, false
	}
	days := parseDaySpec(parts[1], logger)
	if len(days) == 0 {
		logger.Warn().Str("rule", s).Msg("rule has no usable days, skipping")
		return rule{}, false
	}
	return rule{ranges: ranges, days: days}, true
}

// Admits evaluates rules against the instant t. An empty or missing rule
// string admits nothing.
func Admits(rules string, t time.Time, logger zerolog.Logger) bool {
	rules = strings.TrimSpace(rules)
	if rules == "" {
		return false
	}
	if strings.EqualFold(rules, "24/7") {
		return true
	}

	weekday := int(t.Weekday())
	minOfDay := t.Hour()*60 + t.Minute()

	for _, rs := range strings.Split(rules, "|") {
		rs = strings.TrimSpace(rs)
		if rs == "" {
			continue
		}
		r, ok := parseRule(rs, logger)
		if !ok {
			continue
		}
		if !r.days[weekday] {
			continue
		}
		for _, tr := range r.ranges {
			if tr.contains(minOfDay) {
				return true
			}
		}
	}
	return false
}
