// Package feed aggregates job trace events into a compact progress feed.
// Consecutive completed events sharing a base step collapse into one group;
// the trailing in-flight event and the most recent image are surfaced
// alongside the groups.
package feed

import (
	"sort"
	"strings"

	"github.com/designpipe/dp/internal/models"
)

// Group is one feed row: either a singleton event or a run of adjacent
// events with the same base step.
type Group struct {
	BaseStep string
	Events   []models.TraceEvent
}

// Count returns the number of events folded into the group.
func (g Group) Count() int { return len(g.Events) }

// TotalDurationMS sums the member durations.
func (g Group) TotalDurationMS() int64 {
	var total int64
	for _, e := range g.Events {
		if e.DurationMS != nil {
			total += *e.DurationMS
		}
	}
	return total
}

// Label resolves a display string for the group's base step.
func (g Group) Label() string {
	if l, ok := stepLabels[g.BaseStep]; ok {
		return l
	}
	return strings.ReplaceAll(g.BaseStep, "_", " ")
}

// stepLabels maps well-known base steps to display strings. Steps outside
// the table fall back to the token with underscores replaced by spaces.
var stepLabels = map[string]string{
	"analyze_floorplan": "Analyzing floorplan",
	"detect_rooms":      "Detecting rooms",
	"extract_walls":     "Extracting walls",
	"search_item":       "Searching furniture",
	"rank_results":      "Ranking results",
	"source_model":      "Sourcing 3D model",
	"generate_model":    "Generating 3D model",
	"place_item":        "Placing furniture",
	"render_preview":    "Rendering preview",
	"validate_layout":   "Validating layout",
}

// Feed is the aggregated view of a trace: grouped completed events, the
// in-flight event still running (if any), and the most recent image seen
// anywhere in the input.
type Feed struct {
	Groups       []Group
	Running      *models.TraceEvent
	LatestVisual string
}

// Build aggregates events into a Feed. Deterministic and O(n): events are
// never reordered, and every completed event lands in exactly one group.
func Build(events []models.TraceEvent) Feed {
	var f Feed

	for _, e := range events {
		if v := e.Visual(); v != "" {
			f.LatestVisual = v
		}
	}

	// The in-flight event, when present, is always the most recent element.
	if n := len(events); n > 0 && !events[n-1].Completed() && events[n-1].Step != "started" {
		running := events[n-1]
		f.Running = &running
	}

	for _, e := range events {
		if !e.Completed() || e.Step == "started" {
			continue
		}
		base := BaseStep(e.Step)
		if n := len(f.Groups); n > 0 && f.Groups[n-1].BaseStep == base {
			f.Groups[n-1].Events = append(f.Groups[n-1].Events, e)
			continue
		}
		f.Groups = append(f.Groups, Group{BaseStep: base, Events: []models.TraceEvent{e}})
	}

	return f
}

// FromJobs flattens multiple jobs into one feed. Jobs are ordered by
// creation time (stable, so the backend's list order breaks ties) and their
// traces concatenated; grouping then runs over the flattened stream, so a
// step recurring across adjacent jobs still merges.
func FromJobs(jobs []models.DesignJob) Feed {
	ordered := make([]models.DesignJob, len(jobs))
	copy(ordered, jobs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var events []models.TraceEvent
	for _, j := range ordered {
		events = append(events, j.Trace...)
	}
	return Build(events)
}

// Flatten recovers the grouped events in their original order.
func Flatten(groups []Group) []models.TraceEvent {
	var events []models.TraceEvent
	for _, g := range groups {
		events = append(events, g.Events...)
	}
	return events
}

// BaseStep strips a trailing numeric disambiguator ("search_item_2" →
// "search_item") so repeated sub-operations collapse into one row.
func BaseStep(step string) string {
	i := strings.LastIndex(step, "_")
	if i <= 0 || i == len(step)-1 {
		return step
	}
	for _, r := range step[i+1:] {
		if r < '0' || r > '9' {
			return step
		}
	}
	return step[:i]
}
