package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designpipe/dp/internal/models"
)

func done(step string, ms int64) models.TraceEvent {
	return models.TraceEvent{Step: step, DurationMS: &ms}
}

func running(step string) models.TraceEvent {
	return models.TraceEvent{Step: step}
}

func TestBaseStep(t *testing.T) {
	assert.Equal(t, "search_item", BaseStep("search_item_0"))
	assert.Equal(t, "search_item", BaseStep("search_item_12"))
	assert.Equal(t, "parsed", BaseStep("parsed"))
	assert.Equal(t, "room_2x", BaseStep("room_2x"))
	assert.Equal(t, "step_", BaseStep("step_"))
	assert.Equal(t, "42", BaseStep("42"))
}

func TestBuild_AdjacencyGrouping(t *testing.T) {
	events := []models.TraceEvent{
		done("search_item_0", 100),
		done("search_item_1", 200),
		done("parsed", 50),
		done("search_item_2", 300),
	}

	f := Build(events)
	require.Len(t, f.Groups, 3)

	assert.Equal(t, "search_item", f.Groups[0].BaseStep)
	assert.Equal(t, 2, f.Groups[0].Count())
	assert.Equal(t, int64(300), f.Groups[0].TotalDurationMS())

	assert.Equal(t, "parsed", f.Groups[1].BaseStep)
	assert.Equal(t, 1, f.Groups[1].Count())

	// The third search_item does not merge backwards across "parsed".
	assert.Equal(t, "search_item", f.Groups[2].BaseStep)
	assert.Equal(t, 1, f.Groups[2].Count())
	assert.Equal(t, int64(300), f.Groups[2].TotalDurationMS())
}

func TestBuild_RoundTrip(t *testing.T) {
	events := []models.TraceEvent{
		done("analyze_floorplan", 900),
		done("detect_rooms_0", 10),
		done("detect_rooms_1", 20),
		done("extract_walls", 30),
		done("detect_rooms_2", 40),
	}

	f := Build(events)
	assert.Equal(t, events, Flatten(f.Groups), "flattening groups must recover the original order")
}

func TestBuild_Idempotent(t *testing.T) {
	events := []models.TraceEvent{
		done("search_item_0", 1),
		done("search_item_1", 2),
		running("rank_results"),
	}

	first := Build(events)
	second := Build(events)
	assert.Equal(t, first, second)
}

func TestBuild_InFlightTrailingEvent(t *testing.T) {
	events := []models.TraceEvent{
		done("search_item_0", 100),
		running("rank_results"),
	}

	f := Build(events)
	require.NotNil(t, f.Running)
	assert.Equal(t, "rank_results", f.Running.Step)
	// The in-flight event stays out of the group list.
	require.Len(t, f.Groups, 1)
	assert.Equal(t, "search_item", f.Groups[0].BaseStep)
}

func TestBuild_StartedEventsExcluded(t *testing.T) {
	ms := int64(5)
	events := []models.TraceEvent{
		{Step: "started", DurationMS: &ms},
		done("analyze_floorplan", 100),
	}

	f := Build(events)
	require.Len(t, f.Groups, 1)
	assert.Equal(t, "analyze_floorplan", f.Groups[0].BaseStep)
	assert.Nil(t, f.Running)
}

func TestBuild_LatestVisual(t *testing.T) {
	ms := int64(1)
	events := []models.TraceEvent{
		{Step: "render_preview_0", DurationMS: &ms, ImageURL: "https://cdn.example/a.png"},
		done("place_item", 10),
		{Step: "render_preview_1", DurationMS: &ms, OutputImage: "https://cdn.example/b.png"},
		running("validate_layout"),
	}

	f := Build(events)
	assert.Equal(t, "https://cdn.example/b.png", f.LatestVisual, "latest image wins across the whole list, not per group")
}

func TestBuild_Empty(t *testing.T) {
	f := Build(nil)
	assert.Empty(t, f.Groups)
	assert.Nil(t, f.Running)
	assert.Empty(t, f.LatestVisual)
}

func TestGroup_Label(t *testing.T) {
	assert.Equal(t, "Searching furniture", Group{BaseStep: "search_item"}.Label())
	assert.Equal(t, "custom retexture pass", Group{BaseStep: "custom_retexture_pass"}.Label())
}

func TestFromJobs_OrderedByCreation(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := []models.DesignJob{
		{ID: "j2", CreatedAt: t0.Add(time.Minute), Trace: []models.TraceEvent{done("source_model_0", 20)}},
		{ID: "j1", CreatedAt: t0, Trace: []models.TraceEvent{done("search_item_0", 10), done("source_model_1", 15)}},
	}

	f := FromJobs(jobs)
	require.Len(t, f.Groups, 2)
	assert.Equal(t, "search_item", f.Groups[0].BaseStep)
	// source_model events from the two adjacent jobs merge into one group.
	assert.Equal(t, "source_model", f.Groups[1].BaseStep)
	assert.Equal(t, 2, f.Groups[1].Count())
	assert.Equal(t, int64(35), f.Groups[1].TotalDurationMS())
}

func TestFromJobs_StableTieBreak(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := []models.DesignJob{
		{ID: "a", CreatedAt: t0, Trace: []models.TraceEvent{done("place_item_0", 1)}},
		{ID: "b", CreatedAt: t0, Trace: []models.TraceEvent{done("place_item_1", 2)}},
	}

	f := FromJobs(jobs)
	require.Len(t, f.Groups, 1)
	flat := Flatten(f.Groups)
	assert.Equal(t, "place_item_0", flat[0].Step)
	assert.Equal(t, "place_item_1", flat[1].Step)
}
