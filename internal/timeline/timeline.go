// Package timeline turns the confirmed sprint and task lists into Gantt bar
// positions for a requested granularity and reference date. It is a pure
// date-bucketing layer: it reads engine state and mutates nothing.
package timeline

import (
	"fmt"
	"time"

	"sprintline/internal/domain"
)

// Granularity selects the bucketing of the timeline axis.
type Granularity string

const (
	Weeks    Granularity = "weeks"
	Months   Granularity = "months"
	Quarters Granularity = "quarters"
)

const (
	weekBuckets    = 24
	monthBuckets   = 12
	quarterBuckets = 4
)

// Bucket is one axis segment.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// Bar is a horizontal position expressed as fractions of the full axis.
type Bar struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// SprintBar is a positioned sprint with its member tasks.
type SprintBar struct {
	Sprint domain.Sprint `json:"sprint"`
	Bar    Bar           `json:"bar"`
	Tasks  []TaskBar     `json:"tasks,omitempty"`
}

// TaskBar is a positioned task within the sprint row.
type TaskBar struct {
	Task domain.Task `json:"task"`
	Bar  Bar         `json:"bar"`
}

// Buckets generates the axis segments for a granularity anchored at ref:
// 24 weeks from the reference day, 12 months from the reference month, or
// the 4 quarters of the reference year.
func Buckets(g Granularity, ref time.Time) ([]Bucket, error) {
	switch g {
	case Weeks:
		start := startOfDay(ref)
		out := make([]Bucket, 0, weekBuckets)
		for i := 0; i < weekBuckets; i++ {
			ws := start.AddDate(0, 0, i*7)
			out = append(out, Bucket{
				Label: fmt.Sprintf("Week %d", i+1),
				Start: ws,
				End:   ws.AddDate(0, 0, 6),
				Days:  7,
			})
		}
		return out, nil
	case Months:
		start := startOfMonth(ref)
		out := make([]Bucket, 0, monthBuckets)
		for i := 0; i < monthBuckets; i++ {
			ms := start.AddDate(0, i, 0)
			me := ms.AddDate(0, 1, -1)
			out = append(out, Bucket{
				Label: ms.Format("January 2006"),
				Start: ms,
				End:   me,
				Days:  daysBetween(ms, me) + 1,
			})
		}
		return out, nil
	case Quarters:
		start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		out := make([]Bucket, 0, quarterBuckets)
		for i := 0; i < quarterBuckets; i++ {
			qs := start.AddDate(0, i*3, 0)
			qe := qs.AddDate(0, 3, -1)
			out = append(out, Bucket{
				Label: fmt.Sprintf("Q%d %d", i+1, qs.Year()),
				Start: qs,
				End:   qe,
				Days:  daysBetween(qs, qe) + 1,
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
}

// Layout positions every sprint with a start date inside the view, and its
// tasks at the sprint start. Sprints entirely outside the axis are omitted.
func Layout(sprints []domain.Sprint, tasks []domain.Task, g Granularity, ref time.Time) ([]SprintBar, error) {
	buckets, err := Buckets(g, ref)
	if err != nil {
		return nil, err
	}
	viewStart := buckets[0].Start
	viewEnd := buckets[len(buckets)-1].End
	totalDays := 0
	for _, b := range buckets {
		totalDays += b.Days
	}

	bySprint := map[string][]domain.Task{}
	for _, t := range tasks {
		if t.SprintID != nil && *t.SprintID != "" {
			bySprint[*t.SprintID] = append(bySprint[*t.SprintID], t)
		}
	}

	var out []SprintBar
	for _, sp := range sprints {
		if sp.StartDate == nil || *sp.StartDate == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, *sp.StartDate)
		if err != nil {
			continue
		}
		duration := sp.Duration
		if duration < 1 {
			duration = 1
		}
		end := start.AddDate(0, 0, duration-1)
		if end.Before(viewStart) || start.After(viewEnd) {
			continue
		}

		bar := clampBar(start, end, viewStart, viewEnd, totalDays)
		row := SprintBar{Sprint: sp, Bar: bar}
		for _, t := range bySprint[sp.ID] {
			row.Tasks = append(row.Tasks, TaskBar{
				Task: t,
				Bar:  clampBar(start, start, viewStart, viewEnd, totalDays),
			})
		}
		out = append(out, row)
	}
	return out, nil
}

func clampBar(start, end, viewStart, viewEnd time.Time, totalDays int) Bar {
	if start.Before(viewStart) {
		start = viewStart
	}
	if end.After(viewEnd) {
		end = viewEnd
	}
	offset := daysBetween(viewStart, start)
	if offset < 0 {
		offset = 0
	}
	span := daysBetween(start, end) + 1
	return Bar{
		Left:  float64(offset) / float64(totalDays),
		Width: float64(span) / float64(totalDays),
	}
}

func daysBetween(a, b time.Time) int {
	return int(startOfDay(b).Sub(startOfDay(a)).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
