package pipeline

import (
	"time"

	"sentinel/internal/unit"
)

// Report is the archival form of a completed run.
type Report struct {
	MediaID     string        `json:"media_id"`
	CompletedAt time.Time     `json:"completed_at"`
	Origin      *Origin       `json:"origin,omitempty"`
	Units       []ReportEntry `json:"units"`
}

// Origin records where the analysed media came from. The orchestrator never
// sets it; callers fill it in before archiving.
type Origin struct {
	// Kind is local, youtube or remote.
	Kind     string `json:"kind"`
	Location string `json:"location"`
	Title    string `json:"title,omitempty"`
}

// ReportEntry describes one unit slot in a Report.
type ReportEntry struct {
	Unit       unit.Name    `json:"unit"`
	Status     Status       `json:"status"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Output     *unit.Output `json:"output,omitempty"`
}

// Report snapshots the store.
func (r *Results) Report(completedAt time.Time) Report {
	rep := Report{MediaID: r.mediaID, CompletedAt: completedAt.UTC()}
	for _, n := range r.order {
		entry := ReportEntry{Unit: n, Status: r.Status(n)}
		if reason, ok := r.Skipped(n); ok {
			entry.SkipReason = reason
		}
		if out, ok := r.Get(n); ok {
			entry.Output = out
		}
		rep.Units = append(rep.Units, entry)
	}
	return rep
}

// Entry returns the report entry for name.
func (rep Report) Entry(name unit.Name) (ReportEntry, bool) {
	for _, e := range rep.Units {
		if e.Unit == name {
			return e, true
		}
	}
	return ReportEntry{}, false
}
