package model

import (
	"sync"
	"time"
)

// TileState tracks a tile through the conversion pipeline.
type TileState string

const (
	TileStatePending     TileState = "pending"
	TileStateDownloading TileState = "downloading"
	TileStateDownloaded  TileState = "downloaded"
	TileStateConverting  TileState = "converting"
	TileStateConverted   TileState = "converted"
	TileStateFailed      TileState = "failed"
)

// ErrorKind classifies a tile failure for reporting.
type ErrorKind string

const (
	ErrKindNone           ErrorKind = ""
	ErrKindTransient      ErrorKind = "transient"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindRemoteRejected ErrorKind = "remote_rejected"
	ErrKindCorrupt        ErrorKind = "corrupt"
	ErrKindUnsupported    ErrorKind = "unsupported_format"
	ErrKindIO             ErrorKind = "io"
	ErrKindCanceled       ErrorKind = "canceled"
)

// Outcome is the terminal record for one tile in a run.
type Outcome struct {
	Tile      string    `json:"tile"`
	State     TileState `json:"state"`
	ErrKind   ErrorKind `json:"err_kind,omitempty"`
	ErrMsg    string    `json:"err_msg,omitempty"`
	Rows      int64     `json:"rows,omitempty"`
	CachedRaw bool      `json:"cached_raw,omitempty"`
	CachedOut bool      `json:"cached_out,omitempty"`
	Duration  time.Duration
}

// Report aggregates per-tile outcomes for a region run. Records are
// appended under a mutex; ordering across tiles is not guaranteed.
type Report struct {
	Region  string
	Tiles   int
	Started time.Time

	mu       sync.Mutex
	outcomes []Outcome
	rows     int64
}

// NewReport creates an empty report for a region of the given size.
func NewReport(region string, tiles int) *Report {
	return &Report{Region: region, Tiles: tiles, Started: time.Now().UTC()}
}

// Record appends one tile outcome.
func (r *Report) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	r.rows += o.Rows
}

// Outcomes returns a copy of all recorded outcomes.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Converted returns the number of tiles that reached the converted state.
func (r *Report) Converted() int {
	return r.count(TileStateConverted)
}

// Downloaded returns the number of tiles whose terminal state is downloaded
// (download-only runs).
func (r *Report) Downloaded() int {
	return r.count(TileStateDownloaded)
}

// FailedCount returns the number of failed tiles.
func (r *Report) FailedCount() int {
	return r.count(TileStateFailed)
}

// Failures returns the outcomes of failed tiles only.
func (r *Report) Failures() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, o := range r.outcomes {
		if o.State == TileStateFailed {
			out = append(out, o)
		}
	}
	return out
}

// Rows returns the total number of samples written across all tiles.
func (r *Report) Rows() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

func (r *Report) count(s TileState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}
