package voteview

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/starford/docdesk/internal/models"
)

// Texts of the results table.
const (
	MsgEmpty      = "No vote results available."
	MsgLoadFailed = "Error loading vote results."
	LabelShow     = "Show Details"
	LabelHide     = "Hide Details"
)

// Columns is the column count of the summary table.
const Columns = 5

// Headers of the summary table and of the per-group detail table.
var (
	Headers       = []string{"Document ID", "Version", "Good Votes", "Bad Votes", "Details"}
	DetailHeaders = []string{"Vote Type", "Voter Info", "Timestamp"}
)

// Source fetches the flat vote list.
type Source interface {
	VoteResults(ctx context.Context) ([]models.Vote, error)
}

// Table is the rendered vote results.
type Table struct {
	// Notice replaces all rows when set (empty result or load failure).
	Notice  string
	Failed  bool
	ColSpan int
	Rows    []Row
}

// Row is a summary row paired with its detail rows.
type Row struct {
	Key         string
	DocID       string
	Version     string
	GoodVotes   int
	BadVotes    int
	Expanded    bool
	ToggleLabel string
	Details     []Detail
}

// Detail is one individual vote.
type Detail struct {
	VoteType  string
	VoterInfo string
	CreatedAt string
}

// Viewer holds the fetched groups and the set of expanded groups.
type Viewer struct {
	src    Source
	logger *slog.Logger

	mu       sync.Mutex
	loaded   bool
	failed   bool
	groups   []Group
	expanded map[Key]struct{}
}

// NewViewer creates a Viewer over src. A nil logger discards output.
func NewViewer(src Source, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Viewer{src: src, logger: logger, expanded: make(map[Key]struct{})}
}

// Load fetches and aggregates the votes. A failure is logged and rendered
// as an error row; it is not retried.
func (v *Viewer) Load(ctx context.Context) error {
	votes, err := v.src.VoteResults(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loaded = true
	if err != nil {
		v.logger.Error("error fetching vote results", slog.String("error", err.Error()))
		v.failed = true
		v.groups = nil
		return err
	}
	v.failed = false
	v.groups = Aggregate(votes)
	return nil
}

// Groups returns the aggregated groups.
func (v *Viewer) Groups() []Group {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Group(nil), v.groups...)
}

// Toggle flips the detail visibility of one group and returns the new state.
func (v *Viewer) Toggle(k Key) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.expanded[k]; ok {
		delete(v.expanded, k)
		return false
	}
	v.expanded[k] = struct{}{}
	return true
}

// Expand marks groups as expanded.
func (v *Viewer) Expand(keys ...Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range keys {
		v.expanded[k] = struct{}{}
	}
}

// View renders the current state.
func (v *Viewer) View() Table {
	v.mu.Lock()
	defer v.mu.Unlock()

	t := Table{ColSpan: Columns}
	switch {
	case v.failed:
		t.Notice = MsgLoadFailed
		t.Failed = true
		return t
	case v.loaded && len(v.groups) == 0:
		t.Notice = MsgEmpty
		return t
	}

	for _, g := range v.groups {
		_, open := v.expanded[g.Key]
		row := Row{
			Key:         g.Key.String(),
			DocID:       g.DocID,
			Version:     strconv.Itoa(g.Version),
			GoodVotes:   g.GoodVotes,
			BadVotes:    g.BadVotes,
			Expanded:    open,
			ToggleLabel: LabelShow,
		}
		if open {
			row.ToggleLabel = LabelHide
		}
		for _, vote := range g.Votes {
			row.Details = append(row.Details, Detail{
				VoteType:  string(vote.VoteType),
				VoterInfo: vote.VoterInfo,
				CreatedAt: vote.CreatedAt,
			})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
