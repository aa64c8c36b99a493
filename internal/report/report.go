// Package report aggregates coverage streams into a nested JSON report
// keyed by dataset, coverage type, and source file. Line entries count as
// single units; branch entries group by block id and branch name.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"infoproc/internal/trace"
)

// unknownCoverage labels inputs whose dataset or coverage type could not
// be derived.
const unknownCoverage = "unknown"

// Summary counts covered units against countable units.
type Summary struct {
	Hit   int `json:"hit"`
	Total int `json:"total"`
}

// GroupSummary aggregates the branches of one line, keyed by block id and
// branch name. A branch counts as hit when its accumulated count is
// positive.
type GroupSummary struct {
	Summary Summary                `json:"summary"`
	Groups  map[int]map[string]int `json:"groups"`
}

func newGroupSummary() *GroupSummary {
	return &GroupSummary{Groups: make(map[int]map[string]int)}
}

func (g *GroupSummary) add(block int, name string, hits int) {
	group, ok := g.Groups[block]
	if !ok {
		group = make(map[string]int)
		g.Groups[block] = group
	}
	group[name] += hits
}

func (g *GroupSummary) updateSummary() {
	g.Summary = Summary{}
	for _, group := range g.Groups {
		for _, hits := range group {
			if hits > 0 {
				g.Summary.Hit++
			}
			g.Summary.Total++
		}
	}
}

// LineStat is one line's state: plain accumulated hits, or grouped branch
// state once any branch entry claimed the line. It serializes as a bare
// number or as the group object, matching the shape consumers expect.
type LineStat struct {
	Hits   int
	Groups *GroupSummary
}

// MarshalJSON emits the hit count for plain lines and the nested group
// summary for branch lines.
func (ls *LineStat) MarshalJSON() ([]byte, error) {
	if ls.Groups != nil {
		return json.Marshal(ls.Groups)
	}
	return json.Marshal(ls.Hits)
}

// FileSummary aggregates one source file.
type FileSummary struct {
	Summary   Summary           `json:"summary"`
	LineStats map[int]*LineStat `json:"line_stats,omitempty"`
}

func newFileSummary() *FileSummary {
	return &FileSummary{LineStats: make(map[int]*LineStat)}
}

func (f *FileSummary) updateSummary() {
	f.Summary = Summary{}
	for _, stat := range f.LineStats {
		if stat.Groups != nil {
			stat.Groups.updateSummary()
			f.Summary.Hit += stat.Groups.Summary.Hit
			f.Summary.Total += stat.Groups.Summary.Total
			continue
		}
		if stat.Hits > 0 {
			f.Summary.Hit++
		}
		f.Summary.Total++
	}
}

// TypeSummary aggregates one coverage type across its files.
type TypeSummary struct {
	Summary Summary                 `json:"summary"`
	Files   map[string]*FileSummary `json:"files"`
}

func newTypeSummary() *TypeSummary {
	return &TypeSummary{Files: make(map[string]*FileSummary)}
}

func (t *TypeSummary) updateSummary() {
	t.Summary = Summary{}
	for _, file := range t.Files {
		t.Summary.Hit += file.Summary.Hit
		t.Summary.Total += file.Summary.Total
	}
}

// Report nests coverage summaries by dataset, then coverage type. Feed it
// by installing Counter on a stream and loading inputs; SetCurrent names
// the bucket each input lands in.
type Report struct {
	Datasets map[string]map[string]*TypeSummary `json:"report"`

	currentType    string
	currentDataset string
}

// New returns an empty report.
func New() *Report {
	return &Report{
		Datasets:       make(map[string]map[string]*TypeSummary),
		currentType:    unknownCoverage,
		currentDataset: unknownCoverage,
	}
}

// SetCurrent names the coverage type and dataset the next loaded entries
// belong to.
func (r *Report) SetCurrent(coverageType, dataset string) {
	r.currentType = coverageType
	r.currentDataset = dataset
}

func (r *Report) fileSummaryFor(path string) *FileSummary {
	types, ok := r.Datasets[r.currentDataset]
	if !ok {
		types = make(map[string]*TypeSummary)
		r.Datasets[r.currentDataset] = types
	}
	ct, ok := types[r.currentType]
	if !ok {
		ct = newTypeSummary()
		types[r.currentType] = ct
	}
	file, ok := ct.Files[path]
	if !ok {
		file = newFileSummary()
		ct.Files[path] = file
	}
	return file
}

// Counter returns the entry handler that feeds the report. Install it for
// the DA and BRDA prefixes. Payloads pass through untouched.
//
// A plain line accumulates hits until a branch entry claims the line;
// from then on the line is grouped and further plain hits are ignored,
// while the grouped state keeps every block and branch name seen.
func (r *Report) Counter() trace.EntryHandler {
	return func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		stats := r.fileSummaryFor(rec.SourceFile()).LineStats
		switch prefix {
		case trace.PrefixDA:
			entry, err := trace.ParseDA(payload)
			if err != nil {
				return trace.EntryResult{}, err
			}
			if stat, ok := stats[entry.Line]; !ok {
				stats[entry.Line] = &LineStat{Hits: entry.Hits}
			} else if stat.Groups == nil {
				stat.Hits += entry.Hits
			}
		case trace.PrefixBRDA:
			entry, err := trace.ParseBRDA(payload)
			if err != nil {
				return trace.EntryResult{}, err
			}
			stat, ok := stats[entry.Line]
			if !ok || stat.Groups == nil {
				stat = &LineStat{Groups: newGroupSummary()}
				stats[entry.Line] = stat
			}
			stat.Groups.add(entry.Block, entry.Name, entry.Hits)
		default:
			return trace.EntryResult{}, fmt.Errorf("report cannot count %s entries", prefix)
		}
		return trace.Keep(payload), nil
	}
}

// UpdateSummaries recomputes every nested summary bottom-up. Call it once
// after the last input is loaded.
func (r *Report) UpdateSummaries() {
	for _, types := range r.Datasets {
		for _, ct := range types {
			for _, file := range ct.Files {
				file.updateSummary()
			}
			ct.updateSummary()
		}
	}
}

// StripLineStats drops per-line detail from every file, leaving only the
// rolled-up summaries.
func (r *Report) StripLineStats() {
	for _, types := range r.Datasets {
		for _, ct := range types {
			for _, file := range ct.Files {
				file.LineStats = nil
			}
		}
	}
}

// Write serializes the report as JSON, indented when pretty is set.
func (r *Report) Write(w io.Writer, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
