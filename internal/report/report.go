// Package report aggregates appointments per clinic or per GP and exports the
// result as CSV or text.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

type Kind int

const (
	ByClinic Kind = iota + 1
	ByDoctor
)

func (k Kind) String() string {
	switch k {
	case ByClinic:
		return "clinic"
	case ByDoctor:
		return "gp"
	}
	return "unknown"
}

// Range bounds a report by appointment date. A nil bound is open. The end day
// is included up to 23:59.
type Range struct {
	Start *time.Time
	End   *time.Time
}

func (r Range) Unbounded() bool {
	return r.Start == nil && r.End == nil
}

// ParseRange reads optional YYYY-MM-DD bounds in loc.
func ParseRange(start, end string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	var r Range
	if s := strings.TrimSpace(start); s != "" {
		t, err := time.ParseInLocation(appointment.DateLayout, s, loc)
		if err != nil {
			return Range{}, fmt.Errorf("start date %q: %w", s, err)
		}
		r.Start = &t
	}
	if e := strings.TrimSpace(end); e != "" {
		t, err := time.ParseInLocation(appointment.DateLayout, e, loc)
		if err != nil {
			return Range{}, fmt.Errorf("end date %q: %w", e, err)
		}
		t = t.Add(23*time.Hour + 59*time.Minute)
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return Range{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return r, nil
}

func (r Range) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

func (r Range) startTag() string {
	if r.Start == nil {
		return "all"
	}
	return r.Start.Format(appointment.DateLayout)
}

func (r Range) endTag() string {
	if r.End == nil {
		return "all"
	}
	return r.End.Format(appointment.DateLayout)
}

// Count is one named tally inside a group.
type Count struct {
	Name  string
	Count int
}

// Group is one clinic (or GP) with its sub-group and reason tallies, both in
// order of first appearance.
type Group struct {
	ID      string
	Name    string
	Total   int
	Sub     []Count
	Reasons []Count
}

type Report struct {
	Kind    Kind
	Range   Range
	Groups  []Group
	Skipped int // rows dropped because their date or time did not parse
}

type Generator struct {
	repo   *appointment.Repository
	logger *logging.Logger
	loc    *time.Location
}

func NewGenerator(repo *appointment.Repository, loc *time.Location, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Generator{repo: repo, logger: logger, loc: loc}
}

func (g *Generator) Location() *time.Location {
	return g.loc
}

// ByClinic groups appointments by clinic with per-GP sub-counts.
func (g *Generator) ByClinic(ctx context.Context, r Range) (*Report, error) {
	return g.build(ctx, ByClinic, r)
}

// ByDoctor groups appointments by GP with per-clinic sub-counts.
func (g *Generator) ByDoctor(ctx context.Context, r Range) (*Report, error) {
	return g.build(ctx, ByDoctor, r)
}

func (g *Generator) Build(ctx context.Context, kind Kind, r Range) (*Report, error) {
	return g.build(ctx, kind, r)
}

func (g *Generator) build(ctx context.Context, kind Kind, r Range) (*Report, error) {
	appts, err := g.repo.Appointments(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := g.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{Kind: kind, Range: r}
	groups := newTally[*groupTally]()

	for _, a := range appts.All() {
		if !r.Unbounded() {
			start, err := a.StartsAt(g.loc)
			if err != nil {
				rep.Skipped++
				g.logger.Warn("skipping appointment with unreadable date", "appointment_id", a.ID, "error", err)
				continue
			}
			if !r.Contains(start) {
				continue
			}
		}

		groupID, subID := a.ClinicID, a.DoctorID
		groupName := func() string { return dir.Clinic(a.ClinicID).Name }
		subName := dir.Doctor(a.DoctorID).FullName
		if kind == ByDoctor {
			groupID, subID = a.DoctorID, a.ClinicID
			groupName = func() string { return dir.Doctor(a.DoctorID).FullName }
			subName = dir.Clinic(a.ClinicID).Name
		}

		grp := groups.get(groupID, func() *groupTally {
			return &groupTally{id: groupID, name: groupName(), sub: newTally[*Count](), reasons: newTally[*Count]()}
		})
		grp.total++
		grp.sub.get(subID, func() *Count { return &Count{Name: subName} }).Count++

		reason := strings.TrimSpace(a.Reason)
		if reason == "" {
			reason = "Unknown"
		}
		grp.reasons.get(reason, func() *Count { return &Count{Name: reason} }).Count++
	}

	for _, gt := range groups.items {
		rep.Groups = append(rep.Groups, Group{
			ID:      gt.id,
			Name:    gt.name,
			Total:   gt.total,
			Sub:     flatten(gt.sub),
			Reasons: flatten(gt.reasons),
		})
	}
	return rep, nil
}

type groupTally struct {
	id      string
	name    string
	total   int
	sub     *tally[*Count]
	reasons *tally[*Count]
}

// tally keeps values by key in insertion order.
type tally[V any] struct {
	index map[string]int
	items []V
}

func newTally[V any]() *tally[V] {
	return &tally[V]{index: make(map[string]int)}
}

func (t *tally[V]) get(key string, create func() V) V {
	if i, ok := t.index[key]; ok {
		return t.items[i]
	}
	v := create()
	t.index[key] = len(t.items)
	t.items = append(t.items, v)
	return v
}

func flatten(t *tally[*Count]) []Count {
	out := make([]Count, 0, len(t.items))
	for _, c := range t.items {
		out = append(out, *c)
	}
	return out
}
