package event

import (
	"fmt"
	"strconv"
)

// TotalBit is the decision-table column holding the overall L1 decision.
const TotalBit = "L1_Total"

// ID identifies a detector readout.
type ID struct {
	Run   uint32
	Lumi  uint32
	Event uint64
}

// String renders the id as run:lumi:event.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id.Run), 10) + ":" +
		strconv.FormatUint(uint64(id.Lumi), 10) + ":" +
		strconv.FormatUint(id.Event, 10)
}

// Decisions is a boolean table with one column per trigger bit.
type Decisions struct {
	Names  []string
	Values [][]bool
}

// Column returns the values of the named bit.
func (d Decisions) Column(name string) ([]bool, bool) {
	for i, n := range d.Names {
		if n == name {
			return d.Values[i], true
		}
	}
	return nil, false
}

// Info carries sample-level information about a batch.
type Info struct {
	Sample string
	Files  []string
}

// Batch is one loaded set of events. All collections have the same event count.
type Batch struct {
	Info      Info
	IDs       []ID // optional; empty when the source carries no event ids
	Muons     Collection
	EGammas   Collection
	Jets      Collection
	Sums      Sums
	Decisions Decisions
}

// NewBatch returns an empty batch ready for appending events.
func NewBatch(sample string) *Batch {
	return &Batch{
		Info:    Info{Sample: sample},
		Muons:   NewCollection(),
		EGammas: NewCollection(),
		Jets:    NewCollection(),
		Sums:    NewSums(),
	}
}

// Len returns the number of events.
func (b *Batch) Len() int {
	return b.Sums.Events()
}

// Validate checks that every per-event column has the same length.
func (b *Batch) Validate() error {
	n := b.Len()
	for name, c := range map[string]Collection{"muons": b.Muons, "egammas": b.EGammas, "jets": b.Jets} {
		if err := c.validate(name); err != nil {
			return err
		}
		if c.Events() != n {
			return fmt.Errorf("%s: %d events, expected %d", name, c.Events(), n)
		}
	}
	if len(b.IDs) != 0 && len(b.IDs) != n {
		return fmt.Errorf("ids: %d entries, expected %d", len(b.IDs), n)
	}
	if len(b.Decisions.Names) != len(b.Decisions.Values) {
		return fmt.Errorf("decisions: %d names for %d columns", len(b.Decisions.Names), len(b.Decisions.Values))
	}
	for i, col := range b.Decisions.Values {
		if len(col) != n {
			return fmt.Errorf("decisions: bit %s has %d rows, expected %d", b.Decisions.Names[i], len(col), n)
		}
	}
	return nil
}

// Append appends all events of o to b. Decision columns are matched by name;
// o must carry the same bit names as b unless b is still empty.
func (b *Batch) Append(o *Batch) error {
	if b.Len() != 0 && o.Len() != 0 && (len(b.IDs) == 0) != (len(o.IDs) == 0) {
		return fmt.Errorf("ids: cannot merge batches with and without event ids")
	}
	if b.Len() == 0 && len(b.Decisions.Names) == 0 {
		b.Decisions.Names = append([]string(nil), o.Decisions.Names...)
		b.Decisions.Values = make([][]bool, len(o.Decisions.Names))
	}
	if len(o.Decisions.Names) != len(b.Decisions.Names) {
		return fmt.Errorf("decisions: cannot merge %d bits into %d", len(o.Decisions.Names), len(b.Decisions.Names))
	}
	cols := make([][]bool, len(b.Decisions.Names))
	for i, name := range b.Decisions.Names {
		col, ok := o.Decisions.Column(name)
		if !ok {
			return fmt.Errorf("decisions: bit %s missing from appended batch", name)
		}
		cols[i] = col
	}
	for i, col := range cols {
		b.Decisions.Values[i] = append(b.Decisions.Values[i], col...)
	}
	b.IDs = append(b.IDs, o.IDs...)
	b.Muons.appendCollection(o.Muons)
	b.EGammas.appendCollection(o.EGammas)
	b.Jets.appendCollection(o.Jets)
	b.Sums.appendSums(o.Sums)
	b.Info.Files = append(b.Info.Files, o.Info.Files...)
	return nil
}

// Filter returns a new batch holding only the events where keep[i] is true.
func (b *Batch) Filter(keep []bool) *Batch {
	out := NewBatch(b.Info.Sample)
	out.Info.Files = append(out.Info.Files, b.Info.Files...)
	out.Decisions.Names = append(out.Decisions.Names, b.Decisions.Names...)
	out.Decisions.Values = make([][]bool, len(b.Decisions.Names))
	for i := 0; i < b.Len(); i++ {
		if !keep[i] {
			continue
		}
		out.Muons.Append(objects(b.Muons, i)...)
		out.EGammas.Append(objects(b.EGammas, i)...)
		out.Jets.Append(objects(b.Jets, i)...)
		out.Sums.Append(b.Sums.Entries(i)...)
		if len(b.IDs) != 0 {
			out.IDs = append(out.IDs, b.IDs[i])
		}
		for c := range b.Decisions.Values {
			out.Decisions.Values[c] = append(out.Decisions.Values[c], b.Decisions.Values[c][i])
		}
	}
	return out
}

func objects(c Collection, i int) []Object {
	n := c.Count(i)
	out := make([]Object, n)
	for j := 0; j < n; j++ {
		out[j] = c.At(i, j)
	}
	return out
}
