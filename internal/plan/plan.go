// Package plan expands declared operation mixes into a shuffled sequence of
// work items.
package plan

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/loadmix/loadmix/internal/catalog"
)

// Mix is a bucket of operations repeated Repeat times.
type Mix struct {
	Name       string
	Operations []*catalog.Operation
	Repeat     int
}

// Size returns the number of work items the mix expands to.
func (m Mix) Size() int {
	if m.Repeat <= 0 {
		return 0
	}
	return m.Repeat * len(m.Operations)
}

// WorkItem is one operation selected for execution. It is not modified after
// the plan is built.
type WorkItem struct {
	Seq  int
	ID   string
	Op   *catalog.Operation
	Seed int64
}

// Options control plan construction.
type Options struct {
	// Seed makes ordering and payloads reproducible when non-nil.
	Seed *int64
}

// Build expands mixes and applies a uniform random permutation.
func Build(mixes []Mix, opts Options) []WorkItem {
	total := 0
	for _, m := range mixes {
		total += m.Size()
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rnd := rand.New(rand.NewSource(seed))

	ops := make([]*catalog.Operation, 0, total)
	for _, m := range mixes {
		for i := 0; i < m.Repeat; i++ {
			ops = append(ops, m.Operations...)
		}
	}
	rnd.Shuffle(len(ops), func(i, j int) {
		ops[i], ops[j] = ops[j], ops[i]
	})

	entropy := ulid.Monotonic(rnd, 0)
	now := ulid.Timestamp(time.Now())
	items := make([]WorkItem, len(ops))
	for i, op := range ops {
		items[i] = WorkItem{
			Seq:  i,
			ID:   ulid.MustNew(now, entropy).String(),
			Op:   op,
			Seed: rnd.Int63(),
		}
	}
	return items
}

// Counts tallies work items per operation name.
func Counts(items []WorkItem) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		if item.Op != nil {
			counts[item.Op.Name]++
		}
	}
	return counts
}
