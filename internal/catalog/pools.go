package catalog

import "math/rand"

// PoolKind names a cross-referenced entity type whose ids seed dependent operations.
type PoolKind string

const (
	PoolUsers    PoolKind = "users"
	PoolProducts PoolKind = "products"
)

// Identifier is a raw JSON literal (number or string) taken from a bootstrap read.
type Identifier string

// Pools holds the identifier pools. It is filled once before the run and only
// read afterwards, so workers share it without locking.
type Pools map[PoolKind][]Identifier

// Len returns the number of identifiers of the given kind.
func (p Pools) Len(kind PoolKind) int {
	return len(p[kind])
}

// Pick returns a uniformly random identifier of the given kind.
func (p Pools) Pick(kind PoolKind, rnd *rand.Rand) (Identifier, bool) {
	ids := p[kind]
	if len(ids) == 0 {
		return "", false
	}
	return ids[rnd.Intn(len(ids))], true
}

// Missing reports the first pool op requires that is empty.
func (p Pools) Missing(op *Operation) (PoolKind, bool) {
	for _, kind := range op.Requires {
		if p.Len(kind) == 0 {
			return kind, true
		}
	}
	return "", false
}
