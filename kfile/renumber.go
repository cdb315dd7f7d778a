package kfile

import "fmt"

// Renumberer assigns dense ids 1..N to raw node ids in the order they are
// first seen. It is keyed by raw id, so sparse and very large ids are fine.
type Renumberer struct {
	ids map[int]int
}

func NewRenumberer() *Renumberer {
	return &Renumberer{ids: make(map[int]int)}
}

// Assign gives raw the next dense id. A raw id can only be assigned once.
func (r *Renumberer) Assign(raw int) (id int, err error) {
	if prev, ok := r.ids[raw]; ok {
		return prev, fmt.Errorf("duplicate node id %d", raw)
	}
	id = len(r.ids) + 1
	r.ids[raw] = id
	return
}

func (r *Renumberer) Lookup(raw int) (id int, ok bool) {
	id, ok = r.ids[raw]
	return
}

// Len is the number of assigned ids, which is also the largest one
func (r *Renumberer) Len() int {
	return len(r.ids)
}
