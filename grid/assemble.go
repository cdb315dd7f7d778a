package grid

import (
	"fmt"

	"github.com/notargets/meshconv/types"
)

// Assemble inserts the nodes and elements of m into g in file order, so that
// point i is Nodes[i] and cell k is Elements[k]. Element connectivity is
// translated from node ids to point positions. With keepIDs the node and
// element ids are stored as the vtkOriginalPointIds / vtkOriginalCellIds
// fields.
func Assemble(g Grid, m *types.Mesh, keepIDs bool) (err error) {
	idMap := m.NodeIDMap()
	for _, n := range m.Nodes {
		g.AddPoint(n.X, n.Y, n.Z)
	}
	if g.NumPoints() != len(m.Nodes) {
		return &types.ConsistencyError{What: "points", Want: len(m.Nodes), Got: g.NumPoints()}
	}
	var pts [types.TetNodes]int
	for _, el := range m.Elements {
		for i, nid := range el.Nodes {
			pos, ok := idMap[nid]
			if !ok {
				return &types.FormatError{
					Field: fmt.Sprintf("n%d", i+1),
					Err:   fmt.Errorf("element %d references unknown node %d", el.ID, nid),
				}
			}
			pts[i] = pos
		}
		if _, err = g.AddCell(Tetra, pts[:]...); err != nil {
			return fmt.Errorf("element %d: %w", el.ID, err)
		}
	}
	if g.NumCells() != len(m.Elements) {
		return &types.ConsistencyError{What: "cells", Want: len(m.Elements), Got: g.NumCells()}
	}
	if keepIDs {
		if err = g.SetPointField(NewIDField(OriginalPointIDs, m.NodeArrayMap())); err != nil {
			return
		}
		cellIDs := make([]int, len(m.Elements))
		for k, el := range m.Elements {
			cellIDs[k] = el.ID
		}
		if err = g.SetCellField(NewIDField(OriginalCellIDs, cellIDs)); err != nil {
			return
		}
	}
	return
}
