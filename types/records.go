package types

import "fmt"

// TetNodes is the number of vertices of a linear tetrahedron
const TetNodes = 4

// Node is one *NODE card: an id and its coordinates
type Node struct {
	ID      int
	X, Y, Z float64
}

func (n Node) Coords() [3]float64 {
	return [3]float64{n.X, n.Y, n.Z}
}

// Element is one solid element card with its four vertex references
type Element struct {
	ID    int
	Part  int // Part id from the card, zero when absent
	Nodes [TetNodes]int
}

// Mesh holds the records of one keyword file in file order
type Mesh struct {
	Nodes      []Node
	Elements   []Element
	Renumbered bool // Node ids are dense 1..N in file order
}

// NodeIDMap maps node ids to their position in Nodes
func (m *Mesh) NodeIDMap() (idMap map[int]int) {
	idMap = make(map[int]int, len(m.Nodes))
	for i, n := range m.Nodes {
		idMap[n.ID] = i
	}
	return
}

// NodeArrayMap maps node positions to their ids
func (m *Mesh) NodeArrayMap() (ids []int) {
	ids = make([]int, len(m.Nodes))
	for i, n := range m.Nodes {
		ids[i] = n.ID
	}
	return
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh with %d elements and %d nodes", len(m.Elements), len(m.Nodes))
}
