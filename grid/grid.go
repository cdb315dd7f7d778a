// Package grid is an in-memory unstructured grid of points and cells with
// named scalar fields, and the interface the file codecs work against.
package grid

import (
	"fmt"
	"io"
	"math"
)

// CellType uses the VTK cell type numbering
type CellType uint8

const (
	Tetra CellType = 10
)

// NumPoints is the number of vertices of a cell type, zero when unknown
func (ct CellType) NumPoints() int {
	switch ct {
	case Tetra:
		return 4
	}
	return 0
}

func (ct CellType) String() string {
	switch ct {
	case Tetra:
		return "Tetra"
	}
	return fmt.Sprintf("CellType(%d)", uint8(ct))
}

// Well known field names
const (
	OriginalPointIDs = "vtkOriginalPointIds"
	OriginalCellIDs  = "vtkOriginalCellIds"
	Stiffness        = "E"
)

// Field is a named scalar array with one value per point or per cell.
// Integer fields hold whole numbers and are stored as integers on disk.
type Field struct {
	Name    string
	Integer bool
	Values  []float64
}

func NewScalarField(name string, values []float64) Field {
	return Field{Name: name, Values: values}
}

func NewIDField(name string, ids []int) Field {
	f := Field{Name: name, Integer: true, Values: make([]float64, len(ids))}
	for i, id := range ids {
		f.Values[i] = float64(id)
	}
	return f
}

// Ints returns the values of the field converted to int
func (f Field) Ints() (ids []int, err error) {
	ids = make([]int, len(f.Values))
	for i, v := range f.Values {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("field %s: value %v at %d is not an integer", f.Name, v, i)
		}
		ids[i] = int(v)
	}
	return
}

// Grid is what the converters need from a geometry library: insertion of
// points and cells by position, and named scalar fields
type Grid interface {
	AddPoint(x, y, z float64) int
	AddCell(ct CellType, pts ...int) (int, error)
	NumPoints() int
	NumCells() int
	Point(i int) [3]float64
	Cell(i int) (ct CellType, pts []int)
	SetPointField(f Field) error
	SetCellField(f Field) error
	PointField(name string) (Field, bool)
	CellField(name string) (Field, bool)
	PointFields() []Field
	CellFields() []Field
}

// Codec reads and writes a Grid in one file format
type Codec interface {
	Encode(w io.Writer, g Grid) error
	Decode(r io.Reader) (Grid, error)
}

// Unstructured is the default Grid. Connectivity is stored flat with VTK
// style end offsets.
type Unstructured struct {
	points       [][3]float64
	types        []CellType
	connectivity []int
	offsets      []int
	pointData    fieldSet
	cellData     fieldSet
}

func NewUnstructured() *Unstructured {
	return &Unstructured{}
}

func (g *Unstructured) AddPoint(x, y, z float64) int {
	g.points = append(g.points, [3]float64{x, y, z})
	return len(g.points) - 1
}

func (g *Unstructured) AddCell(ct CellType, pts ...int) (int, error) {
	if np := ct.NumPoints(); np == 0 || np != len(pts) {
		return -1, fmt.Errorf("cell type %s needs %d points, have %d", ct, np, len(pts))
	}
	for _, p := range pts {
		if p < 0 || p >= len(g.points) {
			return -1, fmt.Errorf("cell point %d out of range [0,%d)", p, len(g.points))
		}
	}
	g.types = append(g.types, ct)
	g.connectivity = append(g.connectivity, pts...)
	g.offsets = append(g.offsets, len(g.connectivity))
	return len(g.types) - 1, nil
}

func (g *Unstructured) NumPoints() int { return len(g.points) }

func (g *Unstructured) NumCells() int { return len(g.types) }

func (g *Unstructured) Point(i int) [3]float64 { return g.points[i] }

func (g *Unstructured) Cell(i int) (ct CellType, pts []int) {
	start := 0
	if i > 0 {
		start = g.offsets[i-1]
	}
	return g.types[i], g.connectivity[start:g.offsets[i]]
}

func (g *Unstructured) SetPointField(f Field) error {
	if len(f.Values) != len(g.points) {
		return fmt.Errorf("point field %s has %d values for %d points", f.Name, len(f.Values), len(g.points))
	}
	g.pointData.set(f)
	return nil
}

func (g *Unstructured) SetCellField(f Field) error {
	if len(f.Values) != len(g.types) {
		return fmt.Errorf("cell field %s has %d values for %d cells", f.Name, len(f.Values), len(g.types))
	}
	g.cellData.set(f)
	return nil
}

func (g *Unstructured) PointField(name string) (Field, bool) { return g.pointData.get(name) }

func (g *Unstructured) CellField(name string) (Field, bool) { return g.cellData.get(name) }

func (g *Unstructured) PointFields() []Field { return g.pointData.fields }

func (g *Unstructured) CellFields() []Field { return g.cellData.fields }

// fieldSet keeps fields in insertion order
type fieldSet struct {
	fields []Field
}

func (fs *fieldSet) set(f Field) {
	for i := range fs.fields {
		if fs.fields[i].Name == f.Name {
			fs.fields[i] = f
			return
		}
	}
	fs.fields = append(fs.fields, f)
}

func (fs *fieldSet) get(name string) (Field, bool) {
	for _, f := range fs.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
