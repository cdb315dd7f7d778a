// Package convert runs the two conversions between keyword mesh files and
// unstructured grid files.
package convert

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/meshconv/binning"
	"github.com/notargets/meshconv/grid"
	"github.com/notargets/meshconv/grid/vtu"
	"github.com/notargets/meshconv/kfile"
	"github.com/notargets/meshconv/materials"
	"github.com/notargets/meshconv/types"
)

type MeshToGridOptions struct {
	Renumber bool // Number nodes 1..N in file order
	KeepIDs  bool // Store node and element ids as vtkOriginal*Ids fields
	Codec    grid.Codec
	NewGrid  func() grid.Grid
	Logger   logrus.FieldLogger
}

type GridToMeshOptions struct {
	Offset  int // Added to every id written
	Padding kfile.Padding
	Law     materials.Law
	Codec   grid.Codec
	Logger  logrus.FieldLogger
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// inFile names the file of a FormatError that does not name one yet
func inFile(err error, path string) error {
	var fe *types.FormatError
	if errors.As(err, &fe) && fe.File == "" {
		fe.File = path
	}
	return err
}

// MeshToGrid reads the tetrahedra of a keyword file and writes them as a grid
func MeshToGrid(meshPath, gridPath string, opts MeshToGridOptions) (err error) {
	var (
		mesh *types.Mesh
		log  = opts.Logger
	)
	if log == nil {
		log = discardLogger()
	}
	if opts.Codec == nil {
		opts.Codec = vtu.New(vtu.ASCII)
	}
	if opts.NewGrid == nil {
		opts.NewGrid = func() grid.Grid { return grid.NewUnstructured() }
	}
	log.Infof("reading mesh %s", meshPath)
	if mesh, err = kfile.ReadFile(meshPath, kfile.ParserOptions{Renumber: opts.Renumber, Logger: log}); err != nil {
		return
	}
	log.Infof("converted %s", mesh)
	g := opts.NewGrid()
	if err = grid.Assemble(g, mesh, opts.KeepIDs); err != nil {
		return inFile(err, meshPath)
	}
	if err = writeFiles(pendingFile{gridPath, func(w io.Writer) error {
		return opts.Codec.Encode(w, g)
	}}); err != nil {
		return
	}
	log.Infof("wrote grid %s with %d points and %d cells", gridPath, g.NumPoints(), g.NumCells())
	return
}

func readGrid(path string, codec grid.Codec) (g grid.Grid, err error) {
	var file *os.File
	if file, err = os.Open(path); err != nil {
		return nil, pkgerrors.Wrap(err, "opening grid file")
	}
	defer file.Close()
	if g, err = codec.Decode(file); err != nil {
		return nil, inFile(err, path)
	}
	return
}

// idsOr returns the ids held by f, or 1..n when the field is absent
func idsOr(f grid.Field, ok bool, n int) (ids []int, err error) {
	if ok {
		return f.Ints()
	}
	ids = make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return
}

// meshFromGrid rebuilds keyword records from a grid. Node ids come from
// vtkOriginalPointIds and element ids from vtkOriginalCellIds when present,
// otherwise from positions; connectivity uses the node ids. The part of each
// element is its bin index.
func meshFromGrid(g grid.Grid, bins []int) (mesh *types.Mesh, err error) {
	var nodeIDs, cellIDs []int
	pf, hasPointIDs := g.PointField(grid.OriginalPointIDs)
	if nodeIDs, err = idsOr(pf, hasPointIDs, g.NumPoints()); err != nil {
		return nil, &types.FormatError{Field: grid.OriginalPointIDs, Err: err}
	}
	cf, hasCellIDs := g.CellField(grid.OriginalCellIDs)
	if cellIDs, err = idsOr(cf, hasCellIDs, g.NumCells()); err != nil {
		return nil, &types.FormatError{Field: grid.OriginalCellIDs, Err: err}
	}
	mesh = &types.Mesh{
		Nodes:    make([]types.Node, g.NumPoints()),
		Elements: make([]types.Element, g.NumCells()),
	}
	for i := range mesh.Nodes {
		p := g.Point(i)
		mesh.Nodes[i] = types.Node{ID: nodeIDs[i], X: p[0], Y: p[1], Z: p[2]}
	}
	for k := range mesh.Elements {
		ct, pts := g.Cell(k)
		if ct != grid.Tetra || len(pts) != types.TetNodes {
			return nil, &types.FormatError{Field: "types", Err: fmt.Errorf("cell %d is a %s, only tetrahedra are supported", k, ct)}
		}
		el := types.Element{ID: cellIDs[k], Part: bins[k]}
		for i, p := range pts {
			el.Nodes[i] = nodeIDs[p]
		}
		mesh.Elements[k] = el
	}
	return
}

// GridToMesh bins the stiffness field of a grid and writes the keyword mesh
// with one part per occupied bin, plus the matching material deck
func GridToMesh(gridPath, meshPath, matsPath string, opts GridToMeshOptions) (err error) {
	var (
		g    grid.Grid
		res  *binning.Result
		mesh *types.Mesh
		log  = opts.Logger
		law  = opts.Law
	)
	if log == nil {
		log = discardLogger()
	}
	if opts.Codec == nil {
		opts.Codec = vtu.New(vtu.ASCII)
	}
	if law == (materials.Law{}) {
		law = materials.DefaultLaw()
	}
	if err = law.Validate(); err != nil {
		return pkgerrors.Wrap(err, "material law")
	}
	var summary strings.Builder
	law.Print(&summary)
	log.Debugf("material law:\n%s", summary.String())
	log.Infof("reading grid %s", gridPath)
	if g, err = readGrid(gridPath, opts.Codec); err != nil {
		return
	}
	e, ok := g.CellField(grid.Stiffness)
	if !ok {
		return &types.FormatError{File: gridPath, Field: grid.Stiffness, Err: fmt.Errorf("cell data array not found")}
	}
	if res, err = binning.Digitize(e.Values, law.BinOptions()); err != nil {
		return inFile(err, gridPath)
	}
	log.Infof("%d cells fall in %d of %d bins", g.NumCells(), len(res.Bins), law.Bins)
	for _, b := range res.Bins {
		log.Debugf("bin %d [%g, %g]: %d cells, mean %g", b.Index, b.Lower, b.Upper, b.Count, b.Mean)
	}
	if mesh, err = meshFromGrid(g, res.Assignments); err != nil {
		return inFile(err, gridPath)
	}
	parts := law.Parts(res.Bins)
	wo := kfile.WriterOptions{Offset: opts.Offset, Padding: opts.Padding}
	if err = writeFiles(
		pendingFile{meshPath, func(w io.Writer) error { return kfile.WriteMesh(w, mesh, wo) }},
		pendingFile{matsPath, func(w io.Writer) error { return kfile.WriteMaterials(w, parts, wo) }},
	); err != nil {
		return
	}
	log.Infof("wrote %s to %s and %d parts to %s", mesh, meshPath, len(parts), matsPath)
	return
}
