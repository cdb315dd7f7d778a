package materials

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/notargets/meshconv/binning"
)

// Law holds the constants used to turn binned stiffness into material cards.
// The density-like parameter is derived from the modulus with the empirical
// power law rho = (E / DensityScale) ^ (1 / DensityExponent).
type Law struct {
	Title           string  `json:"Title"`
	Bins            int     `json:"Bins"`
	LowerEdge       float64 `json:"LowerEdge"`
	DensityScale    float64 `json:"DensityScale"`
	DensityExponent float64 `json:"DensityExponent"`
	Poisson         float64 `json:"Poisson"`
	SectionType     int     `json:"SectionType"` // ELFORM of *SECTION_SOLID
}

func DefaultLaw() Law {
	return Law{
		Title:           "Power law bone",
		Bins:            binning.DefaultCount,
		LowerEdge:       binning.DefaultLower,
		DensityScale:    6850,
		DensityExponent: 1.49,
		Poisson:         0.3,
		SectionType:     16,
	}
}

// Parse overlays the YAML document in data on the current values
func (l *Law) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, l); err != nil {
		return err
	}
	return l.Validate()
}

// ReadLaw reads a YAML law file on top of the defaults
func ReadLaw(path string) (l Law, err error) {
	var data []byte
	l = DefaultLaw()
	if data, err = os.ReadFile(path); err != nil {
		return l, errors.Wrap(err, "reading material law")
	}
	if err = l.Parse(data); err != nil {
		return l, errors.Wrapf(err, "parsing material law %s", path)
	}
	return
}

func (l *Law) Validate() error {
	switch {
	case l.Bins < 1:
		return fmt.Errorf("Bins must be positive, have %d", l.Bins)
	case l.DensityScale <= 0:
		return fmt.Errorf("DensityScale must be positive, have %v", l.DensityScale)
	case l.DensityExponent == 0:
		return fmt.Errorf("DensityExponent can not be zero")
	case l.Poisson < 0 || l.Poisson >= 0.5:
		return fmt.Errorf("Poisson must be in [0, 0.5), have %v", l.Poisson)
	}
	return nil
}

func (l *Law) Density(modulus float64) float64 {
	return math.Pow(modulus/l.DensityScale, 1/l.DensityExponent)
}

// BinOptions returns the histogram settings of the law
func (l *Law) BinOptions() binning.Options {
	opts := binning.DefaultOptions()
	opts.Count, opts.Lower = l.Bins, l.LowerEdge
	return opts
}

func (l *Law) Print(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", l.Title)
	fmt.Fprintf(w, "[%d]\t\t\t= Bins\n", l.Bins)
	fmt.Fprintf(w, "%8.5f\t\t= LowerEdge\n", l.LowerEdge)
	fmt.Fprintf(w, "%8.2f\t\t= DensityScale\n", l.DensityScale)
	fmt.Fprintf(w, "%8.5f\t\t= DensityExponent\n", l.DensityExponent)
	fmt.Fprintf(w, "%8.5f\t\t= Poisson\n", l.Poisson)
	fmt.Fprintf(w, "[%d]\t\t\t= SectionType\n", l.SectionType)
}

// Part is one part / section / elastic material triple. The id is shared by
// all three cards and equals the bin index.
type Part struct {
	ID          int
	Modulus     float64
	Density     float64
	Poisson     float64
	SectionType int
	Elements    int
}

// Parts builds one part per occupied bin, ordered by bin index
func (l *Law) Parts(bins []binning.Bin) (parts []Part) {
	parts = make([]Part, len(bins))
	for i, b := range bins {
		parts[i] = Part{
			ID:          b.Index,
			Modulus:     b.Mean,
			Density:     l.Density(b.Mean),
			Poisson:     l.Poisson,
			SectionType: l.SectionType,
			Elements:    b.Count,
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
	return
}
