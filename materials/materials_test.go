package materials

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshconv/binning"
)

func TestLaw(t *testing.T) {
	{ // Defaults
		l := DefaultLaw()
		require.NoError(t, l.Validate())
		assert.InDelta(t, 1.0, l.Density(6850), 1e-12)
		assert.InDelta(t, math.Pow(2, 1/1.49), l.Density(13700), 1e-12)
		opts := l.BinOptions()
		assert.Equal(t, 500, opts.Count)
		assert.Equal(t, 1.0, opts.Lower)
	}
	{ // YAML overlays only what it names
		l := DefaultLaw()
		require.NoError(t, l.Parse([]byte("Title: Cortical\nBins: 50\nPoisson: 0.25\n")))
		assert.Equal(t, "Cortical", l.Title)
		assert.Equal(t, 50, l.Bins)
		assert.Equal(t, 0.25, l.Poisson)
		assert.Equal(t, 6850.0, l.DensityScale)
		assert.Equal(t, 16, l.SectionType)
	}
	{ // Invalid values
		for _, doc := range []string{
			"Bins: 0",
			"DensityScale: -1",
			"DensityExponent: 0",
			"Poisson: 0.5",
			"Bins: [1, 2]",
		} {
			l := DefaultLaw()
			assert.Error(t, l.Parse([]byte(doc)), doc)
		}
	}
	{ // From a file
		path := filepath.Join(t.TempDir(), "law.yaml")
		require.NoError(t, os.WriteFile(path, []byte("DensityExponent: 2\n"), 0o644))
		l, err := ReadLaw(path)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, l.Density(9*6850), 1e-12)
		_, err = ReadLaw(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	}
	{
		var buf bytes.Buffer
		l := DefaultLaw()
		l.Print(&buf)
		assert.Contains(t, buf.String(), "= DensityExponent")
		assert.Contains(t, buf.String(), "[500]")
	}
}

func TestParts(t *testing.T) {
	l := DefaultLaw()
	parts := l.Parts([]binning.Bin{
		{Index: 500, Count: 1, Mean: 6850},
		{Index: 1, Count: 3, Mean: 1},
	})
	require.Equal(t, 2, len(parts))
	assert.Equal(t, 1, parts[0].ID)
	assert.Equal(t, 3, parts[0].Elements)
	assert.Equal(t, 500, parts[1].ID)
	assert.InDelta(t, 1.0, parts[1].Density, 1e-12)
	assert.Equal(t, 0.3, parts[1].Poisson)
	assert.Equal(t, 16, parts[1].SectionType)
}
