package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// modelFile is the JSON artifact schema: an ordered list of dense
// layers. Weights are row-major, one row per output unit.
type modelFile struct {
	Layers []layerSpec `json:"layers"`
}

type layerSpec struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"` // "relu", "softmax" or "" (linear)
}

type denseLayer struct {
	w          *mat.Dense
	b          *mat.VecDense
	activation string
}

// MLP is a feed-forward classifier with two output units; the second
// output after softmax is the keep confidence.
type MLP struct {
	layers []denseLayer
}

// Load reads a model artifact from disk. Any failure to read, parse or
// validate the artifact is reported as ErrUnavailable.
func Load(path string) (*MLP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, path, err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrUnavailable, path, err)
	}
	return build(mf)
}

func build(mf modelFile) (*MLP, error) {
	if len(mf.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrUnavailable)
	}
	m := &MLP{}
	inWidth := FeatureCount
	for i, spec := range mf.Layers {
		rows := len(spec.Weights)
		if rows == 0 || len(spec.Bias) != rows {
			return nil, fmt.Errorf("%w: layer %d shape", ErrUnavailable, i)
		}
		cols := len(spec.Weights[0])
		if cols != inWidth {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, got %d", ErrUnavailable, i, cols, inWidth)
		}
		flat := make([]float64, 0, rows*cols)
		for _, row := range spec.Weights {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: layer %d ragged weights", ErrUnavailable, i)
			}
			flat = append(flat, row...)
		}
		m.layers = append(m.layers, denseLayer{
			w:          mat.NewDense(rows, cols, flat),
			b:          mat.NewVecDense(rows, append([]float64(nil), spec.Bias...)),
			activation: spec.Activation,
		})
		inWidth = rows
	}
	if inWidth != 2 {
		return nil, fmt.Errorf("%w: final layer must have 2 outputs, has %d", ErrUnavailable, inWidth)
	}
	return m, nil
}

// Score runs the forward pass and returns the second softmax output.
func (m *MLP) Score(features [FeatureCount]float64) (float64, error) {
	x := mat.NewVecDense(FeatureCount, features[:])
	for _, l := range m.layers {
		y := mat.NewVecDense(l.w.RawMatrix().Rows, nil)
		y.MulVec(l.w, x)
		y.AddVec(y, l.b)
		applyActivation(y, l.activation)
		x = y
	}
	return x.AtVec(1), nil
}

func applyActivation(v *mat.VecDense, activation string) {
	switch activation {
	case "relu":
		for i := 0; i < v.Len(); i++ {
			if v.AtVec(i) < 0 {
				v.SetVec(i, 0)
			}
		}
	case "softmax":
		// Shift by the max for numerical stability.
		maxVal := math.Inf(-1)
		for i := 0; i < v.Len(); i++ {
			maxVal = math.Max(maxVal, v.AtVec(i))
		}
		sum := 0.0
		for i := 0; i < v.Len(); i++ {
			e := math.Exp(v.AtVec(i) - maxVal)
			v.SetVec(i, e)
			sum += e
		}
		for i := 0; i < v.Len(); i++ {
			v.SetVec(i, v.AtVec(i)/sum)
		}
	}
}
