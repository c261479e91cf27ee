package classifier

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GlucoRisk/internal/patient"
)

// glucoseThreshold is positive once Glucose exceeds 120.
const glucoseThreshold = `{
  "kernel": "linear",
  "support_vectors": [[0, 1, 0, 0, 0, 0, 0, 0]],
  "dual_coef": [0.01],
  "intercept": -1.2,
  "classes": [0, 1],
  "feature_names": ["Pregnancies", "Glucose", "BloodPressure", "SkinThickness", "Insulin", "BMI", "DiabetesPedigreeFunction", "Age"]
}`

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "svc_model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLinearArtifact(t *testing.T) {
	m, err := Load(writeArtifact(t, glucoseThreshold))
	require.NoError(t, err)

	low := patient.Default().Vector()
	got, err := m.Predict(low)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	high := low
	high[1] = 150
	got, err = m.Predict(high)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadCorruptFile(t *testing.T) {
	_, err := Load(writeArtifact(t, "\x80\x04\x95 pickle bytes"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
}

func TestLoadRejectsBadArtifacts(t *testing.T) {
	cases := map[string]Artifact{
		"unknown kernel": {
			Kernel:         "cubic",
			SupportVectors: [][]float64{make([]float64, 8)},
			DualCoef:       []float64{1},
		},
		"rbf without gamma": {
			Kernel:         KernelRBF,
			SupportVectors: [][]float64{make([]float64, 8)},
			DualCoef:       []float64{1},
		},
		"short support vector": {
			Kernel:         KernelLinear,
			SupportVectors: [][]float64{make([]float64, 7)},
			DualCoef:       []float64{1},
		},
		"coefficient count mismatch": {
			Kernel:         KernelLinear,
			SupportVectors: [][]float64{make([]float64, 8)},
			DualCoef:       []float64{1, 2},
		},
		"no support vectors": {
			Kernel: KernelLinear,
		},
		"three classes": {
			Kernel:         KernelLinear,
			SupportVectors: [][]float64{make([]float64, 8)},
			DualCoef:       []float64{1},
			Classes:        []int{0, 1, 2},
		},
		"swapped feature order": {
			Kernel:         KernelLinear,
			SupportVectors: [][]float64{make([]float64, 8)},
			DualCoef:       []float64{1},
			FeatureNames:   []string{"Glucose", "Pregnancies", "BloodPressure", "SkinThickness", "Insulin", "BMI", "DiabetesPedigreeFunction", "Age"},
		},
	}

	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArtifact))
		})
	}
}

func TestRBFKernel(t *testing.T) {
	far := []float64{10, 10, 10, 10, 10, 10, 10, 10}
	m, err := New(Artifact{
		Kernel:         KernelRBF,
		Gamma:          0.01,
		SupportVectors: [][]float64{make([]float64, 8), far},
		DualCoef:       []float64{-1, 1},
	})
	require.NoError(t, err)

	var farVec patient.Vector
	copy(farVec[:], far)

	got, err := m.Predict(farVec)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = m.Predict(patient.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	assert.InDelta(t, 1-math.Exp(-8), m.Decision(farVec), 1e-9)
}

func TestPolyKernelDefaultsToDegreeThree(t *testing.T) {
	m, err := New(Artifact{
		Kernel:         KernelPoly,
		Gamma:          1,
		SupportVectors: [][]float64{{1, 0, 0, 0, 0, 0, 0, 0}},
		DualCoef:       []float64{1},
		Intercept:      -8,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0, m.Decision(patient.Vector{2}), 1e-9)
	got, err := m.Predict(patient.Vector{2})
	require.NoError(t, err)
	assert.Equal(t, 0, got, "zero decision value is the negative class")

	got, err = m.Predict(patient.Vector{3})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSigmoidKernel(t *testing.T) {
	m, err := New(Artifact{
		Kernel:         KernelSigmoid,
		Gamma:          0.5,
		Coef0:          0,
		SupportVectors: [][]float64{{1, 0, 0, 0, 0, 0, 0, 0}},
		DualCoef:       []float64{2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Tanh(1), m.Decision(patient.Vector{2}), 1e-9)
}

func TestCustomClassLabels(t *testing.T) {
	m, err := New(Artifact{
		Kernel:         KernelLinear,
		SupportVectors: [][]float64{{1, 0, 0, 0, 0, 0, 0, 0}},
		DualCoef:       []float64{1},
		Classes:        []int{-1, 1},
	})
	require.NoError(t, err)

	got, err := m.Predict(patient.Vector{-5})
	require.NoError(t, err)
	assert.Equal(t, -1, got)
}

func TestPredictRejectsNonFinite(t *testing.T) {
	m, err := Load(writeArtifact(t, glucoseThreshold))
	require.NoError(t, err)

	v := patient.Default().Vector()
	v[5] = math.NaN()
	_, err = m.Predict(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BMI")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, AtRisk, Label(1))
	assert.True(t, Label(1).Positive())
	for _, p := range []int{0, -1, 2, 99} {
		assert.Equal(t, NotAtRisk, Label(p))
		assert.False(t, Label(p).Positive())
	}
}
