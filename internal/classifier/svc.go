package classifier

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	"github.com/Skufu/GlucoRisk/internal/patient"
)

var ErrInvalidArtifact = errors.New("invalid classifier artifact")

type Kernel string

const (
	KernelLinear  Kernel = "linear"
	KernelRBF     Kernel = "rbf"
	KernelPoly    Kernel = "poly"
	KernelSigmoid Kernel = "sigmoid"
)

// Artifact is the on-disk form of a fitted binary support vector classifier.
// Coefficients follow the libsvm convention where dual_coef already carries
// the label sign, so the decision value is positive for classes[1].
type Artifact struct {
	Kernel         Kernel      `json:"kernel"`
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         int         `json:"degree"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef"`
	Intercept      float64     `json:"intercept"`
	Classes        []int       `json:"classes"`
	FeatureNames   []string    `json:"feature_names,omitempty"`
}

// SVC evaluates a loaded Artifact. It is immutable after Load and safe for
// concurrent use.
type SVC struct {
	kernel    Kernel
	gamma     float64
	coef0     float64
	degree    int
	sv        []patient.Vector
	coef      []float64
	intercept float64
	classes   [2]int
}

// Load reads and checks the artifact at path.
func Load(path string) (*SVC, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidArtifact, path, err)
	}

	return New(a)
}

// New builds an SVC from an already decoded artifact.
func New(a Artifact) (*SVC, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	m := &SVC{
		kernel:    a.Kernel,
		gamma:     a.Gamma,
		coef0:     a.Coef0,
		degree:    a.Degree,
		coef:      append([]float64(nil), a.DualCoef...),
		intercept: a.Intercept,
		classes:   [2]int{0, 1},
	}
	if m.degree == 0 {
		m.degree = 3
	}
	if len(a.Classes) == 2 {
		m.classes = [2]int{a.Classes[0], a.Classes[1]}
	}

	m.sv = make([]patient.Vector, len(a.SupportVectors))
	for i, row := range a.SupportVectors {
		copy(m.sv[i][:], row)
	}
	return m, nil
}

func (a Artifact) check() error {
	switch a.Kernel {
	case KernelLinear:
	case KernelRBF, KernelPoly, KernelSigmoid:
		if a.Gamma <= 0 {
			return fmt.Errorf("kernel %s needs gamma > 0, got %g", a.Kernel, a.Gamma)
		}
	default:
		return fmt.Errorf("unknown kernel %q", a.Kernel)
	}

	if a.Degree < 0 {
		return fmt.Errorf("degree must not be negative, got %d", a.Degree)
	}
	if len(a.SupportVectors) == 0 {
		return errors.New("no support vectors")
	}
	if len(a.SupportVectors) != len(a.DualCoef) {
		return fmt.Errorf("%d support vectors but %d dual coefficients", len(a.SupportVectors), len(a.DualCoef))
	}
	for i, row := range a.SupportVectors {
		if len(row) != patient.NumFeatures {
			return fmt.Errorf("support vector %d has %d features, want %d", i, len(row), patient.NumFeatures)
		}
	}
	if len(a.Classes) != 0 && len(a.Classes) != 2 {
		return fmt.Errorf("binary classifier needs 2 classes, got %d", len(a.Classes))
	}
	if len(a.FeatureNames) != 0 {
		if len(a.FeatureNames) != patient.NumFeatures {
			return fmt.Errorf("artifact lists %d feature names, want %d", len(a.FeatureNames), patient.NumFeatures)
		}
		for i, name := range a.FeatureNames {
			if name != patient.FeatureNames[i] {
				return fmt.Errorf("feature %d is %q, want %q", i, name, patient.FeatureNames[i])
			}
		}
	}
	return nil
}

// Decision returns the signed distance of v from the separating surface.
func (m *SVC) Decision(v patient.Vector) float64 {
	sum := m.intercept
	for i, sv := range m.sv {
		sum += m.coef[i] * m.kernelValue(sv, v)
	}
	return sum
}

func (m *SVC) Predict(v patient.Vector) (int, error) {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("feature %s is not a finite number", patient.FeatureNames[i])
		}
	}
	if m.Decision(v) > 0 {
		return m.classes[1], nil
	}
	return m.classes[0], nil
}

func (m *SVC) kernelValue(a, b patient.Vector) float64 {
	switch m.kernel {
	case KernelRBF:
		var d float64
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Exp(-m.gamma * d)
	case KernelPoly:
		return math.Pow(m.gamma*dot(a, b)+m.coef0, float64(m.degree))
	case KernelSigmoid:
		return math.Tanh(m.gamma*dot(a, b) + m.coef0)
	default:
		return dot(a, b)
	}
}

func dot(a, b patient.Vector) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
