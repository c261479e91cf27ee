// Package classifier loads the fitted diabetes classifier and maps its output
// to a risk label.
package classifier

import (
	"github.com/Skufu/GlucoRisk/internal/patient"
)

// Classifier predicts a class label for one feature row.
type Classifier interface {
	Predict(v patient.Vector) (int, error)
}

type RiskLabel string

const (
	AtRisk    RiskLabel = "At risk of diabetes"
	NotAtRisk RiskLabel = "Not at risk of diabetes"
)

// PositiveClass is the prediction that maps to AtRisk.
const PositiveClass = 1

// Label maps a prediction to its risk label. Only PositiveClass is at risk.
func Label(prediction int) RiskLabel {
	if prediction == PositiveClass {
		return AtRisk
	}
	return NotAtRisk
}

func (l RiskLabel) Positive() bool {
	return l == AtRisk
}
