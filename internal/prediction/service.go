package prediction

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skufu/GlucoRisk/internal/classifier"
	"github.com/Skufu/GlucoRisk/internal/logger"
	"github.com/Skufu/GlucoRisk/internal/metrics"
	"github.com/Skufu/GlucoRisk/internal/patient"
	"github.com/Skufu/GlucoRisk/internal/store"
)

var ErrModelUnavailable = errors.New("classifier artifact not loaded")

type Mode string

const (
	ModeManual Mode = "manual"
	ModeLookup Mode = "lookup"
)

// PatientSource fetches a stored feature row by patient ID.
type PatientSource interface {
	Lookup(ctx context.Context, id int64) (patient.Record, error)
}

type Result struct {
	Mode       Mode                 `json:"mode"`
	PatientID  *int64               `json:"patientId,omitempty"`
	Prediction int                  `json:"prediction"`
	Label      classifier.RiskLabel `json:"label"`
	AtRisk     bool                 `json:"atRisk"`
	Input      patient.Record       `json:"input"`
}

// Service runs one inference per request. model and source are created at
// startup and may be nil when the artifact or the database was unavailable.
type Service struct {
	model   classifier.Classifier
	source  PatientSource
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewService(model classifier.Classifier, source PatientSource, m *metrics.Metrics, log *logger.Logger) *Service {
	if model != nil {
		m.ModelLoaded.Set(1)
	} else {
		m.ModelLoaded.Set(0)
	}
	return &Service{model: model, source: source, metrics: m, log: log}
}

func (s *Service) ModelReady() bool { return s.model != nil }

func (s *Service) LookupEnabled() bool { return s.source != nil }

// Manual predicts from user-entered values after range checks.
func (s *Service) Manual(ctx context.Context, rec patient.Record) (Result, error) {
	if s.model == nil {
		return Result{}, ErrModelUnavailable
	}
	if err := rec.Validate(); err != nil {
		return Result{}, err
	}
	return s.predict(ctx, ModeManual, nil, rec)
}

// Lookup fetches the stored row for id and predicts from it unmodified. The
// classifier is not called when the row is missing.
func (s *Service) Lookup(ctx context.Context, id int64) (Result, error) {
	if s.model == nil {
		return Result{}, ErrModelUnavailable
	}
	if s.source == nil {
		s.metrics.LookupFailures.WithLabelValues("unavailable").Inc()
		return Result{}, store.ErrUnavailable
	}

	rec, err := s.source.Lookup(ctx, id)
	if err != nil {
		s.metrics.LookupFailures.WithLabelValues(failureReason(err)).Inc()
		return Result{}, err
	}
	return s.predict(ctx, ModeLookup, &id, rec)
}

func (s *Service) predict(ctx context.Context, mode Mode, id *int64, rec patient.Record) (Result, error) {
	p, err := s.model.Predict(rec.Vector())
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}

	label := classifier.Label(p)
	res := Result{
		Mode:       mode,
		PatientID:  id,
		Prediction: p,
		Label:      label,
		AtRisk:     label.Positive(),
		Input:      rec,
	}

	s.metrics.Predictions.WithLabelValues(string(mode), outcome(label)).Inc()
	attrs := []any{"mode", mode, "prediction", p}
	if id != nil {
		attrs = append(attrs, "patient_id", *id)
	}
	s.log.WithContext(ctx).Debug("prediction served", attrs...)
	return res, nil
}

func outcome(l classifier.RiskLabel) string {
	if l.Positive() {
		return "at_risk"
	}
	return "not_at_risk"
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
