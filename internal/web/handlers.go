package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/GlucoRisk/internal/logger"
	"github.com/Skufu/GlucoRisk/internal/patient"
	"github.com/Skufu/GlucoRisk/internal/prediction"
	"github.com/Skufu/GlucoRisk/internal/store"
)

const (
	msgModelMissing = "The model could not be loaded. Prediction is unavailable."
	msgEnterID      = "Please enter a patient ID first."
	msgBadID        = "Patient ID must be a whole number."
	msgDBDown       = "Failed to connect to the database. Check your configuration."
	msgBadForm      = "Every field must be a number."
)

type handler struct {
	svc *prediction.Service
	log *logger.Logger
}

type message struct {
	Level string
	Text  string
}

type formInput struct {
	patient.Bound
	Value float64
}

type page struct {
	Title      string
	Mode       string
	ModelReady bool
	Message    *message
	Inputs     []formInput
	PatientID  string
	Result     *prediction.Result
}

func (h *handler) newPage(mode string) page {
	title := "Manual entry"
	if mode == "lookup" {
		title = "Database lookup"
	}
	return page{Title: title, Mode: mode, ModelReady: h.svc.ModelReady()}
}

func inputsFor(rec patient.Record) []formInput {
	fields := rec.Fields()
	out := make([]formInput, len(patient.Bounds))
	for i, b := range patient.Bounds {
		out[i] = formInput{Bound: b, Value: fields[i].Value}
	}
	return out
}

func (h *handler) manualForm(c *gin.Context) {
	p := h.newPage("manual")
	p.Inputs = inputsFor(patient.Default())
	c.HTML(http.StatusOK, "manual", p)
}

func (h *handler) manualSubmit(c *gin.Context) {
	p := h.newPage("manual")
	if !p.ModelReady {
		p.Inputs = inputsFor(patient.Default())
		c.HTML(http.StatusServiceUnavailable, "manual", p)
		return
	}

	var in patient.Input
	if err := c.ShouldBind(&in); err != nil {
		p.Inputs = inputsFor(patient.Default())
		p.Message = &message{Level: "error", Text: msgBadForm}
		c.HTML(http.StatusBadRequest, "manual", p)
		return
	}
	clearBlank(c, &in)
	p.Inputs = inputsFor(in.Fill(patient.Default()))

	res, err := h.manual(c, in)
	if err != nil {
		status, text := h.describe(c, err, 0)
		p.Message = &message{Level: levelFor(status), Text: text}
		c.HTML(status, "manual", p)
		return
	}

	p.Result = &res
	c.HTML(http.StatusOK, "manual", p)
}

// clearBlank unsets features posted as empty strings, which gin binds as 0.
func clearBlank(c *gin.Context, in *patient.Input) {
	for _, name := range patient.FeatureNames {
		if v, ok := c.GetPostForm(name); ok && strings.TrimSpace(v) == "" {
			in.Clear(name)
		}
	}
}

func (h *handler) manual(c *gin.Context, in patient.Input) (prediction.Result, error) {
	rec, err := in.Record()
	if err != nil {
		return prediction.Result{}, err
	}
	return h.svc.Manual(c.Request.Context(), rec)
}

func (h *handler) lookupForm(c *gin.Context) {
	c.HTML(http.StatusOK, "lookup", h.newPage("lookup"))
}

func (h *handler) lookupSubmit(c *gin.Context) {
	p := h.newPage("lookup")
	p.PatientID = strings.TrimSpace(c.PostForm("patient_id"))

	if !p.ModelReady {
		c.HTML(http.StatusServiceUnavailable, "lookup", p)
		return
	}
	if p.PatientID == "" {
		p.Message = &message{Level: "warning", Text: msgEnterID}
		c.HTML(http.StatusBadRequest, "lookup", p)
		return
	}
	id, err := parseID(p.PatientID)
	if err != nil {
		p.Message = &message{Level: "warning", Text: msgBadID}
		c.HTML(http.StatusBadRequest, "lookup", p)
		return
	}

	res, err := h.svc.Lookup(c.Request.Context(), id)
	if err != nil {
		status, text := h.describe(c, err, id)
		p.Message = &message{Level: levelFor(status), Text: text}
		c.HTML(status, "lookup", p)
		return
	}

	p.Result = &res
	c.HTML(http.StatusOK, "lookup", p)
}

func (h *handler) apiPredict(c *gin.Context) {
	var in patient.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.manual(c, in)
	if err != nil {
		h.apiError(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) apiLookup(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadID})
		return
	}

	res, err := h.svc.Lookup(c.Request.Context(), id)
	if err != nil {
		h.apiError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) apiError(c *gin.Context, err error, id int64) {
	var verr *patient.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"details": verr.Fields,
		})
		return
	}

	status, text := h.describe(c, err, id)
	c.JSON(status, gin.H{"error": text})
}

// describe maps a service error to an HTTP status and the message shown to
// the user. Unexpected errors are logged.
func (h *handler) describe(c *gin.Context, err error, id int64) (int, string) {
	var verr *patient.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Error()
	case errors.Is(err, prediction.ErrModelUnavailable):
		return http.StatusServiceUnavailable, msgModelMissing
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("No data found for patient ID %d.", id)
	case errors.Is(err, store.ErrUnavailable):
		h.log.WithContext(c.Request.Context()).Warn("database unavailable", "error", err)
		return http.StatusServiceUnavailable, msgDBDown
	default:
		h.log.WithContext(c.Request.Context()).Error("prediction failed", "error", err, "patient_id", id)
		return http.StatusInternalServerError, fmt.Sprintf("An error occurred while processing: %v", err)
	}
}

func levelFor(status int) string {
	if status == http.StatusUnprocessableEntity {
		return "warning"
	}
	return "error"
}

// parseID accepts any integer; whether a row exists is the database's call.
func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
