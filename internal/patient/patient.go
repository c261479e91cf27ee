package patient

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NumFeatures is the width of the classifier input row.
const NumFeatures = 8

// FeatureNames is the column order the classifier was trained on.
var FeatureNames = [NumFeatures]string{
	"Pregnancies",
	"Glucose",
	"BloodPressure",
	"SkinThickness",
	"Insulin",
	"BMI",
	"DiabetesPedigreeFunction",
	"Age",
}

// Vector is one classifier input row, ordered as FeatureNames.
type Vector [NumFeatures]float64

// Record is the named form of a patient feature vector. It is built per
// request from form input or a database row and discarded after inference.
type Record struct {
	Pregnancies              float64 `json:"Pregnancies" form:"Pregnancies" validate:"gte=0,lte=20,integral"`
	Glucose                  float64 `json:"Glucose" form:"Glucose" validate:"gte=50,lte=200"`
	BloodPressure            float64 `json:"BloodPressure" form:"BloodPressure" validate:"gte=20,lte=130"`
	SkinThickness            float64 `json:"SkinThickness" form:"SkinThickness" validate:"gte=0,lte=100"`
	Insulin                  float64 `json:"Insulin" form:"Insulin" validate:"gte=0,lte=900"`
	BMI                      float64 `json:"BMI" form:"BMI" validate:"gte=15,lte=70"`
	DiabetesPedigreeFunction float64 `json:"DiabetesPedigreeFunction" form:"DiabetesPedigreeFunction" validate:"gte=0,lte=2.5"`
	Age                      float64 `json:"Age" form:"Age" validate:"gte=1,lte=120,integral"`
}

// Default returns the values the manual form starts with.
func Default() Record {
	return Record{
		Pregnancies:              1,
		Glucose:                  110,
		BloodPressure:            72,
		SkinThickness:            20,
		Insulin:                  79,
		BMI:                      32.0,
		DiabetesPedigreeFunction: 0.47,
		Age:                      33,
	}
}

func (r Record) Vector() Vector {
	return Vector{
		r.Pregnancies,
		r.Glucose,
		r.BloodPressure,
		r.SkinThickness,
		r.Insulin,
		r.BMI,
		r.DiabetesPedigreeFunction,
		r.Age,
	}
}

func FromVector(v Vector) Record {
	return Record{
		Pregnancies:              v[0],
		Glucose:                  v[1],
		BloodPressure:            v[2],
		SkinThickness:            v[3],
		Insulin:                  v[4],
		BMI:                      v[5],
		DiabetesPedigreeFunction: v[6],
		Age:                      v[7],
	}
}

type Field struct {
	Name  string
	Value float64
}

// Fields returns the record as ordered name/value pairs for display.
func (r Record) Fields() []Field {
	v := r.Vector()
	out := make([]Field, 0, NumFeatures)
	for i, name := range FeatureNames {
		out = append(out, Field{Name: name, Value: v[i]})
	}
	return out
}

// Input is a Record as submitted by a user. A nil field was not supplied
// and is never replaced by a default.
type Input struct {
	Pregnancies              *float64 `json:"Pregnancies" form:"Pregnancies" validate:"required"`
	Glucose                  *float64 `json:"Glucose" form:"Glucose" validate:"required"`
	BloodPressure            *float64 `json:"BloodPressure" form:"BloodPressure" validate:"required"`
	SkinThickness            *float64 `json:"SkinThickness" form:"SkinThickness" validate:"required"`
	Insulin                  *float64 `json:"Insulin" form:"Insulin" validate:"required"`
	BMI                      *float64 `json:"BMI" form:"BMI" validate:"required"`
	DiabetesPedigreeFunction *float64 `json:"DiabetesPedigreeFunction" form:"DiabetesPedigreeFunction" validate:"required"`
	Age                      *float64 `json:"Age" form:"Age" validate:"required"`
}

func (in *Input) slots() [NumFeatures]**float64 {
	return [NumFeatures]**float64{
		&in.Pregnancies,
		&in.Glucose,
		&in.BloodPressure,
		&in.SkinThickness,
		&in.Insulin,
		&in.BMI,
		&in.DiabetesPedigreeFunction,
		&in.Age,
	}
}

// Clear marks the named feature as not supplied.
func (in *Input) Clear(name string) {
	for i, n := range FeatureNames {
		if n == name {
			*in.slots()[i] = nil
			return
		}
	}
}

// Record returns the submitted values, or a ValidationError naming every
// feature that was not supplied. Ranges are checked by Record.Validate.
func (in Input) Record() (Record, error) {
	if err := validate.Struct(in); err != nil {
		return Record{}, toValidationError(err)
	}
	return in.Fill(Record{}), nil
}

// Fill returns def with every supplied feature replaced by its input value.
func (in Input) Fill(def Record) Record {
	v := def.Vector()
	for i, slot := range in.slots() {
		if *slot != nil {
			v[i] = **slot
		}
	}
	return FromVector(v)
}

// Bound describes the manual-entry range of one feature.
type Bound struct {
	Name  string
	Label string
	Min   float64
	Max   float64
	Step  float64
}

// Bounds lists the manual-entry ranges in feature order.
var Bounds = [NumFeatures]Bound{
	{Name: "Pregnancies", Label: "Number of pregnancies", Min: 0, Max: 20, Step: 1},
	{Name: "Glucose", Label: "Glucose level", Min: 50, Max: 200, Step: 1},
	{Name: "BloodPressure", Label: "Blood pressure", Min: 20, Max: 130, Step: 1},
	{Name: "SkinThickness", Label: "Skin thickness", Min: 0, Max: 100, Step: 1},
	{Name: "Insulin", Label: "Insulin level", Min: 0, Max: 900, Step: 1},
	{Name: "BMI", Label: "Body mass index", Min: 15, Max: 70, Step: 0.1},
	{Name: "DiabetesPedigreeFunction", Label: "Diabetes pedigree function", Min: 0, Max: 2.5, Step: 0.001},
	{Name: "Age", Label: "Age", Min: 1, Max: 120, Step: 1},
}

// ValidationError lists every field that is out of range.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid patient data: " + strings.Join(e.Fields, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f == math.Trunc(f)
	})
	if err != nil {
		panic(fmt.Sprintf("register integral validation: %v", err))
	}
	return v
}

// Validate checks the manual-entry ranges. Database rows are not validated.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	b, ok := boundFor(fe.Field())
	if !ok {
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", b.Name)
	case "integral":
		return fmt.Sprintf("%s must be a whole number", b.Name)
	}
	return fmt.Sprintf("%s must be between %g and %g", b.Name, b.Min, b.Max)
}

func boundFor(name string) (Bound, bool) {
	for _, b := range Bounds {
		if b.Name == name {
			return b, true
		}
	}
	return Bound{}, false
}
