// Package health holds the health-survey record the classifiers consume and the
// mapping from raw form or JSON values onto it.
package health

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"skincheck/internal/errors"
)

// Field names in canonical column order.
const (
	FieldHeartDisease     = "HeartDisease"
	FieldBMI              = "BMI"
	FieldSmoking          = "Smoking"
	FieldAlcoholDrinking  = "AlcoholDrinking"
	FieldStroke           = "Stroke"
	FieldPhysicalHealth   = "PhysicalHealth"
	FieldMentalHealth     = "MentalHealth"
	FieldDiffWalking      = "DiffWalking"
	FieldSex              = "Sex"
	FieldAgeCategory      = "AgeCategory"
	FieldRace             = "Race"
	FieldDiabetic         = "Diabetic"
	FieldPhysicalActivity = "PhysicalActivity"
	FieldGenHealth        = "GenHealth"
	FieldSleepTime        = "SleepTime"
	FieldAsthma           = "Asthma"
	FieldKidneyDisease    = "KidneyDisease"

	// TargetField is the dataset label column.
	TargetField = "SkinCancer"
)

// Kind classifies how a field is encoded.
type Kind string

const (
	KindBinary      Kind = "binary"
	KindCategorical Kind = "categorical"
	KindNumeric     Kind = "numeric"
)

// FieldSpec describes one record field.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Default string
	Min     float64
	Max     float64
	// MinExclusive makes Min an open bound.
	MinExclusive bool
	Options      []string
}

var (
	yesNo      = []string{"No", "Yes"}
	sexes      = []string{"Female", "Male"}
	ageBuckets = []string{
		"18-24", "25-29", "30-34", "35-39", "40-44", "45-49", "50-54",
		"55-59", "60-64", "65-69", "70-74", "75-79", "80 or older",
	}
	races      = []string{"American Indian/Alaskan Native", "Asian", "Black", "Hispanic", "Other", "White"}
	diabetic   = []string{"No", "No, borderline diabetes", "Yes", "Yes (during pregnancy)"}
	genHealths = []string{"Excellent", "Very good", "Good", "Fair", "Poor"}
)

// Fields lists every input field in canonical order.
var Fields = []FieldSpec{
	{Name: FieldHeartDisease, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldBMI, Kind: KindNumeric, Default: "25.0", Min: 0, Max: 200, MinExclusive: true},
	{Name: FieldSmoking, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldAlcoholDrinking, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldStroke, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldPhysicalHealth, Kind: KindNumeric, Default: "0.0", Min: 0, Max: 30},
	{Name: FieldMentalHealth, Kind: KindNumeric, Default: "0.0", Min: 0, Max: 30},
	{Name: FieldDiffWalking, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldSex, Kind: KindCategorical, Default: "Male", Options: sexes},
	{Name: FieldAgeCategory, Kind: KindCategorical, Default: "18-24", Options: ageBuckets},
	{Name: FieldRace, Kind: KindCategorical, Default: "White", Options: races},
	{Name: FieldDiabetic, Kind: KindCategorical, Default: "No", Options: diabetic},
	{Name: FieldPhysicalActivity, Kind: KindBinary, Default: "Yes", Options: yesNo},
	{Name: FieldGenHealth, Kind: KindCategorical, Default: "Fair", Options: genHealths},
	{Name: FieldSleepTime, Kind: KindNumeric, Default: "7.0", Min: 0, Max: 24},
	{Name: FieldAsthma, Kind: KindBinary, Default: "No", Options: yesNo},
	{Name: FieldKidneyDisease, Kind: KindBinary, Default: "No", Options: yesNo},
}

var fieldIndex = func() map[string]int {
	idx := make(map[string]int, len(Fields))
	for i, f := range Fields {
		idx[f.Name] = i
	}
	return idx
}()

// FieldNames returns the canonical field order.
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// Spec looks up a field by name.
func Spec(name string) (FieldSpec, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return FieldSpec{}, false
	}
	return Fields[i], true
}

// Record is one health-survey row. Values are held in canonical field order;
// numeric fields carry their parsed value in Numbers.
type Record struct {
	Values  [17]string
	Numbers [17]float64
}

// Get returns the raw string value of a field.
func (r Record) Get(name string) string {
	if i, ok := fieldIndex[name]; ok {
		return r.Values[i]
	}
	return ""
}

// Number returns the parsed value of a numeric field.
func (r Record) Number(name string) float64 {
	if i, ok := fieldIndex[name]; ok {
		return r.Numbers[i]
	}
	return 0
}

// With returns a copy of the record with field i taken from other.
func (r Record) With(i int, other Record) Record {
	r.Values[i] = other.Values[i]
	r.Numbers[i] = other.Numbers[i]
	return r
}

// Map renders the record as an ordered-by-name map, numerics as float64.
func (r Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(Fields))
	for i, f := range Fields {
		if f.Kind == KindNumeric {
			out[f.Name] = r.Numbers[i]
		} else {
			out[f.Name] = r.Values[i]
		}
	}
	return out
}

// Pairs returns field/value pairs in canonical order, numerics formatted with one decimal.
func (r Record) Pairs() [][2]string {
	pairs := make([][2]string, len(Fields))
	for i, f := range Fields {
		value := r.Values[i]
		if f.Kind == KindNumeric {
			value = strconv.FormatFloat(r.Numbers[i], 'f', 1, 64)
		}
		pairs[i] = [2]string{f.Name, value}
	}
	return pairs
}

// Source supplies raw values by field name, e.g. url.Values or a decoded JSON body.
type Source interface {
	Lookup(name string) (string, bool)
}

// MapSource adapts a string map.
type MapSource map[string]string

func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// AnySource adapts a decoded JSON object, formatting non-string values.
type AnySource map[string]interface{}

func (m AnySource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		if t {
			return "Yes", true
		}
		return "No", true
	default:
		return fmt.Sprint(t), true
	}
}

// Parse builds a record, filling absent or empty fields with their defaults.
// A present numeric value that does not parse, or that falls outside the field
// range, is a validation error.
func Parse(src Source) (Record, error) {
	var rec Record
	for i, f := range Fields {
		raw, ok := src.Lookup(f.Name)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			raw = f.Default
		}
		rec.Values[i] = raw
		if f.Kind != KindNumeric {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, errors.ValidationError(fmt.Sprintf("could not convert %s value %q to float", f.Name, raw))
		}
		if err := checkRange(f, n); err != nil {
			return Record{}, err
		}
		rec.Numbers[i] = n
	}
	return rec, nil
}

// MustParse is Parse for fixtures and defaults; it panics on invalid input.
func MustParse(values map[string]string) Record {
	rec, err := Parse(MapSource(values))
	if err != nil {
		panic(err)
	}
	return rec
}

// Default returns the record made entirely of default values.
func Default() Record {
	return MustParse(nil)
}

func checkRange(f FieldSpec, n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return errors.ValidationError(fmt.Sprintf("%s must be a finite number", f.Name))
	}
	low := n < f.Min
	if f.MinExclusive {
		low = n <= f.Min
	}
	if low || n > f.Max {
		return errors.ValidationError(fmt.Sprintf("%s must be between %g and %g", f.Name, f.Min, f.Max))
	}
	return nil
}

// IsYes is the binary transform: "Yes" maps to 1, anything else to 0.
func IsYes(value string) bool {
	return value == "Yes"
}

// Binary returns 1 for "Yes" and 0 otherwise.
func Binary(value string) float64 {
	if IsYes(value) {
		return 1
	}
	return 0
}

// IsPositiveLabel accepts the label spellings found in the dataset.
func IsPositiveLabel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes", "true":
		return true
	}
	return false
}

// ValuesSource adapts url.Values, e.g. a parsed form body.
type ValuesSource url.Values

func (v ValuesSource) Lookup(name string) (string, bool) {
	values, ok := v[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
