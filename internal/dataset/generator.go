package dataset

import (
	"math"
	"math/rand"
	"strconv"

	"skincheck/domain/health"
)

// GeneratorConfig configures the synthetic survey generator
type GeneratorConfig struct {
	Rows int   `json:"rows"`
	Seed int64 `json:"seed"`
	// BaseRate is the approximate share of positive labels.
	BaseRate float64 `json:"base_rate"`
}

// DefaultGeneratorConfig returns sensible defaults for synthetic data generation
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Rows:     2000,
		Seed:     42,
		BaseRate: 0.09,
	}
}

// Generator produces survey rows whose label depends on age, race, general
// health and a few comorbidities, roughly like the public survey data.
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a seeded generator
func NewGenerator(config GeneratorConfig) *Generator {
	if config.Rows <= 0 {
		config.Rows = DefaultGeneratorConfig().Rows
	}
	if config.BaseRate <= 0 || config.BaseRate >= 1 {
		config.BaseRate = DefaultGeneratorConfig().BaseRate
	}
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the full synthetic dataset
func (g *Generator) Generate() *Dataset {
	ds := &Dataset{
		Records:   make([]health.Record, g.config.Rows),
		Labels:    make([]bool, g.config.Rows),
		Synthetic: true,
		Source:    "synthetic",
	}
	for i := range ds.Records {
		rec, logit := g.row()
		ds.Records[i] = rec
		ds.Labels[i] = g.rng.Float64() < sigmoid(logit)
	}
	return ds
}

func (g *Generator) row() (health.Record, float64) {
	ageIdx := g.rng.Intn(13)
	ages := mustOptions(health.FieldAgeCategory)
	age := float64(ageIdx) / 12

	smoker := g.bernoulli(0.3 + 0.1*age)
	alcohol := g.bernoulli(0.07)
	heart := g.bernoulli(0.02 + 0.15*age)
	stroke := g.bernoulli(0.01 + 0.06*age)
	kidney := g.bernoulli(0.01 + 0.06*age)
	asthma := g.bernoulli(0.13)
	active := g.bernoulli(0.8 - 0.2*age)

	bmi := clamp(g.rng.NormFloat64()*6+28, 12, 90)
	sleep := math.Round(clamp(g.rng.NormFloat64()*1.4+7, 1, 24))
	physical := g.days(0.2 + 0.2*age)
	mental := g.days(0.3)
	diffWalk := g.bernoulli(0.05 + 0.25*age + 0.01*physical)

	genIdx := g.pick([]float64{0.2, 0.35, 0.3, 0.11, 0.04})
	if heart == "Yes" || kidney == "Yes" {
		genIdx = min(genIdx+1, 4)
	}

	values := map[string]string{
		health.FieldHeartDisease:     heart,
		health.FieldBMI:              strconv.FormatFloat(math.Round(bmi*100)/100, 'f', -1, 64),
		health.FieldSmoking:          smoker,
		health.FieldAlcoholDrinking:  alcohol,
		health.FieldStroke:           stroke,
		health.FieldPhysicalHealth:   strconv.FormatFloat(physical, 'f', -1, 64),
		health.FieldMentalHealth:     strconv.FormatFloat(mental, 'f', -1, 64),
		health.FieldDiffWalking:      diffWalk,
		health.FieldSex:              mustOptions(health.FieldSex)[g.rng.Intn(2)],
		health.FieldAgeCategory:      ages[ageIdx],
		health.FieldRace:             mustOptions(health.FieldRace)[g.pick([]float64{0.02, 0.03, 0.07, 0.09, 0.03, 0.76})],
		health.FieldDiabetic:         mustOptions(health.FieldDiabetic)[g.pick([]float64{0.84, 0.02, 0.13, 0.01})],
		health.FieldPhysicalActivity: active,
		health.FieldGenHealth:        mustOptions(health.FieldGenHealth)[genIdx],
		health.FieldSleepTime:        strconv.FormatFloat(sleep, 'f', -1, 64),
		health.FieldAsthma:           asthma,
		health.FieldKidneyDisease:    kidney,
	}
	rec := health.MustParse(values)

	logit := math.Log(g.config.BaseRate/(1-g.config.BaseRate)) - 1.2
	logit += 2.4 * age
	if rec.Get(health.FieldRace) == "White" {
		logit += 0.9
	}
	if rec.Get(health.FieldSex) == "Male" {
		logit += 0.15
	}
	logit += 0.35 * health.Binary(kidney)
	logit += 0.25 * health.Binary(heart)
	logit += 0.2 * health.Binary(smoker)
	logit += 0.1 * float64(genIdx-2)
	return rec, logit
}

func (g *Generator) bernoulli(p float64) string {
	if g.rng.Float64() < p {
		return "Yes"
	}
	return "No"
}

// days draws a 0-30 day count that is zero with probability 1-p.
func (g *Generator) days(p float64) float64 {
	if g.rng.Float64() >= p {
		return 0
	}
	return float64(1 + g.rng.Intn(30))
}

func (g *Generator) pick(weights []float64) int {
	r := g.rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(weights) - 1
}

func mustOptions(field string) []string {
	spec, ok := health.Spec(field)
	if !ok {
		panic("unknown field " + field)
	}
	return spec.Options
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
