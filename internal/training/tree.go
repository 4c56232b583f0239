package training

import (
	"math"
	"math/rand"
	"sort"

	"skincheck/domain/pipeline"
)

// treeBuilder grows CART regression trees by squared-error reduction. With
// 0/1 targets this is the Gini criterion.
type treeBuilder struct {
	x        [][]float64
	target   []float64
	maxDepth int
	minLeaf  int
	// features is the number of columns tried per split; 0 tries all.
	features int
	rng      *rand.Rand
	leaf     func(idx []int) float64
}

func (b *treeBuilder) build(idx []int) pipeline.Tree {
	var nodes []pipeline.Node
	b.grow(&nodes, idx, 0)
	return pipeline.Tree{Nodes: nodes}
}

// grow appends the subtree rooted at idx in pre-order, so children always
// follow their parent.
func (b *treeBuilder) grow(nodes *[]pipeline.Node, idx []int, depth int) int {
	at := len(*nodes)
	*nodes = append(*nodes, pipeline.Node{Feature: -1, Value: b.leaf(idx)})
	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return at
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return at
	}
	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(nodes, left, depth+1)
	r := b.grow(nodes, right, depth+1)
	(*nodes)[at] = pipeline.Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return at
}

type point struct {
	v, y float64
}

func (b *treeBuilder) candidates() []int {
	width := len(b.x[0])
	if b.features <= 0 || b.features >= width {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(width)[:b.features]
}

func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	var total, totalSq float64
	for _, i := range idx {
		total += b.target[i]
		totalSq += b.target[i] * b.target[i]
	}
	n := float64(len(idx))
	parent := totalSq - total*total/n

	bestGain, bestFeature, bestThreshold := 1e-12, -1, 0.0
	pts := make([]point, len(idx))
	for _, f := range b.candidates() {
		for k, i := range idx {
			pts[k] = point{b.x[i][f], b.target[i]}
		}
		sort.Slice(pts, func(a, c int) bool { return pts[a].v < pts[c].v })

		var sum, sumSq float64
		for k := 0; k < len(pts)-1; k++ {
			sum += pts[k].y
			sumSq += pts[k].y * pts[k].y
			nl := float64(k + 1)
			if k+1 < b.minLeaf || len(pts)-k-1 < b.minLeaf || pts[k].v == pts[k+1].v {
				continue
			}
			nr := n - nl
			left := sumSq - sum*sum/nl
			rs := total - sum
			right := (totalSq - sumSq) - rs*rs/nr
			if gain := parent - left - right; gain > bestGain {
				bestGain, bestFeature = gain, f
				bestThreshold = (pts[k].v + pts[k+1].v) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func meanOf(values []float64) func(idx []int) float64 {
	return func(idx []int) float64 {
		if len(idx) == 0 {
			return 0
		}
		s := 0.0
		for _, i := range idx {
			s += values[i]
		}
		return s / float64(len(idx))
	}
}

// fitForest bags trees over bootstrap samples with sqrt(width) columns per split.
func (t *Trainer) fitForest(x [][]float64, y []float64, rng *rand.Rand) (*pipeline.Artifact, error) {
	b := &treeBuilder{
		x:        x,
		target:   y,
		maxDepth: t.config.MaxDepth,
		minLeaf:  t.config.MinLeaf,
		features: int(math.Sqrt(float64(len(x[0])))),
		rng:      rng,
		leaf:     meanOf(y),
	}
	params := &pipeline.ForestParams{}
	for k := 0; k < t.config.Trees; k++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		params.Trees = append(params.Trees, b.build(sample))
	}
	return &pipeline.Artifact{Forest: params}, nil
}

// fitBoosting fits shallow trees to the log-loss gradient with Newton leaf steps.
func (t *Trainer) fitBoosting(x [][]float64, y []float64, rng *rand.Rand) (*pipeline.Artifact, error) {
	rate := meanOf(y)(allRows(len(y)))
	rate = math.Min(math.Max(rate, 1e-6), 1-1e-6)
	init := math.Log(rate / (1 - rate))

	scores := make([]float64, len(x))
	for i := range scores {
		scores[i] = init
	}
	residual := make([]float64, len(x))
	hessian := make([]float64, len(x))
	b := &treeBuilder{
		x:        x,
		target:   residual,
		maxDepth: 3,
		minLeaf:  t.config.MinLeaf,
		rng:      rng,
		leaf: func(idx []int) float64 {
			var num, den float64
			for _, i := range idx {
				num += residual[i]
				den += hessian[i]
			}
			if den < 1e-12 {
				return 0
			}
			return num / den
		},
	}

	params := &pipeline.BoostingParams{Init: init, LearningRate: t.config.BoostLearning}
	rows := allRows(len(x))
	for round := 0; round < t.config.BoostRounds; round++ {
		for i := range x {
			p := pipeline.Sigmoid(scores[i])
			residual[i] = y[i] - p
			hessian[i] = p * (1 - p)
		}
		tree := b.build(rows)
		for i, row := range x {
			scores[i] += params.LearningRate * tree.Eval(row)
		}
		params.Trees = append(params.Trees, tree)
	}
	return &pipeline.Artifact{Boosting: params}, nil
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
