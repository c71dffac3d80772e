// Package tree implements the CART regression tree used both as the
// standalone decision-tree model and as the base learner of the random
// forest.
//
// Splits minimize the sum of squared deviations from the node mean. A
// split is accepted only when it reduces the root deviance by at least
// the complexity parameter cp, the classical cost-complexity pruning
// criterion; the standalone model runs with cp=0.01 and is fully
// deterministic given its training data. The forest instead runs many
// trees with cp=0, bootstrap rows and a random feature subset per split.
package tree

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/petroml/orfcast/core/model"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// Node is one node of the fitted tree.
type Node struct {
	IsLeaf    bool
	Feature   int     // Split feature (internal nodes)
	Threshold float64 // Split threshold (internal nodes)
	Left      *Node   // Values <= threshold
	Right     *Node   // Values > threshold
	Value     float64 // Mean target (prediction at leaves)
	SSE       float64 // Sum of squared deviations at this node
	NSamples  int
	Depth     int
}

// Regressor is a CART regression tree implementing model.Regressor.
type Regressor struct {
	state *model.StateManager

	// Hyperparameters
	cp              float64 // Complexity parameter for pruning
	minSamplesSplit int
	minSamplesLeaf  int
	maxLeafNodes    int // 0 = unlimited
	maxFeatures     int // Features tried per split, 0 = all
	seed            int64

	// Learned attributes
	root_               *Node
	nFeatures_          int
	featureImportances_ []float64
	nLeaves_            int
	rootSSE_            float64
}

// Option is a functional option for Regressor.
type Option func(*Regressor)

// WithCP sets the complexity parameter. A candidate split must reduce the
// root deviance by at least cp to be kept.
func WithCP(cp float64) Option {
	return func(t *Regressor) { t.cp = cp }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *Regressor) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in each child.
func WithMinSamplesLeaf(n int) Option {
	return func(t *Regressor) { t.minSamplesLeaf = n }
}

// WithMaxLeafNodes caps the number of leaves (0 = unlimited).
func WithMaxLeafNodes(n int) Option {
	return func(t *Regressor) { t.maxLeafNodes = n }
}

// WithMaxFeatures sets how many randomly chosen features are considered
// at each split (0 = all features, the deterministic CART behavior).
func WithMaxFeatures(n int) Option {
	return func(t *Regressor) { t.maxFeatures = n }
}

// WithRandomState seeds the feature subsampling.
func WithRandomState(seed int64) Option {
	return func(t *Regressor) { t.seed = seed }
}

// NewRegressor creates a regression tree with the reference defaults:
// cp 0.01, min split 2, min leaf 1, no leaf cap, all features per split.
func NewRegressor(opts ...Option) *Regressor {
	t := &Regressor{
		state:           model.NewStateManager(),
		cp:              0.01,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		seed:            1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements model.Regressor.
func (t *Regressor) Name() string { return "DecisionTree" }

// Fit grows the tree on (X, y).
//
// Errors:
//   - TrainingError: fewer than 2 rows
//   - DimensionError: sample counts of X and y differ
//   - ValueError: y is not a column vector
func (t *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer pkgerrors.Recover(&err, "DecisionTree.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if yCols != 1 {
		return pkgerrors.NewValueError("DecisionTree.Fit", "y must be a column vector")
	}
	if nSamples != yRows {
		return pkgerrors.NewDimensionError("DecisionTree.Fit", nSamples, yRows, 0)
	}
	if nSamples < 2 {
		return pkgerrors.NewTrainingError("DecisionTree", 2, nSamples)
	}

	t.nFeatures_ = nFeatures
	t.featureImportances_ = make([]float64, nFeatures)
	t.nLeaves_ = 1

	targets := make([]float64, nSamples)
	indices := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		targets[i] = y.At(i, 0)
		indices[i] = i
	}

	t.rootSSE_ = sse(targets, indices)

	rng := rand.New(rand.NewSource(t.seed))
	t.root_ = t.buildNode(X, targets, indices, 0, rng)

	t.normalizeImportances()
	t.state.SetFitted()
	t.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// buildNode recursively grows the tree from the rows in indices.
func (t *Regressor) buildNode(X mat.Matrix, y []float64, indices []int, depth int, rng *rand.Rand) *Node {
	node := &Node{
		Value:    mean(y, indices),
		SSE:      sse(y, indices),
		NSamples: len(indices),
		Depth:    depth,
	}

	if len(indices) < t.minSamplesSplit || node.SSE == 0 {
		node.IsLeaf = true
		return node
	}
	if t.maxLeafNodes > 0 && t.nLeaves_ >= t.maxLeafNodes {
		node.IsLeaf = true
		return node
	}

	feature, threshold, decrease := t.findBestSplit(X, y, indices, rng)

	// Cost-complexity criterion: the split must be worth cp of the root
	// deviance, otherwise the branch is pruned here.
	if feature == -1 || decrease < t.cp*t.rootSSE_ {
		node.IsLeaf = true
		return node
	}

	var left, right []int
	for _, i := range indices {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.minSamplesLeaf || len(right) < t.minSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	t.featureImportances_[feature] += decrease
	t.nLeaves_++ // one leaf becomes two

	node.Left = t.buildNode(X, y, left, depth+1, rng)
	node.Right = t.buildNode(X, y, right, depth+1, rng)
	return node
}

// findBestSplit searches candidate thresholds over the considered
// features and returns the split with the largest deviance decrease.
func (t *Regressor) findBestSplit(X mat.Matrix, y []float64, indices []int, rng *rand.Rand) (int, float64, float64) {
	parentSSE := sse(y, indices)

	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := 0.0

	for _, feature := range t.candidateFeatures(rng) {
		sorted := make([]int, len(indices))
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return X.At(sorted[a], feature) < X.At(sorted[b], feature)
		})

		// Running sums from the left let each threshold be scored in O(1).
		var leftSum, leftSumSq float64
		var totalSum, totalSumSq float64
		for _, i := range sorted {
			v := y[i]
			totalSum += v
			totalSumSq += v * v
		}

		n := len(sorted)
		for pos := 0; pos < n-1; pos++ {
			v := y[sorted[pos]]
			leftSum += v
			leftSumSq += v * v

			a := X.At(sorted[pos], feature)
			b := X.At(sorted[pos+1], feature)
			if a == b {
				continue
			}

			nLeft := pos + 1
			nRight := n - nLeft
			if nLeft < t.minSamplesLeaf || nRight < t.minSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSumSq := totalSumSq - leftSumSq

			leftSSE := leftSumSq - leftSum*leftSum/float64(nLeft)
			rightSSE := rightSumSq - rightSum*rightSum/float64(nRight)
			decrease := parentSSE - leftSSE - rightSSE

			if decrease > bestDecrease {
				bestDecrease = decrease
				bestFeature = feature
				bestThreshold = (a + b) / 2.0
			}
		}
	}

	return bestFeature, bestThreshold, bestDecrease
}

// candidateFeatures returns the features tried at one split: all of them
// in deterministic order, or a random subset when maxFeatures is set.
func (t *Regressor) candidateFeatures(rng *rand.Rand) []int {
	if t.maxFeatures <= 0 || t.maxFeatures >= t.nFeatures_ {
		all := make([]int, t.nFeatures_)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(t.nFeatures_)
	return perm[:t.maxFeatures]
}

// Predict implements model.Regressor.
//
// Errors:
//   - NotFittedError: Fit has not succeeded yet
//   - DimensionError: X has a different feature count than training
func (t *Regressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer pkgerrors.Recover(&err, "DecisionTree.Predict")

	if !t.state.IsFitted() {
		return nil, pkgerrors.NewNotFittedError("DecisionTree", "Predict")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != t.nFeatures_ {
		return nil, pkgerrors.NewDimensionError("DecisionTree.Predict", t.nFeatures_, nFeatures, 1)
	}

	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		node := t.root_
		for !node.IsLeaf {
			if X.At(i, node.Feature) <= node.Threshold {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		predictions.Set(i, 0, node.Value)
	}
	return predictions, nil
}

// FeatureImportances returns a copy of the normalized importance scores,
// nil before fitting.
func (t *Regressor) FeatureImportances() []float64 {
	if t.featureImportances_ == nil {
		return nil
	}
	out := make([]float64, len(t.featureImportances_))
	copy(out, t.featureImportances_)
	return out
}

// NumLeaves returns the number of leaves in the fitted tree.
func (t *Regressor) NumLeaves() int {
	if t.root_ == nil {
		return 0
	}
	return countLeaves(t.root_)
}

// IsFitted reports whether the model has been trained.
func (t *Regressor) IsFitted() bool { return t.state.IsFitted() }

func (t *Regressor) normalizeImportances() {
	var sum float64
	for _, imp := range t.featureImportances_ {
		sum += imp
	}
	if sum > 0 {
		for i := range t.featureImportances_ {
			t.featureImportances_[i] /= sum
		}
	}
}

func countLeaves(n *Node) int {
	if n == nil {
		return 0
	}
	if n.IsLeaf {
		return 1
	}
	return countLeaves(n.Left) + countLeaves(n.Right)
}

func mean(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

// sse returns the sum of squared deviations from the mean of the selected
// targets.
func sse(y []float64, indices []int) float64 {
	m := mean(y, indices)
	var out float64
	for _, i := range indices {
		d := y[i] - m
		out += d * d
	}
	return out
}
