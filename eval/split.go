// Package eval provides the split and evaluation harness: the seeded
// stratified train/test partition every model shares, and the k-fold
// cross-validation loop used by the cross-validated models.
//
// Determinism is a contract here: the same seed and the same input frame
// produce bit-identical partitions on every run. The seed is always an
// explicit parameter, never ambient process state.
package eval

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/petroml/orfcast/dataset"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
)

// Partition is the disjoint train/test split of the modeling frame.
// TrainIdx and TestIdx index into the original frame and together cover
// every row exactly once.
type Partition struct {
	Train    *dataset.Frame
	Test     *dataset.Frame
	TrainIdx []int
	TestIdx  []int
}

// TrainTestSplit partitions the frame into train and test subsets using
// seeded stratified sampling on the target's distribution. Rows are
// ordered by target value, grouped into quantile bins, and sampled within
// each bin, so both partitions span the target's range instead of being
// cut arbitrarily.
//
// ratio is the train fraction and must lie in (0, 1). Both partitions are
// guaranteed non-empty whenever the frame has at least two rows.
//
// Errors:
//   - ValueError: empty frame or ratio outside (0, 1)
//   - SchemaError: target column absent
func TrainTestSplit(f *dataset.Frame, target string, ratio float64, seed int64) (*Partition, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("eval").With(log.ComponentKey, "split")

	n := f.NumRows()
	if n == 0 {
		return nil, pkgerrors.NewValueError("TrainTestSplit", "empty frame")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, pkgerrors.NewValueError("TrainTestSplit", "ratio must be in (0, 1)")
	}
	y := f.Column(target)
	if y == nil {
		return nil, pkgerrors.NewSchemaError("TrainTestSplit", target)
	}

	// Order rows by target value, then cut the ordered list into
	// contiguous quantile bins. Sampling the train fraction inside each
	// bin is what stratifies the split.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return y[order[a]] < y[order[b]] })

	bins := quantileBins(n)
	rng := rand.New(rand.NewSource(seed))

	var trainIdx, testIdx []int
	for b := 0; b < bins; b++ {
		lo := b * n / bins
		hi := (b + 1) * n / bins
		bin := make([]int, hi-lo)
		copy(bin, order[lo:hi])

		rng.Shuffle(len(bin), func(i, j int) { bin[i], bin[j] = bin[j], bin[i] })

		take := int(math.Round(ratio * float64(len(bin))))
		if take > len(bin) {
			take = len(bin)
		}
		trainIdx = append(trainIdx, bin[:take]...)
		testIdx = append(testIdx, bin[take:]...)
	}

	// Rounding can empty one side on small frames; rebalance so both
	// partitions are populated whenever n >= 2.
	if len(testIdx) == 0 && len(trainIdx) > 1 {
		last := len(trainIdx) - 1
		testIdx = append(testIdx, trainIdx[last])
		trainIdx = trainIdx[:last]
	}
	if len(trainIdx) == 0 && len(testIdx) > 1 {
		last := len(testIdx) - 1
		trainIdx = append(trainIdx, testIdx[last])
		testIdx = testIdx[:last]
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	p := &Partition{
		Train:    subsetFrame(f, trainIdx),
		Test:     subsetFrame(f, testIdx),
		TrainIdx: trainIdx,
		TestIdx:  testIdx,
	}

	logger.Info("Split completed",
		log.OperationKey, log.OperationSplit,
		log.SeedKey, seed,
		"train_rows", len(trainIdx),
		"test_rows", len(testIdx),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return p, nil
}

// quantileBins picks the stratification granularity for n rows. Small
// frames get fewer bins so each bin still contributes rows to both
// partitions.
func quantileBins(n int) int {
	switch {
	case n >= 25:
		return 5
	case n >= 10:
		return 2
	default:
		return 1
	}
}

func subsetFrame(f *dataset.Frame, idx []int) *dataset.Frame {
	member := make(map[int]bool, len(idx))
	for _, i := range idx {
		member[i] = true
	}
	return f.FilterRows(func(i int) bool { return member[i] })
}
