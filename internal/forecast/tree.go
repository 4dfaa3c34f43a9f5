package forecast

import (
	"sort"
)

const minLeafSize = 2

// treeNode is one node of a regression tree. Leaves carry the mean label of
// the rows that reached them.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// regressionTree greedily splits on the variance-reducing feature threshold
// until maxDepth or the leaves run out of rows. Splits consider a fixed
// candidate feature subset when features is non-nil, which is how the forest
// decorrelates its trees.
type regressionTree struct {
	maxDepth int
	features []int
	root     *treeNode

	// split gains accumulated during training, by feature.
	gains []float64
}

func (t *regressionTree) fit(rows [][]float64, labels []float64) {
	t.gains = make([]float64, len(rows[0]))
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(rows, labels, idx, 0)
}

func (t *regressionTree) grow(rows [][]float64, labels []float64, idx []int, depth int) *treeNode {
	if depth >= t.maxDepth || len(idx) < 2*minLeafSize {
		return &treeNode{leaf: true, value: meanAt(labels, idx)}
	}

	feature, threshold, gain, ok := t.bestSplit(rows, labels, idx)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(labels, idx)}
	}
	t.gains[feature] += gain

	var left, right []int
	for _, i := range idx {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.grow(rows, labels, left, depth+1),
		right:     t.grow(rows, labels, right, depth+1),
	}
}

func (t *regressionTree) bestSplit(rows [][]float64, labels []float64, idx []int) (feature int, threshold, gain float64, ok bool) {
	parentSSE := sseAt(labels, idx)

	candidates := t.features
	if candidates == nil {
		candidates = make([]int, len(rows[0]))
		for j := range candidates {
			candidates[j] = j
		}
	}

	order := make([]int, len(idx))
	bestGain := 0.0
	for _, j := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return rows[order[a]][j] < rows[order[b]][j]
		})

		// Running sums let each threshold be scored in O(1).
		var leftSum, leftSq float64
		rightSum, rightSq := sumsAt(labels, order)

		for k := 0; k < len(order)-1; k++ {
			y := labels[order[k]]
			leftSum += y
			leftSq += y * y
			rightSum -= y
			rightSq -= y * y

			if rows[order[k]][j] == rows[order[k+1]][j] {
				continue
			}
			nl, nr := k+1, len(order)-k-1
			if nl < minLeafSize || nr < minLeafSize {
				continue
			}

			childSSE := (leftSq - leftSum*leftSum/float64(nl)) +
				(rightSq - rightSum*rightSum/float64(nr))
			if g := parentSSE - childSSE; g > bestGain {
				bestGain = g
				feature = j
				threshold = (rows[order[k]][j] + rows[order[k+1]][j]) / 2
				ok = true
			}
		}
	}

	return feature, threshold, bestGain, ok
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	for !node.leaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanAt(labels []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += labels[i]
	}
	return sum / float64(len(idx))
}

func sseAt(labels []float64, idx []int) float64 {
	mean := meanAt(labels, idx)
	var sse float64
	for _, i := range idx {
		d := labels[i] - mean
		sse += d * d
	}
	return sse
}

func sumsAt(labels []float64, idx []int) (sum, sq float64) {
	for _, i := range idx {
		y := labels[i]
		sum += y
		sq += y * y
	}
	return sum, sq
}

func normalized(gains []float64) []float64 {
	var total float64
	for _, g := range gains {
		total += g
	}
	if total == 0 {
		return gains
	}
	out := make([]float64, len(gains))
	for j, g := range gains {
		out[j] = g / total
	}
	return out
}
