package model

import "sort"

// Metrics are measured on the training set right after a fit.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	AUC      float64 `json:"auc"`
}

func accuracy(scores []float64, y []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	correct := 0
	for i, s := range scores {
		predicted := 0
		if s > 0.5 {
			predicted = 1
		}
		if predicted == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(scores))
}

// rocAUC computes the area under the ROC curve with the rank-sum statistic.
// Tied scores share their average rank. Both classes must be present.
func rocAUC(scores []float64, y []int) float64 {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})

	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, label := range y {
		if label == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
