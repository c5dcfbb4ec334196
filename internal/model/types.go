package model

import "fmt"

// Class is one of the four labels the classifier emits.
type Class string

const (
	CrimsonsweetRipe   Class = "crimsonsweet_ripe"
	CrimsonsweetUnripe Class = "crimsonsweet_unripe"
	OtherVariety       Class = "other_variety"
	NotValid           Class = "not_valid"
)

// NumClasses is the width of a ScoreVector.
const NumClasses = 4

// Classes is the canonical class order of a ScoreVector.
var Classes = [NumClasses]Class{CrimsonsweetRipe, CrimsonsweetUnripe, OtherVariety, NotValid}

// ScoreVector holds one raw score per class in canonical order. Scores are
// not renormalised and need not sum to 1.
type ScoreVector [NumClasses]float32

// Max returns the highest score and its class. Ties resolve to the class
// that comes first in canonical order.
func (s ScoreVector) Max() (Class, float32) {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if s[i] > s[best] {
			best = i
		}
	}
	return Classes[best], s[best]
}

// Breakdown maps every class label to its raw score.
func (s ScoreVector) Breakdown() map[Class]float64 {
	out := make(map[Class]float64, NumClasses)
	for i, c := range Classes {
		out[c] = float64(s[i])
	}
	return out
}

// ClassOrder maps positions of a model's raw output to canonical classes.
type ClassOrder [NumClasses]Class

// CanonicalOrder is the order the bundled model is exported with.
var CanonicalOrder = ClassOrder(Classes)

// ParseClassOrder checks that names is a permutation of the canonical labels.
func ParseClassOrder(names []string) (ClassOrder, error) {
	var order ClassOrder
	if len(names) != NumClasses {
		return order, fmt.Errorf("expected %d class names, got %d", NumClasses, len(names))
	}
	seen := make(map[Class]bool, NumClasses)
	for i, name := range names {
		c := Class(name)
		if canonicalIndex(c) < 0 {
			return order, fmt.Errorf("unknown class %q", name)
		}
		if seen[c] {
			return order, fmt.Errorf("duplicate class %q", name)
		}
		seen[c] = true
		order[i] = c
	}
	return order, nil
}

// Strings returns the labels in output order.
func (o ClassOrder) Strings() []string {
	out := make([]string, NumClasses)
	for i, c := range o {
		out[i] = string(c)
	}
	return out
}

// Remap reorders a raw output row into a canonical ScoreVector.
func (o ClassOrder) Remap(raw []float32) ScoreVector {
	var s ScoreVector
	for i, c := range o {
		s[canonicalIndex(c)] = raw[i]
	}
	return s
}

func canonicalIndex(c Class) int {
	for i, k := range Classes {
		if k == c {
			return i
		}
	}
	return -1
}
