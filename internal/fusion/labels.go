package fusion

import "github.com/Brownie44l1/meloscan/internal/model"

type Variety string

const (
	VarietyCrimsonsweet Variety = "crimsonsweet"
	VarietyOther        Variety = "other"
	VarietyUnknown      Variety = "unknown"
)

type Ripeness string

const (
	RipenessRipe    Ripeness = "ripe"
	RipenessUnripe  Ripeness = "unripe"
	RipenessUnknown Ripeness = "unknown"
)

// Labels are the user-facing fields derived from a class.
type Labels struct {
	Variety        Variety
	Ripeness       Ripeness
	IsValid        bool
	IsCrimsonsweet bool
}

var labelTable = map[model.Class]struct {
	variety  Variety
	ripeness Ripeness
}{
	model.CrimsonsweetRipe:   {VarietyCrimsonsweet, RipenessRipe},
	model.CrimsonsweetUnripe: {VarietyCrimsonsweet, RipenessUnripe},
	model.OtherVariety:       {VarietyOther, RipenessUnknown},
	model.NotValid:           {VarietyUnknown, RipenessUnknown},
}

// Decompose maps a class to its labels. Classes outside the table are
// treated as not_valid.
func Decompose(c model.Class) Labels {
	entry, ok := labelTable[c]
	if !ok {
		entry = labelTable[model.NotValid]
		c = model.NotValid
	}
	return Labels{
		Variety:        entry.variety,
		Ripeness:       entry.ripeness,
		IsValid:        c != model.NotValid,
		IsCrimsonsweet: entry.variety == VarietyCrimsonsweet,
	}
}
