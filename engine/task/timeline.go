package task

import (
	"fmt"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/shopspring/decimal"
)

// TimelineUnit is the unit a timeline value is expressed in.
type TimelineUnit string

const (
	UnitDay  TimelineUnit = "DAY"
	UnitWeek TimelineUnit = "WEEK"
)

func (u TimelineUnit) Valid() bool {
	return u == UnitDay || u == UnitWeek
}

// Timeline is a task duration. DAY values are plain day counts. WEEK values
// are packed decimals of the form weeks + days/10, where the single
// fractional digit is a day count in 0..6. The packing is a storage
// compaction, not a unit conversion: 1.6 WEEK means one week and six days.
type Timeline struct {
	Value decimal.Decimal `json:"value"`
	Unit  TimelineUnit    `json:"unit"`
}

var ten = decimal.NewFromInt(10)

// NewTimeline validates and returns a timeline.
func NewTimeline(value decimal.Decimal, unit TimelineUnit) (Timeline, error) {
	if !unit.Valid() {
		return Timeline{}, constant.ErrTimelineUnit
	}

	if !value.IsPositive() {
		return Timeline{}, constant.ErrInvalidInput
	}

	if unit == UnitDay && !value.Equal(value.Truncate(0)) {
		return Timeline{}, constant.ErrInvalidInput
	}

	if unit == UnitWeek {
		if _, days, ok := unpackWeeks(value); !ok || days > 6 {
			return Timeline{}, constant.ErrInvalidInput
		}
	}

	return Timeline{Value: value, Unit: unit}, nil
}

// Extend adds delta in deltaUnit to the timeline and folds the result.
// The fold rules are exhaustive over (current unit, delta unit):
//
//	DAY  + DAY:  day counts add; totals above six days fold into packed
//	             WEEK form (weeks + remaining days / 10).
//	WEEK + WEEK: both packed values split into week and day components,
//	             the components add, and day sums above six carry into
//	             weeks before re-packing.
//	WEEK + DAY:  the packed base is unpacked, the delta days are added,
//	             and overflow days carry into weeks before re-packing.
//	DAY  + WEEK: the base day count folds into week and day components
//	             added to the delta's, with the same carry.
//
// A WEEK delta must itself be a valid packed value; NewTimeline's day
// fraction rule applies to it unchanged.
func (t Timeline) Extend(delta decimal.Decimal, deltaUnit TimelineUnit) (Timeline, error) {
	if !deltaUnit.Valid() {
		return Timeline{}, constant.ErrTimelineUnit
	}

	if !delta.IsPositive() {
		return Timeline{}, constant.ErrInvalidInput
	}

	if deltaUnit == UnitDay && !delta.Equal(delta.Truncate(0)) {
		return Timeline{}, constant.ErrInvalidInput
	}

	if deltaUnit == UnitWeek {
		if _, days, ok := unpackWeeks(delta); !ok || days > 6 {
			return Timeline{}, constant.ErrInvalidInput
		}
	}

	if t.Unit == UnitDay && deltaUnit == UnitDay {
		return foldDays(t.Value.IntPart() + delta.IntPart()), nil
	}

	baseWeeks, baseDays, err := components(t.Value, t.Unit)
	if err != nil {
		return Timeline{}, err
	}

	deltaWeeks, deltaDays, err := components(delta, deltaUnit)
	if err != nil {
		return Timeline{}, err
	}

	weeks := baseWeeks + deltaWeeks
	days := baseDays + deltaDays
	weeks += days / 7
	days %= 7

	return Timeline{Value: packWeeks(weeks, days), Unit: UnitWeek}, nil
}

// components splits a timeline value into whole weeks and leftover days.
func components(value decimal.Decimal, unit TimelineUnit) (weeks, days int64, err error) {
	if unit == UnitDay {
		total := value.IntPart()

		return total / 7, total % 7, nil
	}

	weeks, days, ok := unpackWeeks(value)
	if !ok {
		return 0, 0, fmt.Errorf("malformed packed timeline value %s", value)
	}

	return weeks, days, nil
}

// foldDays compacts a plain day count: totals above six days become packed
// WEEK form, smaller totals stay in DAY.
func foldDays(total int64) Timeline {
	if total > 6 {
		return Timeline{Value: packWeeks(total/7, total%7), Unit: UnitWeek}
	}

	return Timeline{Value: decimal.NewFromInt(total), Unit: UnitDay}
}

// packWeeks builds the packed decimal weeks + days/10.
func packWeeks(weeks, days int64) decimal.Decimal {
	return decimal.New(weeks*10+days, -1)
}

// unpackWeeks splits a packed decimal into week and day components. It
// reports false when the value carries more than one fractional digit.
func unpackWeeks(value decimal.Decimal) (weeks, days int64, ok bool) {
	tenths := value.Mul(ten)
	if !tenths.Equal(tenths.Truncate(0)) {
		return 0, 0, false
	}

	whole := tenths.IntPart()

	return whole / 10, whole % 10, true
}
