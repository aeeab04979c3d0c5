package core

import (
	"math"
	"sort"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// Resolve maps a pointer position to the nearest sample of group.
// pointerX is mapped linearly over pixelRange onto the axis, rounded half away
// from zero and clamped to the axis. It returns nil when the axis is empty.
func Resolve(group []schema.Series, pointerX float64, pixelRange [2]float64) *schema.TooltipState {
	axis := AxisDates(group)
	if len(axis) == 0 {
		return nil
	}
	idx := pixelToIndex(pointerX, pixelRange, len(axis), math.Round)
	return &schema.TooltipState{Index: idx, Date: axis[idx]}
}

// ResolveByDate finds the sample of group closest to date.
// When two samples are equally close the earlier one wins.
func ResolveByDate(group []schema.Series, date time.Time) *schema.TooltipState {
	axis := AxisDates(group)
	if len(axis) == 0 {
		return nil
	}
	idx := nearestIndex(axis, date)
	return &schema.TooltipState{Index: idx, Date: axis[idx]}
}

func nearestIndex(axis []time.Time, date time.Time) int {
	i := sort.Search(len(axis), func(i int) bool { return !axis[i].Before(date) })
	switch {
	case i == 0:
		return 0
	case i == len(axis):
		return len(axis) - 1
	}
	before := date.Sub(axis[i-1])
	after := axis[i].Sub(date)
	if before <= after {
		return i - 1
	}
	return i
}

// TooltipInput carries what BuildTooltip reads besides the displayed group.
type TooltipInput struct {
	Analyses  []schema.Analysis
	Breakdown []schema.MeasureHistoryRecord
	Translate contract.Translator
	Format    contract.ValueFormatter
}

// BuildTooltip assembles the payload for state over group: the value of each
// series at the selected index, the events of analyses on that date and the
// breakdown metrics recorded on that date.
func BuildTooltip(group []schema.Series, state *schema.TooltipState, in TooltipInput) *schema.TooltipPayload {
	if state == nil || len(group) == 0 {
		return nil
	}
	if state.Index < 0 || state.Index >= len(group[0].Data) {
		return nil
	}
	translate := in.Translate
	if translate == nil {
		translate = contract.DefaultTranslator
	}
	format := in.Format
	if format == nil {
		format = contract.NewValueFormatter(contract.DefaultPrecision)
	}

	payload := &schema.TooltipPayload{
		Graph:  state.Graph,
		Index:  state.Index,
		Date:   state.Date,
		Values: make([]schema.TooltipValue, 0, len(group)),
	}
	for _, s := range group {
		payload.Values = append(payload.Values, tooltipValue(s.Name, s.TranslatedName, s.Data[state.Index].Y, format))
	}
	for _, a := range in.Analyses {
		if a.Date.Equal(state.Date) {
			payload.Events = append(payload.Events, a.Events...)
		}
	}
	for _, r := range in.Breakdown {
		payload.Breakdown = append(payload.Breakdown, tooltipValue(r.Metric, translate(r.Metric), valueAt(r, state.Date), format))
	}
	return payload
}

func tooltipValue(metric schema.MetricKey, name string, v *schema.MeasureValue, format contract.ValueFormatter) schema.TooltipValue {
	tv := schema.TooltipValue{Metric: metric, TranslatedName: name, Value: v}
	if v != nil {
		tv.Formatted = format(metric, *v)
	}
	return tv
}

// valueAt returns the value of r recorded exactly on date, or nil.
func valueAt(r schema.MeasureHistoryRecord, date time.Time) *schema.MeasureValue {
	i := sort.Search(len(r.Points), func(i int) bool { return !r.Points[i].Date.Before(date) })
	if i < len(r.Points) && r.Points[i].Date.Equal(date) {
		return r.Points[i].Value.Ptr()
	}
	return nil
}
