package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// LoadResult is what a fetch for one project branch produced.
type LoadResult struct {
	Analyses  []schema.Analysis
	Histories []schema.MeasureHistoryRecord
	Dropped   []schema.MetricKey
}

// ComposerOptions configures a Composer. Zero values fall back to defaults.
type ComposerOptions struct {
	Translate        contract.Translator
	Format           contract.ValueFormatter
	MaxCustomMetrics int
	PixelRange       [2]float64
}

// Composer owns the displayed graph of one project branch: the graph spec,
// the date window and the tooltip. It is not safe for concurrent use.
//
// A composer is idle until a load completes and a spec is chosen. While a load
// is outstanding it stays idle and ignores pointer and window input.
type Composer struct {
	store      *AnalysisHistoryStore
	translate  contract.Translator
	format     contract.ValueFormatter
	maxCustom  int
	pixelRange [2]float64

	state   schema.ComposerState
	spec    schema.GraphSpec
	window  schema.DateWindow
	full    [][]schema.Series
	groups  [][]schema.Series
	tooltip *schema.TooltipState
	loading bool
	// loadSpec is the spec the outstanding full load fetches metrics for.
	loadSpec schema.GraphSpec
	// awaiting is set while the spec needs metrics that were never fetched.
	awaiting bool
	dropped []schema.MetricKey
	lastErr error
}

// NewComposer creates an idle composer.
func NewComposer(opts ComposerOptions) *Composer {
	c := &Composer{
		store:      NewAnalysisHistoryStore(),
		translate:  opts.Translate,
		format:     opts.Format,
		maxCustom:  opts.MaxCustomMetrics,
		pixelRange: opts.PixelRange,
		state:      schema.IdleState,
	}
	if c.translate == nil {
		c.translate = contract.DefaultTranslator
	}
	if c.format == nil {
		c.format = contract.NewValueFormatter(contract.DefaultPrecision)
	}
	if c.maxCustom <= 0 {
		c.maxCustom = DefaultMaxCustomMetrics
	}
	if c.pixelRange == [2]float64{} {
		c.pixelRange = [2]float64{0, contract.DefaultAxisWidth}
	}
	return c
}

// State returns the current top-level state.
func (c *Composer) State() schema.ComposerState { return c.state }

// Spec returns the chosen graph spec.
func (c *Composer) Spec() schema.GraphSpec { return c.spec }

// Window returns the active date window.
func (c *Composer) Window() schema.DateWindow { return c.window }

// Project returns the project branch of the latest load.
func (c *Composer) Project() schema.ProjectKey { return c.store.Project() }

// Token returns the token of the latest load.
func (c *Composer) Token() LoadToken { return c.store.Token() }

// Loading reports whether a load is outstanding, or whether the spec waits
// for metrics that were never fetched.
func (c *Composer) Loading() bool { return c.loading || c.awaiting }

// AwaitingMetrics reports whether the spec needs metrics that were never fetched.
// The composer stays idle until CompleteMerge brings them.
func (c *Composer) AwaitingMetrics() bool { return c.awaiting }

// MaxCustomMetrics returns the custom metric cap.
func (c *Composer) MaxCustomMetrics() int { return c.maxCustom }

// Tooltip returns a copy of the tooltip state, or nil.
func (c *Composer) Tooltip() *schema.TooltipState {
	if c.tooltip == nil {
		return nil
	}
	t := *c.tooltip
	return &t
}

// Err returns the error of the last failed fetch, if any.
func (c *Composer) Err() error { return c.lastErr }

// SetAxisPixelRange sets the pixel extent pointer positions are mapped over.
func (c *Composer) SetAxisPixelRange(r [2]float64) {
	c.pixelRange = r
}

// BeginLoad starts loading key and drops any displayed series.
// The returned token must accompany the result passed to CompleteLoad.
func (c *Composer) BeginLoad(key schema.ProjectKey) LoadToken {
	token := c.store.Begin(key)
	c.loading = true
	c.loadSpec = c.spec
	c.awaiting = false
	c.lastErr = nil
	c.dropped = nil
	c.toIdle()
	return token
}

// Invalidate drops loaded data, e.g. after an event of the project was edited.
// The caller reloads with BeginLoad.
func (c *Composer) Invalidate() {
	c.store.Invalidate()
	c.loading = false
	c.awaiting = false
	c.toIdle()
}

// CompleteLoad applies a fetch result. It returns false when token was superseded,
// in which case nothing changes. A fetch error leaves the composer idle without data.
func (c *Composer) CompleteLoad(token LoadToken, res LoadResult, err error) bool {
	if token != c.store.Token() {
		return false
	}
	c.loading = false
	if err != nil {
		c.lastErr = err
		c.toIdle()
		return true
	}
	// every metric the load asked for counts as fetched, even without points
	requested := slices.DeleteFunc(RequiredMetrics(c.loadSpec, c.maxCustom), func(m schema.MetricKey) bool {
		return slices.Contains(res.Dropped, m)
	})
	c.store.Commit(token, res.Analyses, completeRecords(slices.Clone(res.Histories), requested))
	c.dropped = nil
	c.dropFromSpec(res.Dropped)
	c.rebuild()
	return true
}

// CompleteMerge applies histories fetched for metrics missing from the store,
// e.g. after AddCustomMetric. It follows the same rules as CompleteLoad.
func (c *Composer) CompleteMerge(token LoadToken, res LoadResult, err error) bool {
	if token != c.store.Token() || !c.store.Loaded() {
		return false
	}
	if err != nil {
		c.lastErr = err
		c.store.Invalidate()
		c.awaiting = false
		c.toIdle()
		return true
	}
	c.store.Merge(token, res.Histories)
	c.dropFromSpec(res.Dropped)
	c.rebuild()
	return true
}

// MissingMetrics lists the metrics the current spec needs that were never fetched.
func (c *Composer) MissingMetrics() []schema.MetricKey {
	if c.spec.IsZero() {
		return nil
	}
	var out []schema.MetricKey
	for _, m := range RequiredMetrics(c.spec, c.maxCustom) {
		if !c.store.HasMetric(m) {
			out = append(out, m)
		}
	}
	return out
}

// SetGraphSpec selects what is displayed, rebuilds the series and clears the tooltip.
// An active window is kept and re-applied.
func (c *Composer) SetGraphSpec(spec schema.GraphSpec) {
	if spec.IsCustom() {
		spec = schema.Custom(CapCustomMetrics(spec.Metrics(), c.maxCustom)...)
	}
	c.spec = spec
	c.rebuild()
}

// SetDateWindow narrows the displayed dates and clears the tooltip.
// The zero window removes the narrowing. It has no effect while idle.
func (c *Composer) SetDateWindow(w schema.DateWindow) bool {
	if c.state == schema.IdleState {
		return false
	}
	c.window = w
	c.tooltip = nil
	c.applyWindow()
	return true
}

// Zoom narrows the window to the dates between two pointer positions on the
// unfiltered axis.
func (c *Composer) Zoom(x1, x2 float64) bool {
	if c.state == schema.IdleState {
		return false
	}
	for _, group := range c.full {
		if len(AxisDates(group)) > 0 {
			return c.SetDateWindow(ZoomWindow(group, x1, x2, c.pixelRange))
		}
	}
	return false
}

// PointerMove moves the tooltip to the sample of the first sub-graph nearest x.
func (c *Composer) PointerMove(x float64) bool {
	return c.PointerMoveOn(0, x)
}

// PointerMoveOn moves the tooltip to the sample of sub-graph graph nearest x.
func (c *Composer) PointerMoveOn(graph int, x float64) bool {
	if c.state == schema.IdleState || graph < 0 || graph >= len(c.groups) {
		return false
	}
	t := Resolve(c.groups[graph], x, c.pixelRange)
	if t == nil {
		return false
	}
	t.Graph = graph
	c.tooltip = t
	return true
}

// SelectDate pins the tooltip to the displayed sample closest to date.
func (c *Composer) SelectDate(date time.Time) bool {
	if c.state == schema.IdleState {
		return false
	}
	for graph, group := range c.groups {
		if t := ResolveByDate(group, date); t != nil {
			t.Graph = graph
			c.tooltip = t
			return true
		}
	}
	return false
}

// ClearTooltip removes the tooltip, keeping spec and window.
func (c *Composer) ClearTooltip() {
	c.tooltip = nil
}

// AddCustomMetric appends metric to the custom spec, evicting the oldest metric
// when the cap is reached. It fails with contract.ErrNotCustomGraph for predefined specs.
func (c *Composer) AddCustomMetric(metric schema.MetricKey) error {
	spec, err := WithCustomMetric(c.spec, metric, c.maxCustom)
	if err != nil {
		return err
	}
	if !spec.Equal(c.spec) {
		c.SetGraphSpec(spec)
	}
	return nil
}

// RemoveCustomMetric removes metric from the custom spec.
func (c *Composer) RemoveCustomMetric(metric schema.MetricKey) error {
	spec, err := WithoutCustomMetric(c.spec, metric)
	if err != nil {
		return err
	}
	if !spec.Equal(c.spec) {
		c.SetGraphSpec(spec)
	}
	return nil
}

// DropMetrics removes metrics the backend does not know from the custom spec and
// records them so the read model can report them.
func (c *Composer) DropMetrics(metrics ...schema.MetricKey) {
	if c.dropFromSpec(metrics) {
		c.rebuild()
	}
}

func (c *Composer) dropFromSpec(metrics []schema.MetricKey) bool {
	changed := false
	for _, m := range metrics {
		if !slices.Contains(c.dropped, m) {
			c.dropped = append(c.dropped, m)
		}
		if !c.spec.IsCustom() {
			continue
		}
		if spec, err := WithoutCustomMetric(c.spec, m); err == nil && !spec.Equal(c.spec) {
			c.spec = spec
			changed = true
		}
	}
	return changed
}

func (c *Composer) toIdle() {
	c.state = schema.IdleState
	c.full = nil
	c.groups = nil
	c.tooltip = nil
}

// rebuild derives the series of the spec. A spec that needs metrics never
// fetched stays idle until CompleteMerge brings them.
func (c *Composer) rebuild() {
	c.awaiting = false
	if c.loading || !c.store.Loaded() || c.spec.IsZero() {
		c.toIdle()
		return
	}
	if len(c.MissingMetrics()) > 0 {
		c.awaiting = true
		c.toIdle()
		return
	}
	metrics := RequiredMetrics(c.spec, c.maxCustom)
	c.full = BuildSeriesCapped(c.store.Analyses(), c.store.Histories(metrics), c.spec, c.translate, c.maxCustom)
	c.tooltip = nil
	c.applyWindow()
}

func (c *Composer) applyWindow() {
	if c.window.IsZero() {
		c.groups = c.full
		c.state = schema.LoadedState
		return
	}
	c.groups = ApplyWindowAll(c.full, c.window)
	c.state = schema.WindowedState
}

// SeriesGroups returns the displayed series, one slice per sub-graph.
func (c *Composer) SeriesGroups() [][]schema.Series {
	return slices.Clone(c.groups)
}

// Snapshot returns the read model of the displayed graph.
func (c *Composer) Snapshot() schema.ReadModel {
	rm := schema.ReadModel{
		Project:      c.store.Project(),
		State:        c.state,
		Spec:         c.spec,
		Window:       c.window,
		SeriesGroups: c.SeriesGroups(),
		Tooltip:      c.Tooltip(),
		HasData:      c.state != schema.IdleState && HasData(c.groups),
		Dropped:      slices.Clone(c.dropped),
		Loading:      c.Loading(),
	}
	if rm.SeriesGroups == nil {
		rm.SeriesGroups = [][]schema.Series{}
	}
	if c.lastErr != nil {
		rm.Error = fmt.Sprintf("no history data: %v", c.lastErr)
	}
	if c.state == schema.IdleState {
		return rm
	}
	for _, a := range c.store.Analyses() {
		if !c.window.Contains(a.Date) {
			continue
		}
		rm.Analyses++
		for _, e := range a.Events {
			rm.Events = append(rm.Events, schema.AxisEvent{Date: a.Date, Event: e})
		}
	}
	return rm
}

// TooltipDetails returns the payload of the current tooltip, or nil.
func (c *Composer) TooltipDetails() *schema.TooltipPayload {
	if c.tooltip == nil || c.tooltip.Graph >= len(c.groups) {
		return nil
	}
	return BuildTooltip(c.groups[c.tooltip.Graph], c.tooltip, TooltipInput{
		Analyses:  c.store.Analyses(),
		Breakdown: c.store.Histories(BreakdownMetrics(c.spec)),
		Translate: c.translate,
		Format:    c.format,
	})
}
