// Package fixture serves project histories from a YAML file.
package fixture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"gopkg.in/yaml.v3"
)

// File is the document layout of a fixture file.
type File struct {
	Projects []Project `yaml:"projects"`
}

// Project is the recorded history of one project branch.
type Project struct {
	Project  string                    `yaml:"project"`
	Branch   string                    `yaml:"branch"`
	Metrics  []schema.MetricDefinition `yaml:"metrics,omitempty"`
	Analyses []Analysis                `yaml:"analyses"`
}

// Analysis is one analysis with the measures it computed.
type Analysis struct {
	Key      string                                   `yaml:"key"`
	Date     time.Time                                `yaml:"date"`
	Events   []schema.Event                           `yaml:"events,omitempty"`
	Measures map[schema.MetricKey]schema.MeasureValue `yaml:"measures,omitempty"`
}

// Source is a HistoryFetcher over a parsed fixture. It is safe for concurrent use.
type Source struct {
	mu       sync.RWMutex
	path     string
	file     File
	projects map[schema.ProjectKey]*Project
	metrics  map[schema.MetricKey]schema.MetricDefinition
}

var _ contract.HistoryFetcher = &Source{} // Compile-time check

// Load reads and validates the fixture at path.
func Load(path string) (*Source, error) {
	s := &Source{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse builds a Source from a fixture document.
func Parse(r io.Reader) (*Source, error) {
	f, err := decode(r)
	if err != nil {
		return nil, err
	}
	s := &Source{}
	s.install(f)
	return s, nil
}

// Path returns the file the source was loaded from, if any.
func (s *Source) Path() string {
	return s.path
}

// Reload re-reads the fixture file. On error the previous content is kept.
func (s *Source) Reload() error {
	fh, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open fixture %s: %w", s.path, err)
	}
	defer func() { _ = fh.Close() }()

	f, err := decode(fh)
	if err != nil {
		return fmt.Errorf("fixture %s: %w", s.path, err)
	}
	s.install(f)
	return nil
}

func decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := validate(&f); err != nil {
		return File{}, err
	}
	return f, nil
}

// validate checks keys and normalizes analyses to ascending date order.
func validate(f *File) error {
	seen := make(map[schema.ProjectKey]struct{})
	for i := range f.Projects {
		p := &f.Projects[i]
		p.Project = strings.TrimSpace(p.Project)
		if p.Project == "" {
			return fmt.Errorf("projects[%d]: project is required", i)
		}
		key := schema.ProjectKey{Project: p.Project, Branch: p.Branch}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("projects[%d]: duplicate project %s", i, key)
		}
		seen[key] = struct{}{}

		for _, d := range p.Metrics {
			if d.Key == "" {
				return fmt.Errorf("project %s: metric definition without key", key)
			}
		}

		analysisKeys := make(map[string]struct{}, len(p.Analyses))
		for j := range p.Analyses {
			a := &p.Analyses[j]
			if a.Key == "" {
				return fmt.Errorf("project %s: analyses[%d]: key is required", key, j)
			}
			if a.Date.IsZero() {
				return fmt.Errorf("project %s: analysis %s: date is required", key, a.Key)
			}
			if _, dup := analysisKeys[a.Key]; dup {
				return fmt.Errorf("project %s: duplicate analysis %s", key, a.Key)
			}
			analysisKeys[a.Key] = struct{}{}
			for k := range a.Events {
				e := &a.Events[k]
				if e.Category == "" {
					e.Category = schema.OtherEvent
				}
				if _, ok := schema.ValidEventCategories[e.Category]; !ok {
					return fmt.Errorf("project %s: analysis %s: invalid event category '%s'", key, a.Key, e.Category)
				}
			}
		}
		sort.SliceStable(p.Analyses, func(x, y int) bool {
			return p.Analyses[x].Date.Before(p.Analyses[y].Date)
		})
	}
	return nil
}

func (s *Source) install(f File) {
	projects := make(map[schema.ProjectKey]*Project, len(f.Projects))
	metrics := make(map[schema.MetricKey]schema.MetricDefinition, len(schema.DefaultMetrics))
	for _, d := range schema.DefaultMetrics {
		metrics[d.Key] = d
	}
	for i := range f.Projects {
		p := &f.Projects[i]
		projects[schema.ProjectKey{Project: p.Project, Branch: p.Branch}] = p
		for _, d := range p.Metrics {
			metrics[d.Key] = d
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = f
	s.projects = projects
	s.metrics = metrics
}

// Projects returns the keys of every project in the fixture, in file order.
func (s *Source) Projects() []schema.ProjectKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]schema.ProjectKey, len(s.file.Projects))
	for i, p := range s.file.Projects {
		keys[i] = schema.ProjectKey{Project: p.Project, Branch: p.Branch}
	}
	return keys
}

// FetchAnalyses returns the analyses of a project branch, ascending by date.
// Unknown projects have no analyses.
func (s *Source) FetchAnalyses(ctx context.Context, project, branch string) ([]schema.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[schema.ProjectKey{Project: project, Branch: branch}]
	if !ok {
		return []schema.Analysis{}, nil
	}
	result := make([]schema.Analysis, len(p.Analyses))
	for i, a := range p.Analyses {
		result[i] = schema.Analysis{Key: a.Key, Date: a.Date, Events: append([]schema.Event(nil), a.Events...)}
	}
	return result, nil
}

// FetchHistory returns one record per requested metric. Metrics that are neither
// built in nor defined by the fixture fail with contract.ErrUnknownMetric.
func (s *Source) FetchHistory(ctx context.Context, project, branch string, metrics []schema.MetricKey, window *schema.DateWindow) ([]schema.MeasureHistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range metrics {
		if _, ok := s.metrics[m]; !ok {
			return nil, fmt.Errorf("metric %s: %w", m, contract.ErrUnknownMetric)
		}
	}

	p := s.projects[schema.ProjectKey{Project: project, Branch: branch}]
	records := make([]schema.MeasureHistoryRecord, 0, len(metrics))
	for _, m := range metrics {
		rec := schema.MeasureHistoryRecord{Metric: m}
		if p != nil {
			for _, a := range p.Analyses {
				if window != nil && !window.Contains(a.Date) {
					continue
				}
				if v, ok := a.Measures[m]; ok {
					rec.Points = append(rec.Points, schema.HistoryPoint{Date: a.Date, Value: v})
				}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Metrics returns every metric the source can serve, ordered by key.
func (s *Source) Metrics() []schema.MetricDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]schema.MetricDefinition, 0, len(s.metrics))
	for _, d := range s.metrics {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}
