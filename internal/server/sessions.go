package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

// streamBuffer is how many snapshots a slow stream client may lag behind.
const streamBuffer = 8

// session is one displayed graph. The mutex serializes composer transitions;
// it is released while fetching.
type session struct {
	id      string
	key     schema.ProjectKey
	created time.Time

	mu       sync.Mutex
	composer *core.Composer
	subs     map[chan schema.GraphResult]struct{}
}

// result returns the read model of the session. The caller holds s.mu.
func (s *session) result() schema.GraphResult {
	return core.GraphResultOf(s.composer)
}

// publish sends the current result to every stream subscriber. The caller holds s.mu.
// Subscribers that are too far behind miss the update. Nothing is sent while the
// spec waits for metrics that were never fetched.
func (s *session) publish() {
	if len(s.subs) == 0 || s.composer.AwaitingMetrics() {
		return
	}
	res := s.result()
	for ch := range s.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *session) subscribe() chan schema.GraphResult {
	ch := make(chan schema.GraphResult, streamBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.result()
	s.mu.Unlock()
	return ch
}

func (s *session) unsubscribe(ch chan schema.GraphResult) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// closeSubscribers ends every stream of the session.
func (s *session) closeSubscribers() {
	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()
}

// sessionInfo is the listing entry of a session.
type sessionInfo struct {
	ID      string            `json:"id"`
	Project schema.ProjectKey `json:"project"`
	Spec    schema.GraphSpec  `json:"spec"`
	State   string            `json:"state"`
	Created time.Time         `json:"created"`
}

// sessionManager owns the sessions and drives their loads through a loader.
type sessionManager struct {
	cfg     *contract.Config
	loader  *core.Loader
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionManager(cfg *contract.Config, loader *core.Loader, metrics *Metrics) *sessionManager {
	return &sessionManager{
		cfg:      cfg,
		loader:   loader,
		metrics:  metrics,
		sessions: make(map[string]*session),
	}
}

// create registers a new session for key showing spec. The session is idle until loaded.
func (m *sessionManager) create(key schema.ProjectKey, spec schema.GraphSpec) *session {
	cfg := m.cfg.Clone()
	cfg.Project = key.Project
	cfg.Branch = key.Branch
	c := core.NewComposerFor(cfg)
	if !spec.IsZero() {
		c.SetGraphSpec(spec)
	}

	s := &session{
		id:       uuid.New().String(),
		key:      key,
		created:  time.Now(),
		composer: c,
		subs:     make(map[chan schema.GraphResult]struct{}),
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SessionsActive.Set(float64(n))
	return s
}

func (m *sessionManager) get(id string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *sessionManager) remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.closeSubscribers()
	m.metrics.SessionsActive.Set(float64(n))
	return true
}

// list returns every session, oldest first.
func (m *sessionManager) list() []sessionInfo {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]sessionInfo, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		out = append(out, sessionInfo{
			ID:      s.id,
			Project: s.key,
			Spec:    s.composer.Spec(),
			State:   string(s.composer.State()),
			Created: s.created,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// matching returns the sessions showing key.
func (m *sessionManager) matching(key schema.ProjectKey) []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*session
	for _, s := range m.sessions {
		if s.key == key {
			out = append(out, s)
		}
	}
	return out
}

// all returns every session.
func (m *sessionManager) all() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// load runs a full load of the session. A load started later supersedes this one,
// in which case its result is discarded.
func (m *sessionManager) load(ctx context.Context, s *session) error {
	start := time.Now()
	s.mu.Lock()
	token := s.composer.BeginLoad(s.key)
	spec := s.composer.Spec()
	s.publish()
	s.mu.Unlock()

	res, err := m.loader.Fetch(ctx, s.key, spec)

	s.mu.Lock()
	applied := s.composer.CompleteLoad(token, res, err)
	if applied {
		s.publish()
	}
	s.mu.Unlock()
	m.metrics.observeLoad("full", err, applied, time.Since(start))
	if err != nil || !applied {
		return err
	}
	// the spec may have changed while fetching
	return m.loadMissing(ctx, s)
}

// loadMissing fetches the metrics the session's spec needs but never fetched.
func (m *sessionManager) loadMissing(ctx context.Context, s *session) error {
	start := time.Now()
	s.mu.Lock()
	missing := s.composer.MissingMetrics()
	if len(missing) == 0 {
		s.mu.Unlock()
		return nil
	}
	token := s.composer.Token()
	spec := s.composer.Spec()
	s.mu.Unlock()

	records, dropped, err := m.loader.FetchMetrics(ctx, s.key, spec, missing)

	s.mu.Lock()
	applied := s.composer.CompleteMerge(token, core.LoadResult{Histories: records, Dropped: dropped}, err)
	if applied {
		s.publish()
	}
	s.mu.Unlock()
	m.metrics.observeLoad("merge", err, applied, time.Since(start))
	return err
}

// reload invalidates the session and loads it again.
func (m *sessionManager) reload(ctx context.Context, s *session) error {
	s.mu.Lock()
	s.composer.Invalidate()
	s.mu.Unlock()
	return m.load(ctx, s)
}
