package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

// memStore keeps state as encoded TOML so tests exercise the same
// serialization path the real store does.
type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	onSet  func(key string) error
	log    *eventLog
}

func newMemStore() *memStore {
	return &memStore{values: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return false, err
	}

	return true, nil
}

func (s *memStore) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onSet != nil {
		if err := s.onSet(key); err != nil {
			return err
		}
	}

	data, err := toml.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = data
	if s.log != nil {
		s.log.append("set:" + key)
	}

	return nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) append(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

func (l *eventLog) indexOf(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}

	return -1
}

type fakeProcess struct {
	killed []domain.SessionID
	err    error
	found  bool
	log    *eventLog
}

func (p *fakeProcess) Kill(_ context.Context, sessionID domain.SessionID) (bool, error) {
	p.killed = append(p.killed, sessionID)
	if p.log != nil {
		p.log.append("kill")
	}

	return p.found, p.err
}

type sentNotification struct {
	channel string
	payload any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	log  *eventLog
}

func (n *recordingNotifier) Send(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, sentNotification{channel: channel, payload: payload})
	if n.log != nil {
		n.log.append(channel)
	}
}

func (n *recordingNotifier) channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	channels := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		channels = append(channels, s.channel)
	}

	return channels
}

func (n *recordingNotifier) countChannel(channel string) int {
	count := 0
	for _, c := range n.channels() {
		if c == channel {
			count++
		}
	}

	return count
}

type fakeUsageStats struct {
	ready bool
	usage map[domain.AccountID]domain.WindowUsage
	errs  map[domain.AccountID]error
}

func (f *fakeUsageStats) Ready() bool {
	return f.ready
}

func (f *fakeUsageStats) AccountUsageInWindow(_ context.Context, id domain.AccountID, _ time.Duration) (domain.WindowUsage, error) {
	if err := f.errs[id]; err != nil {
		return domain.WindowUsage{}, err
	}

	return f.usage[id], nil
}

var _ ports.StateStore = (*memStore)(nil)
var _ ports.ProcessController = (*fakeProcess)(nil)
var _ ports.Notifier = (*recordingNotifier)(nil)
var _ ports.UsageStatsProvider = (*fakeUsageStats)(nil)

func newTestRegistry(store ports.StateStore, clock ports.Clock) *RegistryService {
	registry := NewRegistryService(store, clock)
	seq := 0
	registry.newID = func() string {
		seq++
		return fmt.Sprintf("acc-%d", seq)
	}

	return registry
}
