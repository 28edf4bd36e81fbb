package participants

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/storage"
)

// memStore is an in-memory Store whose MarkUsed behaves like the conditional UPDATE.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Participant
	// failCreate is returned by the next Create calls, one per entry.
	failCreate []error
}

func newMemStore() *memStore {
	return &memStore{byID: map[int64]*models.Participant{}}
}

func clone(p *models.Participant) *models.Participant {
	c := *p
	return &c
}

func (s *memStore) Create(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failCreate) > 0 {
		err := s.failCreate[0]
		s.failCreate = s.failCreate[1:]
		return err
	}
	for _, e := range s.byID {
		if e.Email == p.Email {
			return ErrDuplicateEmail
		}
		if e.TicketUUID == p.TicketUUID {
			return ErrTicketCollision
		}
	}
	s.nextID++
	p.ID = s.nextID
	p.UpdatedAt = p.CreatedAt
	s.byID[p.ID] = clone(p)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s *memStore) GetByTicket(_ context.Context, ticket uuid.UUID) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.TicketUUID == ticket {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Email == email && p.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) List(_ context.Context, f Filter) ([]*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Participant
	for _, p := range s.byID {
		if f.Used != nil && p.Used != *f.Used {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName+" "+p.Email), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, clone(p))
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	next := clone(p)
	next.TicketUUID, next.Used, next.UsedAt, next.CreatedAt, next.QRKey = cur.TicketUUID, cur.Used, cur.UsedAt, cur.CreatedAt, cur.QRKey
	s.byID[p.ID] = next
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.byID, id)
	return p.QRKey, nil
}

func (s *memStore) SetQRKey(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[id]; ok {
		k := key
		p.QRKey = &k
	}
	return nil
}

func (s *memStore) MarkUsed(_ context.Context, ticket uuid.UUID, at time.Time) (*models.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.TicketUUID != ticket {
			continue
		}
		if p.Used {
			return clone(p), false, nil
		}
		if at.Before(p.CreatedAt) {
			at = p.CreatedAt
		}
		p.Used = true
		p.UsedAt = &at
		return clone(p), true, nil
	}
	return nil, false, ErrNotFound
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type memGate struct {
	mu   sync.Mutex
	gate models.Gate
}

func newMemGate(open bool) *memGate {
	return &memGate{gate: models.Gate{IsOpen: open}}
}

func (g *memGate) GetGate(context.Context) (*models.Gate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.gate
	return &c, nil
}

func (g *memGate) SetGate(_ context.Context, open bool, at time.Time) (*models.Gate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = models.Gate{IsOpen: open, UpdatedAt: at}
	c := g.gate
	return &c, nil
}

func (g *memGate) ToggleGate(_ context.Context, at time.Time) (*models.Gate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = models.Gate{IsOpen: !g.gate.IsOpen, UpdatedAt: at}
	c := g.gate
	return &c, nil
}

type stubCodec struct {
	err error
}

func (c stubCodec) Encode(payload string) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []byte("png:" + payload), nil
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: map[string][]byte{}}
}

func (m *memArtifacts) Put(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (m *memArtifacts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memArtifacts) URL(key string) string { return storage.MediaURL("", key) }

type notification struct {
	id        int64
	emailType string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, p *models.Participant, emailType string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{id: p.ID, emailType: emailType})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.CheckinEvent
}

func (p *recordingPublisher) PublishCheckin(_ context.Context, ev models.CheckinEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

var errBoom = errors.New("boom")

type fixture struct {
	store     *memStore
	gate      *memGate
	artifacts *memArtifacts
	notifier  *recordingNotifier
	publisher *recordingPublisher
	registry  *Registry
}

func newFixture(open bool) *fixture {
	f := &fixture{
		store:     newMemStore(),
		gate:      newMemGate(open),
		artifacts: newMemArtifacts(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.registry = NewRegistry(f.store, f.gate, stubCodec{}, f.artifacts, f.notifier, nil)
	f.registry.SetPublisher(f.publisher)
	return f
}
