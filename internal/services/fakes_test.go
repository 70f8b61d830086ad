package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, env *models.Envelope) (string, error) {
	args := m.Called(ctx, env)
	return args.String(0), args.Error(1)
}

func (m *mockTransport) Name() string {
	return "mock"
}

// memoryDeliveries 以 mutex 保護的記憶體儲存，行為對應資料庫原子操作
type memoryDeliveries struct {
	mu        sync.Mutex
	byToken   map[string]*models.DeliveryRecord
	createErr error
	countErr  error
}

func newMemoryDeliveries() *memoryDeliveries {
	return &memoryDeliveries{byToken: map[string]*models.DeliveryRecord{}}
}

func (m *memoryDeliveries) Create(_ context.Context, record *models.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *record
	m.byToken[record.TrackingToken] = &copied
	return nil
}

func (m *memoryDeliveries) FindByID(_ context.Context, id string) (*models.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byToken {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryDeliveries) FindByToken(_ context.Context, token string) (*models.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *r
	copied.ClickedLinks = append([]models.ClickedLink(nil), r.ClickedLinks...)
	return &copied, nil
}

func (m *memoryDeliveries) List(_ context.Context, _ repository.DeliveryFilter) ([]models.DeliveryRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DeliveryRecord, 0, len(m.byToken))
	for _, r := range m.byToken {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (m *memoryDeliveries) RecordOpen(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byToken[token]
	if !ok {
		return repository.ErrNotFound
	}
	r.OpenCount++
	r.ReadStatus = true
	if r.ReadAt == nil {
		first := at
		r.ReadAt = &first
	}
	last := at
	r.LastOpenedAt = &last
	return nil
}

func (m *memoryDeliveries) RecordClick(_ context.Context, token, url string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byToken[token]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range r.ClickedLinks {
		if r.ClickedLinks[i].URL == url {
			r.ClickedLinks[i].ClickCount++
			r.ClickedLinks[i].ClickedAt = at
			return nil
		}
	}
	r.ClickedLinks = append(r.ClickedLinks, models.ClickedLink{URL: url, ClickedAt: at, ClickCount: 1})
	return nil
}

func (m *memoryDeliveries) RecordReply(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byToken[token]
	if !ok {
		return repository.ErrNotFound
	}
	r.ReplyStatus = true
	if r.RepliedAt == nil {
		first := at
		r.RepliedAt = &first
	}
	return nil
}

func (m *memoryDeliveries) CountEngagement(_ context.Context, filter repository.StatsFilter) (*models.EngagementCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return nil, m.countErr
	}
	counts := &models.EngagementCounts{}
	for _, r := range m.byToken {
		if filter.ClientID != nil && (r.ClientID == nil || *r.ClientID != *filter.ClientID) {
			continue
		}
		if filter.From != nil && r.SentAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.SentAt.After(*filter.To) {
			continue
		}
		counts.TotalSent++
		if r.ReadStatus {
			counts.TotalOpened++
		}
		if r.ReplyStatus {
			counts.TotalReplied++
		}
		if r.BounceStatus != "" && r.BounceStatus != models.BounceStatusNone {
			counts.TotalBounced++
		}
	}
	return counts, nil
}

func (m *memoryDeliveries) only() *models.DeliveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byToken {
		return r
	}
	return nil
}

func (m *memoryDeliveries) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

type memoryTemplates struct {
	mu        sync.Mutex
	templates map[string]*models.EmailTemplate
}

func newMemoryTemplates(tmpls ...*models.EmailTemplate) *memoryTemplates {
	m := &memoryTemplates{templates: map[string]*models.EmailTemplate{}}
	for _, t := range tmpls {
		m.templates[t.ID] = t
	}
	return m
}

func (m *memoryTemplates) FindActiveByID(_ context.Context, id string) (*models.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || !t.IsActive {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memoryTemplates) IncrementUsage(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.UsageCount++
	used := at
	t.LastUsedAt = &used
	return nil
}

func (m *memoryTemplates) usage(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates[id].UsageCount
}

type memoryClientTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.ClientToken
}

func newMemoryClientTokens() *memoryClientTokens {
	return &memoryClientTokens{tokens: map[string]*models.ClientToken{}}
}

func (m *memoryClientTokens) FindByClientID(_ context.Context, clientID string) (*models.ClientToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memoryClientTokens) List(_ context.Context) ([]models.ClientToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClientToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memoryClientTokens) Save(_ context.Context, token *models.ClientToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	m.tokens[token.ClientID] = &copied
	return nil
}
