package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/dto"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*entity.Campaign
}

func newFakeCampaignRepo(campaigns ...*entity.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: make(map[uuid.UUID]*entity.Campaign)}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}

	return r
}

func (r *fakeCampaignRepo) Create(_ context.Context, campaign *entity.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns[campaign.ID] = campaign

	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	copied := *c

	return &copied, nil
}

func (r *fakeCampaignRepo) Queue(_ context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok || c.UserID != userID || c.Status != entity.CampaignDraft {
		return false, nil
	}

	c.Status = entity.CampaignQueued
	c.QueuedAt = &at
	c.TotalCount = len(c.CustomerIDs)

	return true, nil
}

func (r *fakeCampaignRepo) StartProcessing(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}

func (r *fakeCampaignRepo) StartSending(_ context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeCampaignRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (r *fakeCampaignRepo) UpdateCounts(_ context.Context, id uuid.UUID, delivered, failed int) error {
	return nil
}

func (r *fakeCampaignRepo) Complete(_ context.Context, id uuid.UUID, status entity.CampaignStatus, delivered, failed int, at time.Time) error {
	return nil
}

type fakeDeliveryLogRepo struct {
	sent   int
	failed int
}

func (r *fakeDeliveryLogRepo) Exists(_ context.Context, campaignID, customerID uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeDeliveryLogRepo) Create(_ context.Context, log *entity.DeliveryLog) (bool, error) {
	return true, nil
}

func (r *fakeDeliveryLogRepo) CountByStatus(_ context.Context, campaignID uuid.UUID, status entity.DeliveryStatus) (int, error) {
	if status == entity.DeliverySent {
		return r.sent, nil
	}

	return r.failed, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	dispatch []entity.DispatchMessage
}

func (e *fakeEvents) PublishDispatch(_ context.Context, msg entity.DispatchMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dispatch = append(e.dispatch, msg)

	return nil
}

func (e *fakeEvents) PublishDeliveryBatch(_ context.Context, batch entity.DeliveryBatch) error {
	return nil
}

func (e *fakeEvents) PublishStatus(_ context.Context, snapshot entity.StatusSnapshot) error {
	return nil
}

func (e *fakeEvents) Close() error { return nil }

type fakeSnapshotCache struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]entity.StatusSnapshot
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{snapshots: make(map[uuid.UUID]entity.StatusSnapshot)}
}

func (c *fakeSnapshotCache) SetSnapshot(_ context.Context, snapshot entity.StatusSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots[snapshot.CampaignID] = snapshot

	return nil
}

func (c *fakeSnapshotCache) GetSnapshot(_ context.Context, campaignID uuid.UUID) (*entity.StatusSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.snapshots[campaignID]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return &s, nil
}

func newUseCase(repo *fakeCampaignRepo, logs *fakeDeliveryLogRepo, events *fakeEvents, cache *fakeSnapshotCache) *UseCase {
	return New(repo, logs, events, cache, 3_600_000, 100, logger.New("error"))
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := newFakeCampaignRepo()
	uc := newUseCase(repo, &fakeDeliveryLogRepo{}, &fakeEvents{}, newFakeSnapshotCache())

	campaign, err := uc.Create(context.Background(), dto.CreateCampaign{
		UserID:      uuid.New(),
		Name:        "launch",
		Message:     "hello",
		RuleID:      uuid.New(),
		CustomerIDs: []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if campaign.Status != entity.CampaignDraft {
		t.Fatalf("new campaign status %s, want draft", campaign.Status)
	}
	if campaign.TTLMillis != 3_600_000 {
		t.Fatalf("ttl %d, want default 3600000", campaign.TTLMillis)
	}
	if campaign.BatchSize != 100 {
		t.Fatalf("batch size %d, want default 100", campaign.BatchSize)
	}
	if campaign.CreatedAt.IsZero() {
		t.Fatal("created campaign missing creation time")
	}
}

func TestCreateKeepsExplicitSettings(t *testing.T) {
	repo := newFakeCampaignRepo()
	uc := newUseCase(repo, &fakeDeliveryLogRepo{}, &fakeEvents{}, newFakeSnapshotCache())

	campaign, err := uc.Create(context.Background(), dto.CreateCampaign{
		UserID:      uuid.New(),
		Name:        "launch",
		Message:     "hello",
		RuleID:      uuid.New(),
		CustomerIDs: []uuid.UUID{uuid.New()},
		TTLMillis:   60_000,
		BatchSize:   10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if campaign.TTLMillis != 60_000 || campaign.BatchSize != 10 {
		t.Fatalf("explicit settings overwritten: ttl=%d batch=%d", campaign.TTLMillis, campaign.BatchSize)
	}
}

func TestQueuePublishesDispatchOnce(t *testing.T) {
	userID := uuid.New()
	campaign := &entity.Campaign{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        "launch",
		Status:      entity.CampaignDraft,
		CustomerIDs: []uuid.UUID{uuid.New(), uuid.New()},
	}

	repo := newFakeCampaignRepo(campaign)
	events := &fakeEvents{}
	uc := newUseCase(repo, &fakeDeliveryLogRepo{}, events, newFakeSnapshotCache())

	queued, err := uc.Queue(context.Background(), userID, campaign.ID)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if queued.Status != entity.CampaignQueued {
		t.Fatalf("campaign status %s, want queued", queued.Status)
	}
	if queued.TotalCount != 2 {
		t.Fatalf("total count %d, want 2", queued.TotalCount)
	}

	// Second call sees the campaign already queued and must not publish.
	_, err = uc.Queue(context.Background(), userID, campaign.ID)
	if err != nil {
		t.Fatalf("repeated Queue: %v", err)
	}

	if len(events.dispatch) != 1 {
		t.Fatalf("published %d dispatch messages, want 1", len(events.dispatch))
	}
	if events.dispatch[0].CampaignID != campaign.ID {
		t.Fatal("dispatch message for wrong campaign")
	}
}

func TestQueueForeignCampaignNotFound(t *testing.T) {
	campaign := &entity.Campaign{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: entity.CampaignDraft,
	}

	repo := newFakeCampaignRepo(campaign)
	events := &fakeEvents{}
	uc := newUseCase(repo, &fakeDeliveryLogRepo{}, events, newFakeSnapshotCache())

	_, err := uc.Queue(context.Background(), uuid.New(), campaign.ID)
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for foreign campaign, got %v", err)
	}
	if len(events.dispatch) != 0 {
		t.Fatal("foreign queue attempt published a dispatch message")
	}
}

func TestStatusPrefersSnapshot(t *testing.T) {
	userID := uuid.New()
	campaign := &entity.Campaign{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     entity.CampaignSending,
		TotalCount: 10,
	}

	cache := newFakeSnapshotCache()
	cache.snapshots[campaign.ID] = entity.StatusSnapshot{
		CampaignID:     campaign.ID,
		Status:         entity.CampaignSending,
		DeliveredCount: 7,
		FailedCount:    1,
		TotalCount:     10,
	}

	uc := newUseCase(newFakeCampaignRepo(campaign), &fakeDeliveryLogRepo{sent: 2}, &fakeEvents{}, cache)

	progress, err := uc.Status(context.Background(), userID, campaign.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	if progress.DeliveredCount != 7 || progress.FailedCount != 1 {
		t.Fatalf("counts %d/%d, want snapshot's 7/1", progress.DeliveredCount, progress.FailedCount)
	}
}

func TestStatusFallsBackToLogCounts(t *testing.T) {
	userID := uuid.New()
	campaign := &entity.Campaign{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     entity.CampaignSending,
		TotalCount: 10,
	}

	logs := &fakeDeliveryLogRepo{sent: 4, failed: 2}
	uc := newUseCase(newFakeCampaignRepo(campaign), logs, &fakeEvents{}, newFakeSnapshotCache())

	progress, err := uc.Status(context.Background(), userID, campaign.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	if progress.DeliveredCount != 4 || progress.FailedCount != 2 {
		t.Fatalf("counts %d/%d, want log counts 4/2", progress.DeliveredCount, progress.FailedCount)
	}
	if progress.Status != entity.CampaignSending {
		t.Fatalf("status %s, want sending", progress.Status)
	}
}

func TestStatusForeignCampaignNotFound(t *testing.T) {
	campaign := &entity.Campaign{ID: uuid.New(), UserID: uuid.New()}

	uc := newUseCase(newFakeCampaignRepo(campaign), &fakeDeliveryLogRepo{}, &fakeEvents{}, newFakeSnapshotCache())

	_, err := uc.Status(context.Background(), uuid.New(), campaign.ID)
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
