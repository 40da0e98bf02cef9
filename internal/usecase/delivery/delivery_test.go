package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

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
	return false, nil
}

func (r *fakeCampaignRepo) StartProcessing(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}

func (r *fakeCampaignRepo) StartSending(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok || c.Status != entity.CampaignProcessing {
		return false, nil
	}

	c.Status = entity.CampaignSending

	return true, nil
}

func (r *fakeCampaignRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (r *fakeCampaignRepo) UpdateCounts(_ context.Context, id uuid.UUID, delivered, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil
	}

	switch c.Status {
	case entity.CampaignSent, entity.CampaignPartialFailed, entity.CampaignFailed:
		return nil
	}

	c.DeliveredCount = delivered
	c.FailedCount = failed

	return nil
}

func (r *fakeCampaignRepo) Complete(_ context.Context, id uuid.UUID, status entity.CampaignStatus, delivered, failed int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return errs.ErrRecordNotFound
	}

	c.Status = status
	c.DeliveredCount = delivered
	c.FailedCount = failed
	if c.SentAt == nil {
		c.SentAt = &at
	}

	return nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*entity.Customer
}

func newFakeCustomerRepo(customers ...*entity.Customer) *fakeCustomerRepo {
	r := &fakeCustomerRepo{customers: make(map[uuid.UUID]*entity.Customer)}
	for _, c := range customers {
		r.customers[c.ID] = c
	}

	return r
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return c, nil
}

type logKey struct {
	campaignID uuid.UUID
	customerID uuid.UUID
}

type fakeDeliveryLogRepo struct {
	mu   sync.Mutex
	logs map[logKey]*entity.DeliveryLog
}

func newFakeDeliveryLogRepo() *fakeDeliveryLogRepo {
	return &fakeDeliveryLogRepo{logs: make(map[logKey]*entity.DeliveryLog)}
}

func (r *fakeDeliveryLogRepo) Exists(_ context.Context, campaignID, customerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.logs[logKey{campaignID, customerID}]

	return ok, nil
}

func (r *fakeDeliveryLogRepo) Create(_ context.Context, log *entity.DeliveryLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := logKey{log.CampaignID, log.CustomerID}
	if _, ok := r.logs[key]; ok {
		return false, nil
	}

	r.logs[key] = log

	return true, nil
}

func (r *fakeDeliveryLogRepo) CountByStatus(_ context.Context, campaignID uuid.UUID, status entity.DeliveryStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, log := range r.logs {
		if key.campaignID == campaignID && log.Status == status {
			count++
		}
	}

	return count, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]bool)}
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFor[to] {
		return "", fmt.Errorf("smtp rejected %s", to)
	}

	s.sent = append(s.sent, to)

	return fmt.Sprintf("<%s@test>", uuid.New()), nil
}

type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

type fakeEvents struct {
	mu        sync.Mutex
	snapshots []entity.StatusSnapshot
}

func (e *fakeEvents) PublishDispatch(_ context.Context, msg entity.DispatchMessage) error { return nil }

func (e *fakeEvents) PublishDeliveryBatch(_ context.Context, batch entity.DeliveryBatch) error {
	return nil
}

func (e *fakeEvents) PublishStatus(_ context.Context, snapshot entity.StatusSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snapshots = append(e.snapshots, snapshot)

	return nil
}

func (e *fakeEvents) Close() error { return nil }

type fixture struct {
	campaign  *entity.Campaign
	customers []*entity.Customer

	campaignRepo *fakeCampaignRepo
	customerRepo *fakeCustomerRepo
	logRepo      *fakeDeliveryLogRepo
	sender       *fakeSender
	events       *fakeEvents

	uc *UseCase
}

func newFixture(t *testing.T, audience int) *fixture {
	t.Helper()

	customers := make([]*entity.Customer, audience)
	customerIDs := make([]uuid.UUID, audience)
	for i := range customers {
		customers[i] = &entity.Customer{
			ID:    uuid.New(),
			Name:  fmt.Sprintf("customer-%d", i),
			Email: fmt.Sprintf("customer-%d@example.com", i),
		}
		customerIDs[i] = customers[i].ID
	}

	campaign := &entity.Campaign{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "launch",
		Message:     "hello there",
		CustomerIDs: customerIDs,
		Status:      entity.CampaignProcessing,
		TotalCount:  audience,
		BatchSize:   100,
	}

	f := &fixture{
		campaign:     campaign,
		customers:    customers,
		campaignRepo: newFakeCampaignRepo(campaign),
		customerRepo: newFakeCustomerRepo(customers...),
		logRepo:      newFakeDeliveryLogRepo(),
		sender:       newFakeSender(),
		events:       &fakeEvents{},
	}

	f.uc = New(f.campaignRepo, f.customerRepo, f.logRepo, fakeTransactor{}, f.sender, f.events, logger.New("error"))

	return f
}

func (f *fixture) batch(from, to, number, total int) entity.DeliveryBatch {
	return entity.DeliveryBatch{
		CampaignID:   f.campaign.ID,
		CustomerIDs:  f.campaign.CustomerIDs[from:to],
		BatchNumber:  number,
		TotalBatches: total,
	}
}

func TestDeliverBatchSendsAndRecords(t *testing.T) {
	f := newFixture(t, 5)

	err := f.uc.DeliverBatch(context.Background(), f.batch(0, 3, 1, 2))
	if err != nil {
		t.Fatalf("DeliverBatch: %v", err)
	}

	if len(f.sender.sent) != 3 {
		t.Fatalf("sent %d emails, want 3", len(f.sender.sent))
	}

	for _, customer := range f.customers[:3] {
		log, ok := f.logRepo.logs[logKey{f.campaign.ID, customer.ID}]
		if !ok {
			t.Fatalf("no delivery log for %s", customer.ID)
		}
		if log.Status != entity.DeliverySent {
			t.Errorf("log status %s, want sent", log.Status)
		}
		if log.MessageID == nil || log.SentAt == nil {
			t.Error("sent log missing message id or sent time")
		}
		if log.TryCount != 1 {
			t.Errorf("try count %d, want 1", log.TryCount)
		}
	}

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.Status != entity.CampaignSending {
		t.Fatalf("campaign status %s, want sending", stored.Status)
	}
	if stored.DeliveredCount != 3 {
		t.Fatalf("delivered count %d, want 3", stored.DeliveredCount)
	}

	if len(f.events.snapshots) != 1 {
		t.Fatalf("published %d snapshots, want 1", len(f.events.snapshots))
	}
	snap := f.events.snapshots[0]
	if snap.Status != entity.CampaignSending || snap.DeliveredCount != 3 || snap.TotalCount != 5 {
		t.Fatalf("snapshot %+v unexpected", snap)
	}
}

func TestDeliverBatchCompletesCampaign(t *testing.T) {
	f := newFixture(t, 2)

	err := f.uc.DeliverBatch(context.Background(), f.batch(0, 2, 1, 1))
	if err != nil {
		t.Fatalf("DeliverBatch: %v", err)
	}

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.Status != entity.CampaignSent {
		t.Fatalf("campaign status %s, want sent", stored.Status)
	}
	if stored.SentAt == nil {
		t.Fatal("completed campaign has no sent time")
	}

	snap := f.events.snapshots[len(f.events.snapshots)-1]
	if snap.Status != entity.CampaignSent {
		t.Fatalf("final snapshot status %s, want sent", snap.Status)
	}
}

func TestDeliverBatchPartialFailure(t *testing.T) {
	f := newFixture(t, 2)
	f.sender.failFor[f.customers[1].Email] = true

	err := f.uc.DeliverBatch(context.Background(), f.batch(0, 2, 1, 1))
	if err != nil {
		t.Fatalf("DeliverBatch: %v", err)
	}

	log := f.logRepo.logs[logKey{f.campaign.ID, f.customers[1].ID}]
	if log == nil || log.Status != entity.DeliveryFailed {
		t.Fatal("failed send not recorded as failed")
	}
	if log.ErrorMessage == nil || *log.ErrorMessage == "" {
		t.Fatal("failed log has no error message")
	}

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.Status != entity.CampaignPartialFailed {
		t.Fatalf("campaign status %s, want partial_failed", stored.Status)
	}
	if stored.DeliveredCount != 1 || stored.FailedCount != 1 {
		t.Fatalf("counts %d/%d, want 1/1", stored.DeliveredCount, stored.FailedCount)
	}
}

func TestDeliverBatchRedeliveryDoesNotResend(t *testing.T) {
	f := newFixture(t, 3)

	batch := f.batch(0, 3, 1, 1)

	if err := f.uc.DeliverBatch(context.Background(), batch); err != nil {
		t.Fatalf("first DeliverBatch: %v", err)
	}

	firstSent := len(f.sender.sent)

	if err := f.uc.DeliverBatch(context.Background(), batch); err != nil {
		t.Fatalf("second DeliverBatch: %v", err)
	}

	if len(f.sender.sent) != firstSent {
		t.Fatalf("redelivery sent %d extra emails", len(f.sender.sent)-firstSent)
	}
	if len(f.logRepo.logs) != 3 {
		t.Fatalf("redelivery changed log rows: %d, want 3", len(f.logRepo.logs))
	}
}

func TestDeliverBatchSkipsMissingCustomer(t *testing.T) {
	f := newFixture(t, 3)

	ghost := uuid.New()
	batch := entity.DeliveryBatch{
		CampaignID:   f.campaign.ID,
		CustomerIDs:  append([]uuid.UUID{ghost}, f.campaign.CustomerIDs[:2]...),
		BatchNumber:  1,
		TotalBatches: 2,
	}

	err := f.uc.DeliverBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("DeliverBatch: %v", err)
	}

	if _, ok := f.logRepo.logs[logKey{f.campaign.ID, ghost}]; ok {
		t.Fatal("missing customer got a delivery log row")
	}
	if len(f.sender.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(f.sender.sent))
	}

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.Status == entity.CampaignSent || stored.Status == entity.CampaignPartialFailed {
		t.Fatalf("campaign completed at %d/%d despite missing customer", stored.DeliveredCount, stored.TotalCount)
	}
}

func TestDeliverBatchesSequentiallyToCompletion(t *testing.T) {
	f := newFixture(t, 250)

	batches := []entity.DeliveryBatch{
		f.batch(0, 100, 1, 3),
		f.batch(100, 200, 2, 3),
		f.batch(200, 250, 3, 3),
	}

	for i, batch := range batches {
		if err := f.uc.DeliverBatch(context.Background(), batch); err != nil {
			t.Fatalf("DeliverBatch %d: %v", i+1, err)
		}
	}

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.Status != entity.CampaignSent {
		t.Fatalf("campaign status %s after final batch, want sent", stored.Status)
	}
	if stored.DeliveredCount != 250 || stored.FailedCount != 0 {
		t.Fatalf("counts %d/%d, want 250/0", stored.DeliveredCount, stored.FailedCount)
	}

	if len(f.events.snapshots) != 3 {
		t.Fatalf("published %d snapshots, want one per batch", len(f.events.snapshots))
	}
	if f.events.snapshots[0].DeliveredCount != 100 || f.events.snapshots[1].DeliveredCount != 200 {
		t.Fatalf("intermediate snapshots report %d then %d delivered, want 100 then 200",
			f.events.snapshots[0].DeliveredCount, f.events.snapshots[1].DeliveredCount)
	}
}

func TestDeliverBatchesConcurrentlyAggregateCorrectly(t *testing.T) {
	f := newFixture(t, 200)

	batches := []entity.DeliveryBatch{
		f.batch(0, 100, 1, 2),
		f.batch(100, 200, 2, 2),
	}

	var wg sync.WaitGroup
	deliverErrs := make([]error, len(batches))

	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch entity.DeliveryBatch) {
			defer wg.Done()

			deliverErrs[i] = f.uc.DeliverBatch(context.Background(), batch)
		}(i, batch)
	}
	wg.Wait()

	for i, err := range deliverErrs {
		if err != nil {
			t.Fatalf("DeliverBatch %d: %v", i+1, err)
		}
	}

	// Counts come from recounting log rows, so whichever batch finishes
	// last must land on the full totals, never a sum of stale reads.
	if len(f.logRepo.logs) != 200 {
		t.Fatalf("%d delivery log rows, want 200 with no duplicates", len(f.logRepo.logs))
	}
	if len(f.sender.sent) != 200 {
		t.Fatalf("sent %d emails, want exactly 200", len(f.sender.sent))
	}

	delivered, _ := f.logRepo.CountByStatus(context.Background(), f.campaign.ID, entity.DeliverySent)
	failed, _ := f.logRepo.CountByStatus(context.Background(), f.campaign.ID, entity.DeliveryFailed)

	stored, _ := f.campaignRepo.GetByID(context.Background(), f.campaign.ID)
	if stored.DeliveredCount != delivered || stored.FailedCount != failed {
		t.Fatalf("campaign counts %d/%d disagree with log counts %d/%d",
			stored.DeliveredCount, stored.FailedCount, delivered, failed)
	}
	if stored.DeliveredCount != 200 || stored.FailedCount != 0 {
		t.Fatalf("final counts %d/%d, want 200/0", stored.DeliveredCount, stored.FailedCount)
	}
	if stored.Status != entity.CampaignSent {
		t.Fatalf("campaign status %s, want sent", stored.Status)
	}
	if stored.SentAt == nil {
		t.Fatal("completed campaign has no sent time")
	}
}

func TestDeliverBatchUnknownCampaignDropped(t *testing.T) {
	f := newFixture(t, 1)

	batch := entity.DeliveryBatch{
		CampaignID:   uuid.New(),
		CustomerIDs:  []uuid.UUID{f.customers[0].ID},
		BatchNumber:  1,
		TotalBatches: 1,
	}

	err := f.uc.DeliverBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("unknown campaign should be dropped, got %v", err)
	}

	if len(f.sender.sent) != 0 {
		t.Fatal("unknown campaign triggered sends")
	}
}

func TestDeliverBatchSenderErrorIsNotUseCaseError(t *testing.T) {
	f := newFixture(t, 1)
	f.sender.failFor[f.customers[0].Email] = true

	err := f.uc.DeliverBatch(context.Background(), f.batch(0, 1, 1, 1))
	if err != nil {
		t.Fatalf("send failure must be recorded, not returned: %v", err)
	}

	if errors.Is(err, errs.ErrInvalidPayload) {
		t.Fatal("send failure misclassified as invalid payload")
	}
}
