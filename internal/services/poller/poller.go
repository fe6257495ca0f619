package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
	ScheduleNextCheck(ctx context.Context, shipmentID uuid.UUID, nextCheckAt time.Time, failCount int32) error
	PurgeWebhookLogs(ctx context.Context, olderThan time.Time) (int64, error)
}

// Syncer обновляет трекинг пачкой; реализуется shipments.Manager.
type Syncer interface {
	SyncMany(ctx context.Context, items []shipments.SyncItem) shipments.SyncReport
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const rateLimitWindow = 70 * time.Second

type Poller struct {
	repo   Repository
	syncer Syncer
	rl     RateLimiter
	log    *zap.Logger

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	lease              time.Duration
	rateLimitPerMinute int64
	now                func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	totalThrottled      atomic.Int64
	totalPurged         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, syncer Syncer, rl RateLimiter, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		repo:               repo,
		syncer:             syncer,
		rl:                 rl,
		log:                log,
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:       30 * time.Second,
		batchSize:          50,
		lease:              5 * time.Minute,
		rateLimitPerMinute: 60,
		now:                func() time.Time { return time.Now().UTC() },
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// Trigger запускает внеочередной цикл; если цикл уже ожидает, повторный вызов ничего не делает.
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalThrottled int64      `json:"totalThrottled"`
	TotalPurged    int64      `json:"totalPurged"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalThrottled: p.totalThrottled.Load(),
		TotalPurged:    p.totalPurged.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now()
	p.lastCycleUnixNano.Store(now.UnixNano())

	claimed, err := p.repo.ClaimDueShipments(ctx, now, p.batchSize, p.lease)
	if err != nil {
		p.log.Error("claim due shipments", zap.Error(err))
		p.setLastError(err)
		return
	}
	if len(claimed) == 0 {
		return
	}
	p.totalClaimed.Add(int64(len(claimed)))

	due := p.admit(ctx, now, claimed)
	if len(due) == 0 {
		return
	}

	items := make([]shipments.SyncItem, len(due))
	for i, sh := range due {
		items[i] = shipments.SyncItem{TrackingNumber: sh.TrackingNumber, CarrierID: sh.CarrierID}
	}

	p.inFlight.Add(int64(len(items)))
	rep := p.syncer.SyncMany(ctx, items)
	p.inFlight.Add(-int64(len(items)))

	// Results идут в том же порядке, что и items.
	for i, res := range rep.Results {
		p.reschedule(ctx, due[i], res)
	}
	p.totalProcessed.Add(int64(rep.Total))
	p.totalErrors.Add(int64(rep.Failed))
}

// admit отсеивает отправления перевозчиков, исчерпавших минутный лимит.
// Отсеянные переносятся на следующую минуту без увеличения счётчика ошибок.
func (p *Poller) admit(ctx context.Context, now time.Time, claimed []*models.Shipment) []*models.Shipment {
	if p.rl == nil || p.rateLimitPerMinute <= 0 {
		return claimed
	}

	due := make([]*models.Shipment, 0, len(claimed))
	for _, sh := range claimed {
		allowed, n, err := p.rl.Allow(ctx, rediscache.CarrierMinuteKey(sh.CarrierID, now), p.rateLimitPerMinute, rateLimitWindow)
		if err != nil {
			// без Redis лучше проверить, чем застрять
			p.log.Warn("rate limiter unavailable", zap.Error(err))
			due = append(due, sh)
			continue
		}
		if allowed {
			due = append(due, sh)
			continue
		}
		p.totalThrottled.Add(1)
		p.log.Debug("carrier rate limit exceeded",
			zap.String("carrier", sh.CarrierID),
			zap.Int64("count", n),
		)
		next := now.Truncate(time.Minute).Add(time.Minute)
		if err := p.repo.ScheduleNextCheck(ctx, sh.ID, next, sh.CheckFailCount); err != nil {
			p.log.Warn("reschedule throttled shipment", zap.String("tracking_number", sh.TrackingNumber), zap.Error(err))
		}
	}
	return due
}

func (p *Poller) reschedule(ctx context.Context, sh *models.Shipment, res shipments.SyncResult) {
	now := p.now()
	var (
		next      time.Time
		failCount int32
	)
	if res.Error != "" {
		failCount = sh.CheckFailCount + 1
		next = now.Add(p.planner.BackoffDelay(failCount))
		p.setLastError(errors.New(res.Error))
		p.log.Warn("refresh shipment",
			zap.String("tracking_number", sh.TrackingNumber),
			zap.String("carrier", sh.CarrierID),
			zap.Int32("fail_count", failCount),
			zap.String("error", res.Error),
		)
	} else {
		next = now.Add(p.planner.NextCheckDelay(res.Status))
	}

	if err := p.repo.ScheduleNextCheck(ctx, sh.ID, next, failCount); err != nil {
		p.log.Error("schedule next check", zap.String("tracking_number", sh.TrackingNumber), zap.Error(err))
		p.setLastError(err)
	}
}

// PurgeWebhookLogs удаляет обработанные логи вебхуков старше retention.
func (p *Poller) PurgeWebhookLogs(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.PurgeWebhookLogs(ctx, p.now().Add(-retention))
	if err != nil {
		p.setLastError(err)
		return 0, errors.Wrap(err, "purge webhook logs")
	}
	p.totalPurged.Add(n)
	if n > 0 {
		p.log.Info("webhook logs purged", zap.Int64("count", n))
	}
	return n, nil
}
