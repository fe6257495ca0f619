package poller

import (
	"math/rand"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/status"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	FinalDelay time.Duration // default: 365 days

	InTransitMinDelay time.Duration // default: 30 minutes
	InTransitMaxDelay time.Duration // default: 60 minutes

	IdleDelay    time.Duration // default: 2 hours
	ProblemDelay time.Duration // default: 20 minutes

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		FinalDelay: 365 * 24 * time.Hour,

		InTransitMinDelay: 30 * time.Minute,
		InTransitMaxDelay: 60 * time.Minute,

		IdleDelay:    2 * time.Hour,
		ProblemDelay: 20 * time.Minute,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner решает, когда отправление снова попадёт в выборку воркера.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.FinalDelay <= 0 {
		cfg.FinalDelay = def.FinalDelay
	}
	if cfg.InTransitMinDelay <= 0 {
		cfg.InTransitMinDelay = def.InTransitMinDelay
	}
	if cfg.InTransitMaxDelay <= 0 {
		cfg.InTransitMaxDelay = def.InTransitMaxDelay
	}
	if cfg.InTransitMaxDelay < cfg.InTransitMinDelay {
		cfg.InTransitMaxDelay = cfg.InTransitMinDelay
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = def.IdleDelay
	}
	if cfg.ProblemDelay <= 0 {
		cfg.ProblemDelay = def.ProblemDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) NextCheckDelay(st models.CanonicalStatus) time.Duration {
	if status.IsFinal(st) {
		return p.cfg.FinalDelay
	}
	if status.IsProblem(st) {
		return p.cfg.ProblemDelay
	}
	switch status.CategoryOf(st) {
	case status.CategoryInTransit:
		return p.inTransitDelay()
	case status.CategoryProblem:
		// returning: проблемой не считается, но и ждать, как idle, не стоит
		return p.cfg.ProblemDelay
	default:
		return p.cfg.IdleDelay
	}
}

// inTransitDelay размазывает проверки по окну, чтобы пачка не приходила к провайдеру разом.
func (p *Planner) inTransitDelay() time.Duration {
	min := p.cfg.InTransitMinDelay
	max := p.cfg.InTransitMaxDelay
	if max == min {
		return min
	}
	secMin := int(min.Seconds())
	secMax := int(max.Seconds())
	if secMax < secMin {
		secMax = secMin
	}
	return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
