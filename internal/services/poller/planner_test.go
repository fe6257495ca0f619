package poller

import (
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	pollermocks "github.com/BearBump/ShipBox/internal/services/poller/mocks"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(PlannerConfig{}, nil)
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextCheckDelay_Final() {
	m := &pollermocks.Rand{}
	p := NewPlanner(PlannerConfig{}, m)
	s.Equal(365*24*time.Hour, p.NextCheckDelay(models.StatusDelivered))
	s.Equal(365*24*time.Hour, p.NextCheckDelay(models.StatusCancelled))
	m.AssertNotCalled(s.T(), "Intn", mock.Anything)
}

func (s *PlannerSuite) TestNextCheckDelay_InTransit_UsesRand() {
	m := &pollermocks.Rand{}
	// окно 30..60 минут => Intn(1801)
	m.On("Intn", 1801).Return(600).Once()

	p := NewPlanner(PlannerConfig{}, m)
	s.Equal(40*time.Minute, p.NextCheckDelay(models.StatusInTransit))
	m.AssertExpectations(s.T())
}

func (s *PlannerSuite) TestNextCheckDelay_FixedWindow() {
	m := &pollermocks.Rand{}
	p := NewPlanner(PlannerConfig{InTransitMinDelay: time.Minute, InTransitMaxDelay: time.Minute}, m)
	s.Equal(time.Minute, p.NextCheckDelay(models.StatusOutForDelivery))
	m.AssertNotCalled(s.T(), "Intn", mock.Anything)
}

func (s *PlannerSuite) TestNextCheckDelay_IdleAndProblem() {
	p := NewPlanner(PlannerConfig{IdleDelay: 3 * time.Hour, ProblemDelay: 10 * time.Minute}, &pollermocks.Rand{})
	s.Equal(3*time.Hour, p.NextCheckDelay(models.StatusLabelCreated))
	s.Equal(3*time.Hour, p.NextCheckDelay(models.StatusAwaitingPickup))
	s.Equal(10*time.Minute, p.NextCheckDelay(models.StatusDelayed))
	s.Equal(10*time.Minute, p.NextCheckDelay(models.StatusDeliveryAttempt2))
	s.Equal(10*time.Minute, p.NextCheckDelay(models.StatusReturning))
}

func (s *PlannerSuite) TestNewPlanner_MaxBelowMin() {
	p := NewPlanner(PlannerConfig{InTransitMinDelay: time.Hour, InTransitMaxDelay: time.Minute}, &pollermocks.Rand{})
	s.Equal(time.Hour, p.NextCheckDelay(models.StatusPickedUp))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
