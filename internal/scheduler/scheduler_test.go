package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/models"
)

type fakeRunner struct {
	mu      sync.Mutex
	created []uuid.UUID
	started []uuid.UUID
}

func (f *fakeRunner) CreateRace(context.Context) (*models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := models.NewRace()
	f.created = append(f.created, r.ID)
	return r, nil
}

func (f *fakeRunner) StartRace(_ context.Context, id uuid.UUID) (*models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	r := models.NewRace()
	r.ID = id
	r.Status = models.RaceStatusRunning
	return r, nil
}

func (f *fakeRunner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), len(f.started)
}

func TestRunCycleStartsRaceAfterWindow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)

	r, err := s.RunCycle(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusRunning, r.Status)
	require.Len(t, runner.started, 1)
	assert.Equal(t, runner.created[0], runner.started[0])
}

func TestRunCycleCancelledDuringWindow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := s.RunCycle(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	created, started := runner.counts()
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, started, "a race whose window was interrupted stays pending")
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) CreateRace(ctx context.Context) (*models.Race, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*models.Race)
	return r, args.Error(1)
}

func (m *mockRunner) StartRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.Race)
	return r, args.Error(1)
}

func TestRunCycleStartFailureLeavesRacePending(t *testing.T) {
	pending := models.NewRace()
	runner := &mockRunner{}
	runner.On("CreateRace", mock.Anything).Return(pending, nil).Once()
	runner.On("StartRace", mock.Anything, pending.ID).Return(nil, models.ErrRaceAlreadyRunning).Once()

	s := NewScheduler(runner, nil)
	r, err := s.RunCycle(context.Background(), 0)
	assert.ErrorIs(t, err, models.ErrRaceAlreadyRunning)
	require.NotNil(t, r)
	assert.Equal(t, models.RaceStatusPending, r.Status)
	runner.AssertExpectations(t)
}

func TestRunCycleCreateFailure(t *testing.T) {
	runner := &mockRunner{}
	runner.On("CreateRace", mock.Anything).Return(nil, models.NewPersistenceError("create race", errors.New("disk full"))).Once()

	s := NewScheduler(runner, nil)
	r, err := s.RunCycle(context.Background(), time.Hour)
	assert.Nil(t, r)
	assert.True(t, models.IsPersistence(err))
	runner.AssertNotCalled(t, "StartRace", mock.Anything, mock.Anything)
}

func TestScheduleRacesValidation(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)

	assert.Error(t, s.ScheduleRaces("not a schedule", time.Second))
	assert.Error(t, s.ScheduleRaces("@every 1m", -time.Second))
	assert.Error(t, s.Start(), "nothing scheduled yet")
}

func TestSchedulerLifecycle(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)

	require.NoError(t, s.ScheduleRaces("@every 1s", 0))
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.NextRun().IsZero())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleRaces("@every 1m", 0))

	require.Eventually(t, func() bool {
		_, started := runner.counts()
		return started >= 1
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

func TestStopInterruptsOpenWindow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)

	require.NoError(t, s.ScheduleRaces("@every 1s", time.Hour))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		created, _ := runner.counts()
		return created >= 1
	}, 3*time.Second, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("stop did not interrupt the betting window")
	}
	_, started := runner.counts()
	assert.Equal(t, 0, started)
}
