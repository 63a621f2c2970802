package synchronizer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

func progress(id uuid.UUID, status constants.JobStatus, pct int, msg string) ProgressReceived {
	return ProgressReceived{Event: entity.ProgressEvent{JobID: id, Status: status, Progress: pct, Message: msg}}
}

func submitted(t *testing.T, id uuid.UUID) Machine {
	t.Helper()
	m, effects := Machine{}.Apply(SubmitRequested{Query: "iphone", MaxResults: 5})
	require.Equal(t, Submitting, m.State)
	require.Equal(t, []Effect{DoSubmit{Query: "iphone", MaxResults: 5}}, effects)

	m, effects = m.Apply(SubmitSucceeded{Job: entity.Job{ID: id, Status: constants.JobStatusPending}})
	require.Equal(t, AwaitingProgress, m.State)
	require.Equal(t, []Effect{OpenSubscription{JobID: id}, FetchJob{JobID: id}}, effects)
	return m
}

func TestMachineHappyPath(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)
	assert.Equal(t, 0, m.Progress)

	m, effects := m.Apply(progress(id, constants.JobStatusRunning, 40, "Extracted 2 of 5 items"))
	assert.Empty(t, effects)
	assert.Equal(t, 40, m.Progress)
	assert.Equal(t, "Extracted 2 of 5 items", m.Message)

	m, effects = m.Apply(progress(id, constants.JobStatusCompleted, 100, "Successfully extracted 5 items!"))
	assert.Equal(t, Completed, m.State)
	assert.Equal(t, 100, m.Progress)
	assert.Equal(t, []Effect{CloseSubscription{}, NavigateToDetail{JobID: id}}, effects)

	m, effects = m.Apply(DetailLoaded{Job: entity.Job{ID: id, ResultsCount: 5}})
	assert.Empty(t, effects)
	require.NotNil(t, m.Detail)
	assert.Equal(t, 5, m.Detail.ResultsCount)
}

func TestMachineSubmitFailureReturnsToIdle(t *testing.T) {
	m, _ := Machine{}.Apply(SubmitRequested{Query: ""})
	m, effects := m.Apply(SubmitFailed{Message: "query is required"})
	assert.Equal(t, Idle, m.State)
	assert.Equal(t, "query is required", m.Error)
	assert.Equal(t, []Effect{ShowError{Message: "query is required"}}, effects)

	// a new attempt is allowed
	m, effects = m.Apply(SubmitRequested{Query: "ok", MaxResults: 5})
	assert.Equal(t, Submitting, m.State)
	assert.Empty(t, m.Error)
	assert.Len(t, effects, 1)
}

func TestMachineIgnoresForeignAndStaleEvents(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)
	m, _ = m.Apply(progress(id, constants.JobStatusRunning, 60, "a"))

	next, effects := m.Apply(progress(uuid.New(), constants.JobStatusCompleted, 100, "other job"))
	assert.Equal(t, m, next)
	assert.Empty(t, effects)

	next, _ = m.Apply(progress(id, constants.JobStatusRunning, 20, "late"))
	assert.Equal(t, 60, next.Progress, "progress never decreases")

	m, _ = m.Apply(progress(id, constants.JobStatusFailed, 60, "Error: boom"))
	require.Equal(t, Failed, m.State)
	after, effects := m.Apply(progress(id, constants.JobStatusCompleted, 100, "late terminal"))
	assert.Equal(t, m, after, "nothing changes after a terminal state")
	assert.Empty(t, effects)
}

func TestMachineFailureSurfacesMessage(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)
	m, effects := m.Apply(progress(id, constants.JobStatusFailed, 20, "Error: selector not found"))
	assert.Equal(t, Failed, m.State)
	assert.Equal(t, "Error: selector not found", m.Error)
	assert.Equal(t, []Effect{CloseSubscription{}, ShowError{Message: "Error: selector not found"}}, effects)
}

func TestMachineReconcileFallback(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)

	m, effects := m.Apply(ReconcileDue{})
	assert.Equal(t, []Effect{FetchJob{JobID: id}}, effects)

	m, effects = m.Apply(Reconciled{Job: entity.Job{ID: id, Status: constants.JobStatusRunning, Progress: 33}})
	assert.Empty(t, effects)
	assert.Equal(t, 33, m.Progress)

	errMsg := "exceeded maximum run duration (3m0s)"
	m, effects = m.Apply(Reconciled{Job: entity.Job{ID: id, Status: constants.JobStatusFailed, Progress: 33, ErrorMessage: &errMsg}})
	assert.Equal(t, Failed, m.State)
	assert.Equal(t, errMsg, m.Error)
	assert.Contains(t, effects, Effect(ShowError{Message: errMsg}))
}

func TestMachineCompletedByReconcileKeepsDetail(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)
	m, effects := m.Apply(Reconciled{Job: entity.Job{ID: id, Status: constants.JobStatusCompleted, Progress: 100, ResultsCount: 3}})
	assert.Equal(t, Completed, m.State)
	require.NotNil(t, m.Detail)
	assert.Equal(t, 3, m.Detail.ResultsCount)
	assert.Contains(t, effects, Effect(NavigateToDetail{JobID: id}))
}

func TestMachineSubscriptionLoss(t *testing.T) {
	id := uuid.New()
	m := submitted(t, id)

	m, effects := m.Apply(SubscriptionLost{Message: "server closed the stream"})
	assert.False(t, m.Subscribed)
	assert.Equal(t, []Effect{FetchJob{JobID: id}}, effects)

	m, effects = m.Apply(ReconcileDue{})
	assert.True(t, m.Subscribed)
	assert.Equal(t, []Effect{FetchJob{JobID: id}, OpenSubscription{JobID: id}}, effects)

	m, effects = m.Apply(FetchFailed{Message: "connection refused"})
	assert.Equal(t, AwaitingProgress, m.State, "transport errors never settle the job")
	assert.Equal(t, []Effect{ShowError{Message: "connection refused"}}, effects)

	m, _ = m.Apply(FetchFailed{Message: "Job not found", NotFound: true})
	assert.Equal(t, Failed, m.State)
}

func TestMachineTrackAndDiscard(t *testing.T) {
	id := uuid.New()
	m, effects := Machine{}.Apply(TrackRequested{JobID: id})
	assert.Equal(t, AwaitingProgress, m.State)
	assert.Equal(t, []Effect{OpenSubscription{JobID: id}, FetchJob{JobID: id}}, effects)

	m, effects = m.Apply(Discarded{})
	assert.Equal(t, []Effect{CloseSubscription{}}, effects)
	_, effects = m.Apply(Discarded{})
	assert.Empty(t, effects)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-progress", AwaitingProgress.String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Submitting.Terminal())
}
