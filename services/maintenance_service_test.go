package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/kiosk/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

func newMaintenance(t *testing.T, clock *fakeClock, pub Publisher) *MaintenanceServiceImpl {
	t.Helper()
	ms, err := NewMaintenanceService(MaintenanceConfig{
		PasswordHash: testPasswordHash,
		TapCount:     5,
		TapWindow:    2 * time.Second,
		SessionTTL:   10 * time.Minute,
		Secret:       []byte("test-secret"),
	}, pub, clock.Now)
	require.NoError(t, err)
	return ms
}

func TestMaintenance_FiveQuickTapsPrompt(t *testing.T) {
	clock := newFakeClock()
	pub := &fakePublisher{}
	ms := newMaintenance(t, clock, pub)

	for i := 1; i <= 4; i++ {
		res := ms.Tap()
		assert.Equal(t, i, res.Count)
		assert.False(t, res.Prompt)
		clock.Advance(1500 * time.Millisecond)
	}
	res := ms.Tap()
	assert.True(t, res.Prompt)
	assert.Equal(t, 5, res.Required)

	// The sequence restarts after a prompt
	assert.Equal(t, 1, ms.Tap().Count)

	events := pub.Topic(proto.TopicMaintenance)
	require.Len(t, events, 1)
	var evt proto.MaintenanceEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &evt))
	assert.Equal(t, "prompt", evt.Action)
}

func TestMaintenance_SlowTapResetsSequence(t *testing.T) {
	clock := newFakeClock()
	ms := newMaintenance(t, clock, nil)

	for i := 0; i < 4; i++ {
		ms.Tap()
		clock.Advance(time.Second)
	}
	clock.Advance(1500 * time.Millisecond) // 2.5s since the last tap

	res := ms.Tap()
	assert.Equal(t, 1, res.Count)
	assert.False(t, res.Prompt)
}

func TestMaintenance_UnlockAuthorizeLock(t *testing.T) {
	clock := newFakeClock()
	pub := &fakePublisher{}
	ms := newMaintenance(t, clock, pub)

	_, err := ms.Unlock("wrong")
	requireCode(t, err, ErrCodeUnauthorized)

	session, err := ms.Unlock("open-sesame")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, clock.Now().Add(10*time.Minute), session.ExpiresAt)
	assert.Equal(t, 1, ms.Sessions())

	require.NoError(t, ms.Authorize(session.Token))

	require.NoError(t, ms.Lock(session.Token))
	requireCode(t, ms.Authorize(session.Token), ErrCodeUnauthorized)
	requireCode(t, ms.Lock(session.Token), ErrCodeUnauthorized)
	assert.Equal(t, 0, ms.Sessions())

	var actions []string
	for _, e := range pub.Topic(proto.TopicMaintenance) {
		var evt proto.MaintenanceEvent
		require.NoError(t, json.Unmarshal(e.Payload, &evt))
		actions = append(actions, evt.Action)
	}
	assert.Equal(t, []string{"denied", "unlock", "lock"}, actions)
}

func TestMaintenance_SessionExpires(t *testing.T) {
	clock := newFakeClock()
	ms := newMaintenance(t, clock, nil)

	session, err := ms.Unlock("open-sesame")
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	require.NoError(t, ms.Authorize(session.Token))

	clock.Advance(2 * time.Minute)
	err = ms.Authorize(session.Token)
	requireCode(t, err, ErrCodeUnauthorized)
	assert.Equal(t, 0, ms.Sessions())
}

func TestMaintenance_RejectsForeignTokens(t *testing.T) {
	clock := newFakeClock()
	ms := newMaintenance(t, clock, nil)

	requireCode(t, ms.Authorize(""), ErrCodeUnauthorized)
	requireCode(t, ms.Authorize("not-a-token"), ErrCodeUnauthorized)

	other, err := NewMaintenanceService(MaintenanceConfig{
		PasswordHash: testPasswordHash,
		TapCount:     5,
		TapWindow:    2 * time.Second,
		SessionTTL:   10 * time.Minute,
		Secret:       []byte("another-secret"),
	}, nil, clock.Now)
	require.NoError(t, err)
	session, err := other.Unlock("open-sesame")
	require.NoError(t, err)

	requireCode(t, ms.Authorize(session.Token), ErrCodeUnauthorized)
}

func TestMaintenance_DisabledWithoutPassword(t *testing.T) {
	ms, err := NewMaintenanceService(MaintenanceConfig{TapCount: 5, TapWindow: time.Second, SessionTTL: time.Minute}, nil, nil)
	require.NoError(t, err)

	_, err = ms.Unlock("")
	requireCode(t, err, ErrCodeUnauthorized)
	_, err = ms.Unlock("anything")
	requireCode(t, err, ErrCodeUnauthorized)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("open-sesame")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("open-sesame")))
}
