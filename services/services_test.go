package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/settings"
	"github.com/mbocsi/kiosk/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

const (
	testArtisans = `[
		{"id":"erickson","name":"Erickson","trade":"Blacksmith","portraitPath":"erickson","commands":{"bio":"ERICKSON_BIO","craft":"ERICKSON_CRAFT"}},
		{"id":"moreau","name":"Moreau","trade":"Glassblower","commands":{"bio":"MOREAU_BIO","craft":"MOREAU_CRAFT"}}
	]`
	testQuestions = `{"erickson":{"questions":[{"key":"ERICKSON_Q1","text":"How did you learn?"}]}}`
)

var testDefaults = proto.Endpoint{Host: settings.DefaultHost, Port: settings.DefaultPort}

type sentCommand struct {
	Endpoint proto.Endpoint
	Command  proto.Command
}

// fakeDispatcher records sends instead of touching the network
type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
	meta transport.HandleMetadata
}

func (f *fakeDispatcher) SendWithReceipt(ctx context.Context, ep proto.Endpoint, cmd proto.Command) (transport.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return transport.Receipt{}, f.err
	}
	f.sent = append(f.sent, sentCommand{Endpoint: ep, Command: cmd})
	return transport.Receipt{Generation: 1, LocalAddr: "0.0.0.0:40000", Bytes: len(cmd)}, nil
}

func (f *fakeDispatcher) Meta() transport.HandleMetadata {
	return f.meta
}

func (f *fakeDispatcher) Sent() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCommand, len(f.sent))
	copy(out, f.sent)
	return out
}

type published struct {
	Topic   string
	Payload []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) PublishPayload(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, published{Topic: topic, Payload: data})
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Topic(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	kiosk      KioskService
	settings   SettingsService
	status     StatusService
	store      *settings.MemoryStore
	dispatcher *fakeDispatcher
	publisher  *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := catalog.Parse([]byte(testArtisans), []byte(testQuestions))
	require.NoError(t, err)

	f := &fixture{
		store:      settings.NewMemoryStore(),
		dispatcher: &fakeDispatcher{},
		publisher:  &fakePublisher{},
	}
	f.kiosk = NewKioskService(c, f.store, testDefaults, f.dispatcher, f.publisher)
	f.settings = NewSettingsService(f.store, testDefaults, f.publisher, nil)
	f.status = NewStatusService(c, f.store, testDefaults, f.dispatcher)
	return f
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var se ServiceError
	require.True(t, errors.As(err, &se), "expected ServiceError, got %v", err)
	assert.Equal(t, code, se.Code)
}

func TestKiosk_ListArtisans(t *testing.T) {
	f := newFixture(t)

	artisans, err := f.kiosk.ListArtisans()
	require.NoError(t, err)
	require.Len(t, artisans, 2)
	assert.Equal(t, "erickson", artisans[0].ID)
	assert.Equal(t, []proto.MediaKind{proto.MediaBio, proto.MediaCraft}, artisans[0].Media)
	assert.Equal(t, 1, artisans[0].Questions)
	assert.Equal(t, "default", artisans[1].Portrait)

	_, err = f.kiosk.GetArtisan("nobody")
	requireCode(t, err, ErrCodeNotFound)

	_, err = f.kiosk.ListQuestions("nobody")
	requireCode(t, err, ErrCodeNotFound)
}

func TestKiosk_PlayMediaUsesStoredEndpoint(t *testing.T) {
	f := newFixture(t)

	res, err := f.kiosk.PlayMedia(context.Background(), "erickson", "bio")
	require.NoError(t, err)
	assert.Equal(t, proto.Command("ERICKSON_BIO"), res.Command)
	assert.Equal(t, testDefaults, res.Endpoint, "defaults apply until an endpoint is saved")
	assert.Equal(t, proto.StatusSent, res.Status)
	assert.NotEmpty(t, res.ID)

	require.NoError(t, settings.SaveEndpoint(f.store, proto.Endpoint{Host: "10.0.0.42", Port: "5000"}))
	_, err = f.kiosk.PlayMedia(context.Background(), "moreau", "CRAFT")
	require.NoError(t, err)

	sent := f.dispatcher.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, sentCommand{Endpoint: proto.Endpoint{Host: "10.0.0.42", Port: "5000"}, Command: "MOREAU_CRAFT"}, sent[1],
		"endpoint is re-read on every send")

	events := f.publisher.Topic(proto.TopicDispatch)
	require.Len(t, events, 2)
	var evt proto.DispatchEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &evt))
	assert.Equal(t, SourceMedia, evt.Source)
	assert.Equal(t, "erickson", evt.Artisan)
	assert.Equal(t, res.ID, evt.ID)
}

func TestKiosk_PlayMediaRejects(t *testing.T) {
	f := newFixture(t)

	_, err := f.kiosk.PlayMedia(context.Background(), "nobody", "bio")
	requireCode(t, err, ErrCodeNotFound)

	_, err = f.kiosk.PlayMedia(context.Background(), "erickson", "tour")
	requireCode(t, err, ErrCodeInvalidInput)

	assert.Empty(t, f.dispatcher.Sent())
	assert.Empty(t, f.publisher.Topic(proto.TopicDispatch))
}

func TestKiosk_AskQuestion(t *testing.T) {
	f := newFixture(t)

	res, err := f.kiosk.AskQuestion(context.Background(), "erickson", "ERICKSON_Q1")
	require.NoError(t, err)
	assert.Equal(t, proto.Command("ERICKSON_Q1"), res.Command)

	_, err = f.kiosk.AskQuestion(context.Background(), "moreau", "ERICKSON_Q1")
	requireCode(t, err, ErrCodeNotFound)
	_, err = f.kiosk.AskQuestion(context.Background(), "nobody", "ERICKSON_Q1")
	requireCode(t, err, ErrCodeNotFound)

	assert.Len(t, f.dispatcher.Sent(), 1)
}

func TestKiosk_SendRaw(t *testing.T) {
	f := newFixture(t)

	_, err := f.kiosk.SendRaw(context.Background(), "  ")
	requireCode(t, err, ErrCodeInvalidInput)

	res, err := f.kiosk.SendRaw(context.Background(), "PING")
	require.NoError(t, err)
	assert.Equal(t, proto.Command("PING"), res.Command)
}

func TestKiosk_DispatchFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		kind string
	}{
		{"invalid port", &transport.DispatchError{Kind: transport.ErrInvalidPort, Err: proto.ErrPortRange}, ErrCodeInvalidInput, "invalid_port"},
		{"bind", &transport.DispatchError{Kind: transport.ErrBind, Err: errors.New("no ports")}, ErrCodeUnavailable, "bind_failure"},
		{"send", &transport.DispatchError{Kind: transport.ErrSend, Addr: "10.0.0.1:5000", Err: errors.New("network unreachable")}, ErrCodeUnavailable, "send_failure"},
		{"closed", transport.ErrClosed, ErrCodeUnavailable, "closed"},
		{"canceled", context.Canceled, ErrCodeTimeout, "unknown"},
		{"other", errors.New("boom"), ErrCodeInternal, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.dispatcher.err = tt.err

			_, err := f.kiosk.PlayMedia(context.Background(), "erickson", "bio")
			requireCode(t, err, tt.code)
			assert.ErrorIs(t, err, tt.err)

			events := f.publisher.Topic(proto.TopicDispatch)
			require.Len(t, events, 1, "failures are reported on the feed too")
			var evt proto.DispatchEvent
			require.NoError(t, json.Unmarshal(events[0].Payload, &evt))
			assert.Equal(t, proto.StatusFailed, evt.Status)
			assert.Equal(t, tt.kind, evt.Kind)
		})
	}
}

func TestSettings_UpdateEndpoint(t *testing.T) {
	f := newFixture(t)

	ep, err := f.settings.GetEndpoint()
	require.NoError(t, err)
	assert.Equal(t, testDefaults, ep)

	err = f.settings.UpdateEndpoint(proto.Endpoint{Host: "10.0.0.42", Port: "5000"})
	require.NoError(t, err)
	ep, _ = f.settings.GetEndpoint()
	assert.Equal(t, proto.Endpoint{Host: "10.0.0.42", Port: "5000"}, ep)
	assert.Len(t, f.publisher.Topic(proto.TopicSettings), 1)

	err = f.settings.UpdateEndpoint(proto.Endpoint{Host: "", Port: "5000"})
	requireCode(t, err, ErrCodeInvalidInput)
	err = f.settings.UpdateEndpoint(proto.Endpoint{Host: "10.0.0.42", Port: "99999"})
	requireCode(t, err, ErrCodeInvalidInput)
	err = f.settings.UpdateEndpoint(proto.Endpoint{Host: "192.168.001.100", Port: "5000"})
	requireCode(t, err, ErrCodeInvalidInput)

	ep, _ = f.settings.GetEndpoint()
	assert.Equal(t, proto.Endpoint{Host: "10.0.0.42", Port: "5000"}, ep)
	assert.Len(t, f.publisher.Topic(proto.TopicSettings), 1)
}

func TestSettings_Discover(t *testing.T) {
	f := newFixture(t)
	_, err := f.settings.Discover(context.Background())
	requireCode(t, err, ErrCodeUnavailable)

	found := []DeviceInfo{{Name: "player-1", Endpoint: proto.Endpoint{Host: "10.0.0.7", Port: "5000"}}}
	svc := NewSettingsService(f.store, testDefaults, nil, func(ctx context.Context) ([]DeviceInfo, error) {
		return found, nil
	})
	devices, err := svc.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, found, devices)

	svc = NewSettingsService(f.store, testDefaults, nil, func(ctx context.Context) ([]DeviceInfo, error) {
		return nil, errors.New("no multicast")
	})
	_, err = svc.Discover(context.Background())
	requireCode(t, err, ErrCodeUnavailable)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.meta = transport.HandleMetadata{
		Name:       "udp-dispatcher",
		Protocol:   "udp4",
		Lifetime:   5 * time.Minute,
		Bound:      true,
		Live:       true,
		Generation: 2,
		Binds:      2,
		Sent:       7,
		Age:        90 * time.Second,
	}

	st, err := f.status.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Artisans)
	assert.Equal(t, 5, st.Commands)
	assert.Equal(t, testDefaults, st.Endpoint)
	assert.Equal(t, "bound", st.Handle.Status)
	assert.Equal(t, int64(300), st.Handle.LifetimeSec)
	assert.Equal(t, int64(90), st.Handle.AgeSec)
	assert.Equal(t, uint64(7), st.Handle.Sent)
}

func TestConvertHandleMeta_Status(t *testing.T) {
	assert.Equal(t, "idle", convertHandleMeta(transport.HandleMetadata{}).Status)
	assert.Equal(t, "dead", convertHandleMeta(transport.HandleMetadata{Bound: true}).Status)
	assert.Equal(t, "closed", convertHandleMeta(transport.HandleMetadata{Closed: true}).Status)
}

func TestServiceManager(t *testing.T) {
	c, err := catalog.Parse([]byte(testArtisans), nil)
	require.NoError(t, err)

	sm, err := NewServiceManager(Dependencies{
		Catalog:    c,
		Store:      settings.NewMemoryStore(),
		Defaults:   testDefaults,
		Dispatcher: &fakeDispatcher{},
		Maintenance: MaintenanceConfig{
			TapCount:   5,
			TapWindow:  2 * time.Second,
			SessionTTL: time.Minute,
		},
	})
	require.NoError(t, err)

	svc := sm.GetServices()
	assert.NotNil(t, svc.Kiosk)
	assert.NotNil(t, svc.Settings)
	assert.NotNil(t, svc.Maintenance)
	assert.NotNil(t, svc.Status)
}
