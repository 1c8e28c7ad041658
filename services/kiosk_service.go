package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/settings"
	"github.com/mbocsi/kiosk/transport"
)

const (
	SourceMedia    = "media"
	SourceQuestion = "question"
	SourceRaw      = "raw"
)

// KioskServiceImpl implements KioskService
type KioskServiceImpl struct {
	catalog    *catalog.Catalog
	store      settings.Store
	defaults   proto.Endpoint
	dispatcher Dispatcher
	publisher  Publisher
}

// NewKioskService creates a new kiosk service
func NewKioskService(c *catalog.Catalog, store settings.Store, defaults proto.Endpoint, d Dispatcher, p Publisher) KioskService {
	return &KioskServiceImpl{
		catalog:    c,
		store:      store,
		defaults:   defaults,
		dispatcher: d,
		publisher:  p,
	}
}

// ListArtisans returns the carousel in display order
func (ks *KioskServiceImpl) ListArtisans() ([]ArtisanInfo, error) {
	artisans := ks.catalog.Artisans()
	result := make([]ArtisanInfo, 0, len(artisans))
	for _, a := range artisans {
		result = append(result, convertArtisan(ks.catalog, a))
	}
	return result, nil
}

func (ks *KioskServiceImpl) GetArtisan(id string) (*ArtisanInfo, error) {
	a, ok := ks.catalog.Artisan(id)
	if !ok {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Artisan not found: " + id,
		}
	}
	info := convertArtisan(ks.catalog, a)
	return &info, nil
}

func (ks *KioskServiceImpl) ListQuestions(artisanID string) ([]proto.Question, error) {
	qs, err := ks.catalog.Questions(artisanID)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Artisan not found: " + artisanID,
			Cause:   err,
		}
	}
	return qs, nil
}

// PlayMedia sends the bio or craft command of an artisan card
func (ks *KioskServiceImpl) PlayMedia(ctx context.Context, artisanID, kind string) (*DispatchResult, error) {
	if _, ok := ks.catalog.Artisan(artisanID); !ok {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Artisan not found: " + artisanID,
		}
	}
	mk, err := proto.ParseMediaKind(kind)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Invalid media kind: " + kind,
			Cause:   err,
		}
	}
	cmd, err := ks.catalog.MediaCommand(artisanID, mk)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "No " + string(mk) + " media for artisan " + artisanID,
			Cause:   err,
		}
	}
	return ks.dispatch(ctx, SourceMedia, artisanID, cmd)
}

// AskQuestion sends the command of a question from the artisan's menu
func (ks *KioskServiceImpl) AskQuestion(ctx context.Context, artisanID, key string) (*DispatchResult, error) {
	if _, ok := ks.catalog.Artisan(artisanID); !ok {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Artisan not found: " + artisanID,
		}
	}
	q, err := ks.catalog.Question(artisanID, key)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Question not found: " + key,
			Cause:   err,
		}
	}
	return ks.dispatch(ctx, SourceQuestion, artisanID, proto.Command(q.Key))
}

// SendRaw sends an arbitrary command, used from the maintenance screen
func (ks *KioskServiceImpl) SendRaw(ctx context.Context, command string) (*DispatchResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Command cannot be empty",
		}
	}
	return ks.dispatch(ctx, SourceRaw, "", proto.Command(command))
}

// dispatch reads the endpoint fresh, sends, and reports the outcome on the
// dispatch topic whether or not the send succeeded.
func (ks *KioskServiceImpl) dispatch(ctx context.Context, source, artisanID string, cmd proto.Command) (*DispatchResult, error) {
	ep := settings.Endpoint(ks.store, ks.defaults)
	receipt, err := ks.dispatcher.SendWithReceipt(ctx, ep, cmd)

	evt := proto.DispatchEvent{
		ID:         uuid.NewString(),
		Source:     source,
		Artisan:    artisanID,
		Command:    cmd,
		Endpoint:   ep,
		Generation: receipt.Generation,
		Status:     proto.StatusSent,
		Timestamp:  time.Now().Unix(),
	}
	if err != nil {
		evt.Status = proto.StatusFailed
		evt.Error = err.Error()
		evt.Kind = transport.KindName(err)
	}
	publish(ks.publisher, proto.TopicDispatch, evt)

	if err != nil {
		return nil, dispatchError(err)
	}
	return &DispatchResult{
		ID:         evt.ID,
		Command:    cmd,
		Endpoint:   ep,
		Generation: receipt.Generation,
		Status:     evt.Status,
	}, nil
}
