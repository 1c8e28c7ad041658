package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/transport"
)

// convertArtisan converts a catalog artisan to ArtisanInfo
func convertArtisan(c *catalog.Catalog, a proto.Artisan) ArtisanInfo {
	media := make([]proto.MediaKind, 0, len(proto.MediaKinds))
	for _, kind := range proto.MediaKinds {
		if _, ok := a.Commands[kind]; ok {
			media = append(media, kind)
		}
	}
	qs, _ := c.Questions(a.ID)
	return ArtisanInfo{
		ID:        a.ID,
		Name:      a.Name,
		Trade:     a.Trade,
		Portrait:  c.Portrait(a),
		Media:     media,
		Questions: len(qs),
	}
}

// convertHandleMeta converts dispatcher metadata to HandleInfo
func convertHandleMeta(meta transport.HandleMetadata) HandleInfo {
	status := "idle"
	switch {
	case meta.Closed:
		status = "closed"
	case meta.Bound && meta.Live:
		status = "bound"
	case meta.Bound:
		status = "dead"
	}

	return HandleInfo{
		Name:        meta.Name,
		Protocol:    meta.Protocol,
		Status:      status,
		LocalAddr:   meta.LocalAddr,
		Generation:  meta.Generation,
		AgeSec:      int64(meta.Age.Seconds()),
		LifetimeSec: int64(meta.Lifetime.Seconds()),
		Binds:       meta.Binds,
		Sent:        meta.Sent,
		Failed:      meta.Failed,
		LastError:   meta.LastError,
	}
}

// dispatchError maps a dispatcher failure to a ServiceError
func dispatchError(err error) error {
	switch {
	case errors.Is(err, transport.ErrInvalidPort):
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Configured port is invalid",
			Cause:   err,
		}
	case errors.Is(err, transport.ErrBind), errors.Is(err, transport.ErrSend):
		return ServiceError{
			Code:    ErrCodeUnavailable,
			Message: "Failed to send command to playback device",
			Cause:   err,
		}
	case errors.Is(err, transport.ErrClosed):
		return ServiceError{
			Code:    ErrCodeUnavailable,
			Message: "Dispatcher is shut down",
			Cause:   err,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ServiceError{
			Code:    ErrCodeTimeout,
			Message: "Request canceled before the command was sent",
			Cause:   err,
		}
	}
	return ServiceError{
		Code:    ErrCodeInternal,
		Message: "Unexpected dispatch failure",
		Cause:   err,
	}
}

// publish sends an event to the feed. A failed publish is logged and never
// fails the action that produced it.
func publish(p Publisher, topic string, payload any) {
	if p == nil {
		return
	}
	if err := p.PublishPayload(topic, payload); err != nil {
		slog.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
