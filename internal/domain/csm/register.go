package csm

import (
	"context"
	"log/slog"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

// onRegister allocates a new channel for the client, persists its
// subscription row via SD, and returns the push endpoint it should use.
// Per spec.md §4.1.6 a duplicate registration for a channel ID that's
// already live on this connection is reported, not silently accepted; the
// duplicate check is against the channels this session has actually
// registered, not against in-flight direct notifications.
func (c *Client) onRegister(ctx context.Context, f model.RegisterFrame) ([]model.ServerMessage, error) {
	channelID := f.ChannelID
	if channelID == "" {
		channelID = newChannelID()
	}

	if _, dup := c.channels[channelID]; dup {
		return []model.ServerMessage{model.RegisterResponse{
			Status:    model.StatusDuplicateChannel,
			ChannelID: channelID,
			Reason:    "channel already registered on this connection",
		}}, nil
	}

	if err := c.driver.StoreSubscription(ctx, c.UAID, channelID); err != nil {
		c.logger.Warn("failed to persist subscription", slog.String("channel_id", channelID), slog.Any("err", err))
		return []model.ServerMessage{model.RegisterResponse{
			Status:    model.StatusInternalError,
			ChannelID: channelID,
			Reason:    "failed to persist subscription",
		}}, nil
	}
	c.channels[channelID] = struct{}{}

	endpoint := c.endpoint.BuildEndpoint(c.UAID, channelID)
	return []model.ServerMessage{model.RegisterResponse{
		Status:       model.StatusOK,
		ChannelID:    channelID,
		PushEndpoint: endpoint,
	}}, nil
}

// onUnregister releases a channel: the subscription row is deleted, and the
// channel is dropped from this session's live set regardless of whether it
// was ever actually registered. A not-found row is treated as success since
// the end state the caller wants (no further notifications for this
// channel) already holds.
func (c *Client) onUnregister(ctx context.Context, f model.UnregisterFrame) ([]model.ServerMessage, error) {
	delete(c.channels, f.ChannelID)
	if err := c.driver.RemoveSubscription(ctx, c.UAID, f.ChannelID); err != nil && !storage.IsNotFound(err) {
		return nil, err
	}
	return []model.ServerMessage{model.UnregisterResponse{
		Status:    model.StatusOK,
		ChannelID: f.ChannelID,
	}}, nil
}
