package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/middleware"
)

// SubscriptionHandler serves channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Channels      cache.ChannelCache
	Users         middleware.UserLoader
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	channelID, err := idParam(r, "channelId", "channel")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if channelID == caller.ID {
		respondError(ctx, w, apperrors.InvalidInput("you cannot subscribe to your own channel"))
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, caller.ID, channelID)
	if err != nil {
		respondError(ctx, w, notFoundAs(err, "channel"))
		return
	}

	h.invalidate(r, caller.Username, channelID)

	message := "unsubscribed successfully"
	if subscribed {
		message = "subscribed successfully"
	}
	respondJSON(ctx, w, http.StatusOK, subscriptionResponse{IsSubscribed: subscribed}, message)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := idParam(r, "channelId", "channel")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	subscribers, err := h.Subscriptions.Subscribers(ctx, channelID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, subscribers, "subscribers fetched successfully")
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID, err := idParam(r, "subscriberId", "subscriber")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	channels, err := h.Subscriptions.SubscribedChannels(ctx, subscriberID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, channels, "subscribed channels fetched successfully")
}

// invalidate drops the cached profiles of both sides of a subscription. The
// channel is cached by username, so its id is resolved first.
func (h SubscriptionHandler) invalidate(r *http.Request, subscriber, channelID string) {
	if h.Channels == nil {
		return
	}
	ctx := r.Context()
	h.Channels.Invalidate(ctx, subscriber)

	if h.Users == nil {
		return
	}
	channel, err := h.Users.FindPublicByID(ctx, channelID)
	if err != nil {
		logging.FromContext(ctx).Warn("resolve channel for cache invalidation", "channelId", channelID, "error", err)
		return
	}
	h.Channels.Invalidate(ctx, channel.Username)
}

type subscriptionResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
}
