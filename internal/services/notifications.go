package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PushTokenLookup resolves a user's device token; nil means none is registered
type PushTokenLookup func(ctx context.Context, userID string) (*string, error)

// Notifications delivers activity on a user's posts: over the live connection when the
// user has one, otherwise as a push notification.
type Notifications struct {
	hub       *WSHub
	pusher    Pusher
	pushToken PushTokenLookup
	timeout   time.Duration
}

// NewNotifications creates a notifier. pusher may be nil.
func NewNotifications(hub *WSHub, pusher Pusher, lookup PushTokenLookup) *Notifications {
	return &Notifications{
		hub:       hub,
		pusher:    pusher,
		pushToken: lookup,
		timeout:   10 * time.Second,
	}
}

// Notify delivers msg to userID without blocking the caller. Failures are logged.
func (n *Notifications) Notify(userID string, msg WSMessage) {
	if n == nil || userID == "" || userID == msg.ActorID {
		return
	}

	if n.hub != nil && n.hub.IsOnline(userID) {
		err := n.hub.SendToUser(userID, msg)
		if err == nil {
			return
		}
		log.Debug().Err(err).Str("user_id", userID).Msg("Live delivery failed, falling back to push")
	}

	if n.pusher == nil || n.pushToken == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		token, err := n.pushToken(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to look up push token")
			return
		}
		if token == nil || *token == "" {
			return
		}
		if err := n.pusher.Push(ctx, *token, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
		}
	}()
}
