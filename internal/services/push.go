package services

import (
	"context"
	"fmt"

	"readthis-backend/internal/config"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// Pusher delivers a notification to a device
type Pusher interface {
	Push(ctx context.Context, deviceToken string, msg WSMessage) error
}

// APNsPusher sends notifications through Apple Push Notification service
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher loads the .p12 certificate from cfg. It returns nil, nil when push is not
// configured.
func NewAPNsPusher(cfg config.APNsConfig) (*APNsPusher, error) {
	if cfg.CertFile == "" {
		return nil, nil
	}
	cert, err := certificate.FromP12File(cfg.CertFile, cfg.CertPass)
	if err != nil {
		return nil, fmt.Errorf("failed to load apns certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsPusher{client: client, topic: cfg.Topic}, nil
}

// Push sends msg as an alert
func (p *APNsPusher) Push(ctx context.Context, deviceToken string, msg WSMessage) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     pushPayload(msg),
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

func pushPayload(msg WSMessage) *payload.Payload {
	p := payload.NewPayload().
		AlertBody(msg.Message).
		Sound("default").
		Custom("type", msg.Type)
	if msg.PostTitle != "" {
		p = p.AlertTitle(msg.PostTitle)
	}
	if msg.PostID != "" {
		p = p.Custom("postId", msg.PostID)
	}
	return p
}
