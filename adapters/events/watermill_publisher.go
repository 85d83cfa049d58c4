// Package events publishes auth lifecycle events for other platform services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/blocchat/gatekeeper/ports"
)

const (
	// LoginTopic carries successful admin authentications.
	LoginTopic = "gatekeeper.login"

	// LogoutTopic carries session revocations.
	LogoutTopic = "gatekeeper.logout"
)

// AuthEvent is the payload published on both topics.
type AuthEvent struct {
	Wallet string    `json:"wallet"`
	At     time.Time `json:"at"`
}

// WatermillPublisher implements ports.EventPublisher over a watermill
// publisher (redis streams in production).
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher wraps the given watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, wallet string) error {
	return p.publish(LoginTopic, wallet)
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, wallet string) error {
	return p.publish(LogoutTopic, wallet)
}

func (p *WatermillPublisher) publish(topic, wallet string) error {
	payload, err := json.Marshal(AuthEvent{Wallet: wallet, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}
