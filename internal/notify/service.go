// Package notify delivers user facing notifications by publishing them
// to a Kafka topic consumed by the push delivery pipeline.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	kafkaLib "github.com/segmentio/kafka-go"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/contactchecker"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaLib.Message) error
}

const (
	typeNewDevice     = "new-device-detected"
	typeBindPushToken = "bind-push-token"
	typeOTPCode       = "otp-code"
)

// notification is the wire format consumed by the delivery pipeline.
type notification struct {
	Type        string    `json:"type"`
	Identifier  string    `json:"identifier"`
	Message     string    `json:"message,omitempty"`
	PushToken   string    `json:"push_token,omitempty"`
	DeviceModel string    `json:"device_model,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// service is an implementation of auth.NotificationService.
type service struct {
	logger log.Logger
	writer messageWriter
}

// NewDeviceDetected notifies a user that their account was activated on
// an additional device.
func (s *service) NewDeviceDetected(ctx context.Context, identifier string, headers auth.Headers) error {
	if identifier == "" {
		return auth.ErrBadRequest("identifier is required")
	}

	message := "Your account was activated on a new device"
	if headers.DeviceModel != "" {
		message = fmt.Sprintf("Your account was activated on %s", headers.DeviceModel)
	}

	return s.publish(ctx, &notification{
		Type:        typeNewDevice,
		Identifier:  identifier,
		Message:     message,
		DeviceModel: headers.DeviceModel,
		Platform:    headers.Platform,
		CreatedAt:   time.Now().UTC(),
	})
}

// BindPushToken binds a device push token to a user so later
// notifications can be delivered.
func (s *service) BindPushToken(ctx context.Context, identifier, pushToken string) error {
	if identifier == "" || pushToken == "" {
		return auth.ErrBadRequest("identifier and push token are required")
	}

	return s.publish(ctx, &notification{
		Type:       typeBindPushToken,
		Identifier: identifier,
		PushToken:  pushToken,
		CreatedAt:  time.Now().UTC(),
	})
}

// SendOTPCode delivers a one time code to a phone number or email
// address. The destination format is validated for the channel before
// the message is accepted.
func (s *service) SendOTPCode(ctx context.Context, identifier, destination, channel, code string) error {
	if identifier == "" || code == "" {
		return auth.ErrBadRequest("identifier and code are required")
	}

	isValid := contactchecker.Validator(contactchecker.Channel(channel))
	if !isValid(destination) {
		return auth.ErrBadRequest("destination is not valid for the delivery channel")
	}

	return s.publish(ctx, &notification{
		Type:        typeOTPCode,
		Identifier:  identifier,
		Message:     code,
		Destination: destination,
		Channel:     channel,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *service) publish(ctx context.Context, n *notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return s.writer.WriteMessages(ctx, kafkaLib.Message{
		Key:   []byte(n.Identifier),
		Value: b,
	})
}
