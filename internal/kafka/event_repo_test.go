package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	kafkaLib "github.com/segmentio/kafka-go"

	auth "github.com/eidcore/authsteps"
)

type writerMock struct {
	writeMessages func(ctx context.Context, msgs ...kafkaLib.Message) error
	callCount     int
}

func (w *writerMock) WriteMessages(ctx context.Context, msgs ...kafkaLib.Message) error {
	w.callCount++
	return w.writeMessages(ctx, msgs...)
}

func TestEventRepo_Publish(t *testing.T) {
	tt := []struct {
		name  string
		err   error
		isErr bool
	}{
		{
			name: "Publishes event",
		},
		{
			name:  "Fails to publish event",
			err:   errors.New("whoops"),
			isErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var written kafkaLib.Message
			wMock := &writerMock{
				writeMessages: func(ctx context.Context, msgs ...kafkaLib.Message) error {
					if len(msgs) > 0 {
						written = msgs[0]
					}
					return tc.err
				},
			}
			repo := &EventRepository{writer: wMock}

			event := auth.Event{
				Name:       "session-issued",
				TraceID:    "trace-1",
				Identifier: "user.1",
				MobileUID:  "device-1",
			}

			err := repo.Publish(context.Background(), &event)
			if tc.isErr {
				if err == nil {
					t.Fatal("expected publish failure")
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if wMock.callCount != 1 {
				t.Error("incorrect write count:", wMock.callCount)
			}
			if string(written.Key) != "user.1" {
				t.Error("event is not keyed by identifier:", string(written.Key))
			}
			if event.OccurredAt.IsZero() {
				t.Error("occurrence time was not stamped")
			}

			var decoded auth.Event
			if err = json.Unmarshal(written.Value, &decoded); err != nil {
				t.Fatal("failed to unmarshal published event:", err)
			}
			if !cmp.Equal(decoded, event) {
				t.Error("published event differs:", cmp.Diff(event, decoded))
			}
		})
	}
}
