package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	require.NoError(t, p.Publish(context.Background(), "t", []byte("k"), []byte("v")))
	require.Len(t, fw.last, 1)
	require.Equal(t, "t", fw.last[0].Topic)
	require.Equal(t, []byte("k"), fw.last[0].Key)
	require.Equal(t, []byte("v"), fw.last[0].Value)
}

func TestProducer_PublishJSON(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	msg := messages.ShipmentStatusChanged{TrackingNumber: "BR1", Status: "delivered", Source: messages.SourceWebhook}
	require.NoError(t, p.PublishJSON(context.Background(), "shipment.status_changed", "BR1", msg))
	require.Len(t, fw.last, 1)
	require.Equal(t, []byte("BR1"), fw.last[0].Key)

	var got messages.ShipmentStatusChanged
	require.NoError(t, json.Unmarshal(fw.last[0].Value, &got))
	require.Equal(t, "delivered", got.Status)
	require.NoError(t, p.Close())
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:0"})
	require.NotNil(t, p)
}
