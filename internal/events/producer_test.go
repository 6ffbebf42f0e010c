package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

func TestPublishEncodesEvent(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, sarama.NewConfig())
	mock.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e model.Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != model.EventPaymentRecorded || e.OrderID != "o-1" {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewProducerFrom(mock, "", nil)
	err := p.Publish(context.Background(), model.Event{
		Type:    model.EventPaymentRecorded,
		OrderID: "o-1",
		At:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.topic)
	require.NoError(t, p.Close())
}

func TestPublishFailureIsLogged(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, sarama.NewConfig())
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(mock, "orders", nil)
	require.NoError(t, p.Publish(context.Background(), model.Event{Type: model.EventOrderStatusChanged, OrderID: "o-2"}))
	require.NoError(t, p.Close())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, sarama.WaitForLocal, cfg.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, cfg.Producer.Compression)
	assert.Equal(t, 5, cfg.Producer.Retry.Max)
}
