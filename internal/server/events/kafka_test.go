package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaPublisher{w: fw}

	require.NoError(t, p.Publish(context.Background(), "chat-1", []byte(`{"id":"m-1"}`)))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "chat-1", string(fw.msgs[0].Key))
	assert.Equal(t, `{"id":"m-1"}`, string(fw.msgs[0].Value))
	assert.False(t, fw.msgs[0].Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublisher_PropagatesError(t *testing.T) {
	p := &KafkaPublisher{w: &fakeWriter{err: errors.New("no brokers")}}
	assert.EqualError(t, p.Publish(context.Background(), "k", nil), "no brokers")
}

func TestNewKafkaPublisher_Config(t *testing.T) {
	p := NewKafkaPublisher(" kafka-1:9092, ,kafka-2:9092", "messages.created")
	w, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "messages.created", w.Topic)
	assert.Contains(t, w.Addr.String(), "kafka-1:9092")
	assert.Contains(t, w.Addr.String(), "kafka-2:9092")
	assert.True(t, w.Async)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, splitBrokers("a:1, b:2,"))
	assert.Nil(t, splitBrokers(""))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "k", []byte("v")))
	assert.NoError(t, p.Close())
}
