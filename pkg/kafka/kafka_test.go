package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
)

type sample struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"query":"isso","count":2}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Query: "isso", Count: 2}, got)

	_, err = DecodeJSON[sample]([]byte(`{"query":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestEncode(t *testing.T) {
	msgs, err := encode(Event{Key: "isso", Value: sample{Query: "isso", Count: 1}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("isso"), msgs[0].Key)
	assert.JSONEq(t, `{"query":"isso","count":1}`, string(msgs[0].Value))

	_, err = encode(Event{Key: "bad", Value: make(chan int)})
	assert.ErrorContains(t, err, `marshaling event "bad"`)
}

func TestPublishBatch_EncodeFailureSendsNothing(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "kb-search-events")
	defer p.Close()

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "ok", Value: sample{}},
		{Key: "bad", Value: func() {}},
	})
	assert.ErrorContains(t, err, "marshaling event")
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Stats() kafka.ReaderStats {
	return kafka.ReaderStats{Lag: 7}
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker not available")},
		messages: []kafka.Message{
			{Offset: 1, Value: []byte(`{"query":"isso"}`)},
			{Offset: 2, Value: []byte(`{`)},
			{Offset: 3, Value: []byte(`{"query":"ao"}`)},
		},
	}
	c := newConsumer(reader, "kb-search-events", func(_ context.Context, _, value []byte) error {
		_, err := DecodeJSON[sample](value)
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 3}, reader.commits())
	assert.True(t, reader.closed)
	assert.Equal(t, ConsumerStats{Processed: 2, Failed: 1, Lag: 7}, c.Stats())
}
