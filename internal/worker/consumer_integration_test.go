package worker_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vectorproxy/internal/config"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/queue"
	"vectorproxy/internal/testutils"
	"vectorproxy/internal/worker"
)

func TestMessageConsumer_NSQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	got := make(chan pipeline.Message, 1)
	sub := new(MockSubmitter)
	sub.On("Submit", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got <- args.Get(1).(pipeline.Message)
	}).Return(queue.Task{ID: "t"}, nil)

	consumer, err := nsq.NewConsumer(config.TopicIngestMessages, "test", nsq.NewConfig())
	require.NoError(t, err)
	consumer.AddHandler(worker.NewMessageConsumer(sub))
	require.NoError(t, consumer.ConnectToNSQD(s.NSQDAddr))
	defer consumer.Stop()

	env, err := worker.NewIngestMessage("ds1", "docs", []byte(`[{"text":"a"}]`))
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, s.NSQ.Publish(config.TopicIngestMessages, body))

	select {
	case msg := <-got:
		require.Equal(t, "ds1", msg.DatasourceID)
		require.Equal(t, `[{"text":"a"}]`, string(msg.Body))
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
