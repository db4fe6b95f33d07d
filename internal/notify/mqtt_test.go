package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { <-t.done; return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	token   *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic, p.qos, p.payload = topic, qos, payload.([]byte)
	return p.token
}

func completed(err error) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	close(tok.done)
	return tok
}

func TestMQTTSink_Send(t *testing.T) {
	pub := &fakePublisher{token: completed(nil)}
	sink := NewMQTTSink(pub, "swarm/dashboard", 1)

	require.NoError(t, sink.Send(context.Background(), NewReset("s", at)))
	assert.Equal(t, "swarm/dashboard", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	ev, err := Decode(pub.payload)
	require.NoError(t, err)
	assert.Equal(t, KindReset, ev.Type)
}

func TestMQTTSink_BrokerError(t *testing.T) {
	pub := &fakePublisher{token: completed(errors.New("not connected"))}
	err := NewMQTTSink(pub, "t", 0).Send(context.Background(), NewReset("s", at))
	assert.ErrorContains(t, err, "not connected")
}

func TestMQTTSink_ContextDeadline(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{done: make(chan struct{})}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := NewMQTTSink(pub, "t", 0).Send(ctx, NewReset("s", at))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialMQTT_UnreachableBrokerIsNotFatal(t *testing.T) {
	sink, client, err := DialMQTT(MQTTConfig{
		Broker:      "tcp://127.0.0.1:1",
		ClientID:    "swarmctl-test",
		Topic:       "swarm/dashboard",
		ConnectWait: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sink)
	defer client.Disconnect(0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, sink.Send(ctx, NewReset("s", at)))
}
