package watch

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "huddle.watch."

// NatsTransport fans events out across instances over core NATS subjects
type NatsTransport struct {
	nc *nats.Conn
}

// NewNatsTransport connects to the NATS servers at url (comma separated)
func NewNatsTransport(url, name string) (*NatsTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NatsTransport{nc: nc}, nil
}

// natsSubject maps a topic onto a single subject token. Dots and wildcards
// would otherwise split or widen the subject.
func natsSubject(topic string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return natsSubjectPrefix + r.Replace(topic)
}

func (t *NatsTransport) Publish(_ context.Context, topic string, payload []byte) error {
	return t.nc.Publish(natsSubject(topic), payload)
}

func (t *NatsTransport) Subscribe(_ context.Context, topic string, deliver func([]byte)) (Subscription, error) {
	sub, err := t.nc.Subscribe(natsSubject(topic), func(m *nats.Msg) {
		deliver(m.Data)
	})
	if err != nil {
		return nil, err
	}
	if err = t.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

func (t *NatsTransport) Close() error {
	return t.nc.Drain()
}
