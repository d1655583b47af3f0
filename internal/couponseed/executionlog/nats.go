package executionlog

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NatsNotifier publishes every appended entry to a NATS subject so dashboards can follow a run.
// Publishing is best effort: a failed publish is logged and never fails the append.
type NatsNotifier struct {
	Store
	conn    *nats.Conn
	subject string
}

func NewNatsNotifier(store Store, conn *nats.Conn, subject string) *NatsNotifier {
	return &NatsNotifier{Store: store, conn: conn, subject: subject}
}

func (n *NatsNotifier) Append(ctx context.Context, e *Entry) error {
	if err := n.Store.Append(ctx, e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).Warnf("could not encode entry %s", e.ID)
		return nil
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		log.WithError(err).Warnf("could not publish entry %s to %s", e.ID, n.subject)
	}
	return nil
}
