package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestNATSPublish(t *testing.T) {
	nc := startNATS(t)

	got := make(chan *nats.Msg, 2)
	sub, err := nc.ChanSubscribe("politician.>", got)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	ts := time.UnixMilli(1700000000000).UTC()
	p := domain.Politician{ID: "janedoe", Name: "Jane Doe", Title: "Senator", State: "OH", FullDetails: true, LastUpdated: ts}
	pub := NewNATS(nc)
	if err := pub.Publish(context.Background(), SubjectDossierRefreshed, FromPolitician(p, "req-1")); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-got:
		if msg.Subject != SubjectDossierRefreshed {
			t.Fatalf("unexpected subject %q", msg.Subject)
		}
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.ID != "janedoe" || ev.Name != "Jane Doe" || !ev.FullDetails || ev.RequestID != "req-1" || !ev.At.Equal(ts) {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNopPublish(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), SubjectIdentified, Event{}); err != nil {
		t.Fatal(err)
	}
}
