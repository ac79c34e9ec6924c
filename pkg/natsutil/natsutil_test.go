package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "natsutil-test", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestConnectFailure(t *testing.T) {
	srv := natsserverAddr(t)
	if _, err := Connect(srv, "nobody-home", nil); err == nil {
		t.Fatal("expected connect error")
	}
}

// natsserverAddr returns the URL of a server that has already shut down.
func natsserverAddr(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	url := srv.ClientURL()
	srv.Shutdown()
	srv.WaitForShutdown()
	return url
}

func TestPublishJSON(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.pubsub", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "test.pubsub", payload{Name: "hello", Value: 1}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		var got payload
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Name != "hello" || got.Value != 1 {
			t.Fatalf("unexpected payload %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishPropagatesTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	_, nc := startTestNATS(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.trace", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(ctx, nc, "test.trace", payload{Name: "traced"}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		remoteCtx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		remote := trace.SpanContextFromContext(remoteCtx)
		if remote.TraceID() != traceID {
			t.Fatalf("expected trace %s, got %s", traceID, remote.TraceID())
		}
		if !remote.IsRemote() {
			t.Fatal("extracted span context should be remote")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishMarshalError(t *testing.T) {
	_, nc := startTestNATS(t)
	if err := Publish(context.Background(), nc, "test.bad", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
