package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventEncode(t *testing.T) {
	raw := Event{Type: "context.saved", Data: map[string]string{"uuid": "abc"}}.encode()
	want := "event: context.saved\ndata: {\"uuid\":\"abc\"}\n\n"
	if string(raw) != want {
		t.Errorf("encode = %q, want %q", raw, want)
	}

	if got := (Event{Type: "bad", Data: make(chan int)}).encode(); got != nil {
		t.Errorf("unmarshalable payload encoded to %q", got)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "node.created", Data: map[string]string{"path": "/a.txt"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: node.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"/a.txt"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "node.renamed", Data: map[string]string{"uuid": "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: node.renamed") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()

	// Overrun the client buffer (capacity 64) without reading. The broker
	// must neither block nor keep the client around.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "tick", Data: map[string]int{"i": i}})
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n := b.ClientCount(); n != 0 {
					t.Fatalf("clients = %d after disconnect", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber was never disconnected")
		}
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: "node.moved", Data: map[string]string{"uuid": "x"}})
	b.Unsubscribe(ch)
}
