package events

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Change) (Change, bool) {
	t.Helper()
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}, false
	}
}

func TestBroker(t *testing.T) {
	t.Run("Publish Fans Out", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		ctx := context.Background()
		a := b.Subscribe(ctx, 4)
		c := b.Subscribe(ctx, 4)

		b.Publish(Change{Table: "favorites", Action: ActionInsert, ID: "1"})

		for _, ch := range []<-chan Change{a, c} {
			got, ok := receive(t, ch)
			if !ok || got.Table != "favorites" || got.ID != "1" {
				t.Errorf("unexpected change %+v", got)
			}
			if got.At.IsZero() {
				t.Error("expected timestamp to be set")
			}
		}
	})

	t.Run("Slow Subscriber Drops", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		ch := b.Subscribe(context.Background(), 1)
		b.Publish(Change{ID: "1"})
		b.Publish(Change{ID: "2"})

		got, _ := receive(t, ch)
		if got.ID != "1" {
			t.Errorf("expected first change, got %s", got.ID)
		}
		select {
		case extra := <-ch:
			t.Errorf("expected second change to be dropped, got %+v", extra)
		default:
		}
	})

	t.Run("Context Cancel Closes", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch := b.Subscribe(ctx, 1)
		cancel()

		if _, ok := receive(t, ch); ok {
			t.Error("expected channel to be closed")
		}
		if n := b.Subscribers(); n != 0 {
			t.Errorf("expected no subscribers, got %d", n)
		}
	})

	t.Run("Close", func(t *testing.T) {
		b := NewBroker()
		ch := b.Subscribe(context.Background(), 1)
		b.Close()

		if _, ok := receive(t, ch); ok {
			t.Error("expected channel to be closed")
		}
		if _, ok := receive(t, b.Subscribe(context.Background(), 1)); ok {
			t.Error("expected subscription after close to be closed")
		}
		b.Publish(Change{ID: "after"})
	})
}

func TestChangeVisibleTo(t *testing.T) {
	if !(Change{}).VisibleTo("u1") {
		t.Error("global change should be visible")
	}
	if (Change{UserID: "u2"}).VisibleTo("u1") {
		t.Error("other user's change should not be visible")
	}
}
