package domain

import (
	"context"
	"testing"
)

func TestSimplePubSub_DeliversToSubscribers(t *testing.T) {
	ps := NewSimplePubSub(4)
	a := ps.Subscribe(RoomTopic("ABCDEF"))
	b := ps.Subscribe(RoomTopic("ABCDEF"))
	other := ps.Subscribe(RoomTopic("ZZZZZZ"))

	ps.Publish(context.Background(), RoomTopic("ABCDEF"), Message{From: "p1", Data: []byte("hi")})

	for _, ch := range []<-chan Message{a, b} {
		msg := <-ch
		if msg.From != "p1" || string(msg.Data) != "hi" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
	select {
	case msg := <-other:
		t.Fatalf("other room received %+v", msg)
	default:
	}
}

func TestSimplePubSub_DropsWhenFullAndUnsubscribes(t *testing.T) {
	ps := NewSimplePubSub(1)
	ch := ps.Subscribe(RoomTopic("ABCDEF"))
	ctx := context.Background()

	ps.Publish(ctx, RoomTopic("ABCDEF"), Message{Data: []byte("1")})
	ps.Publish(ctx, RoomTopic("ABCDEF"), Message{Data: []byte("2")})
	if msg := <-ch; string(msg.Data) != "1" {
		t.Fatalf("got %q", msg.Data)
	}

	ps.Unsubscribe(RoomTopic("ABCDEF"), ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	ps.Publish(ctx, RoomTopic("ABCDEF"), Message{Data: []byte("3")})
}
