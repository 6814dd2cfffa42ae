package events

import (
	"context"
	"testing"
	"time"

	"github.com/tolelom/xornet/xorname"
)

func TestEmitterDeliversToSubscriber(t *testing.T) {
	e := NewEmitter()
	received := make(chan Event, 1)
	e.Subscribe(MemberJoined, func(ev Event) { received <- ev })

	name := xorname.Hash([]byte("joiner"))
	e.Emit(Event{Type: MemberJoined, Name: name})

	select {
	case ev := <-received:
		if ev.Name != name {
			t.Fatalf("Name = %v, want %v", ev.Name, name)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestEmitterIgnoresOtherEventTypes(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(MemberJoined, func(Event) { called = true })

	e.Emit(Event{Type: MemberLeft})
	if called {
		t.Fatalf("handler for MemberJoined should not fire for MemberLeft")
	}
}

func TestEmitterRecoversFromPanickingHandler(t *testing.T) {
	e := NewEmitter()
	secondCalled := false
	e.Subscribe(Connected, func(Event) { panic("boom") })
	e.Subscribe(Connected, func(Event) { secondCalled = true })

	e.Emit(Event{Type: Connected})
	if !secondCalled {
		t.Fatalf("a panicking handler should not prevent later handlers from running")
	}
}

func TestStreamPushAndNext(t *testing.T) {
	s := NewStream()
	name := xorname.Hash([]byte("peer"))
	s.Push(Event{Type: Connected, Name: name})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := s.Next(ctx)
	if !ok {
		t.Fatalf("expected an event")
	}
	if ev.Name != name {
		t.Fatalf("Name = %v, want %v", ev.Name, name)
	}
}

func TestStreamNextBlocksUntilPush(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan Event, 1)
	go func() {
		ev, ok := s.Next(ctx)
		if ok {
			done <- ev
		}
	}()

	time.Sleep(20 * time.Millisecond)
	s.Push(Event{Type: MessageReceived, Message: []byte("hi")})

	select {
	case ev := <-done:
		if string(ev.Message) != "hi" {
			t.Fatalf("Message = %q, want %q", ev.Message, "hi")
		}
	case <-time.After(time.Second):
		t.Fatalf("Next did not return after Push")
	}
}

func TestStreamNextRespectsContextCancellation(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := s.Next(ctx)
	if ok {
		t.Fatalf("Next should return ok=false for an already-canceled context with no pending events")
	}
}
