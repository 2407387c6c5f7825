package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	want := Message{Type: TypeAttendance, Body: []byte(`{"id":"r1"}`)}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-messages:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Errorf("consumed %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishCancelled(t *testing.T) {
	q := NewInMemory(0) // unbuffered, nobody consuming
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Type: TypePurge, Body: []byte("stu1")}); err == nil {
		t.Error("Publish() on cancelled context returned nil")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"attendance", Message{Type: TypeAttendance, Body: []byte(`{"id":"r1","date":"2024-03-01"}`)}},
		{"purge", Message{Type: TypePurge, Body: []byte("stu1")}},
		{"body with separator", Message{Type: TypeAttendance, Body: []byte("a|b|c")}},
		{"empty body", Message{Type: TypePurge, Body: []byte("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deserialize(serialize(tt.msg))
			if err != nil {
				t.Fatalf("deserialize() error = %v", err)
			}
			if got.Type != tt.msg.Type || string(got.Body) != string(tt.msg.Body) {
				t.Errorf("round trip = %+v, want %+v", got, tt.msg)
			}
		})
	}
}
