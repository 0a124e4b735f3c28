package events

import (
	"context"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(TopicExamAssembled, map[string]uint{"exam_id": 7})
	after := time.Now().UTC()

	if event.ID == "" {
		t.Error("event id must be generated")
	}
	if event.Type != TopicExamAssembled {
		t.Errorf("type = %s, want %s", event.Type, TopicExamAssembled)
	}
	if event.Source != "exam-engine" {
		t.Errorf("source = %s, want exam-engine", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("version = %s, want 1.0", event.Version)
	}
	if event.Timestamp.Before(before) || event.Timestamp.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", event.Timestamp, before, after)
	}

	other := NewEvent(TopicAttemptSubmitted, nil)
	if other.ID == event.ID {
		t.Error("event ids must be unique")
	}
}

func TestMockEventPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewMockEventPublisher()

	if err := publisher.Publish(ctx, TopicAttemptSubmitted, NewEvent(TopicAttemptSubmitted, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := publisher.Publish(ctx, TopicAttemptExpired, NewEvent(TopicAttemptExpired, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := publisher.GetPublishedEvents()
	if len(events) != 2 {
		t.Fatalf("captured %d events, want 2", len(events))
	}
	if events[0].Topic != TopicAttemptSubmitted || events[1].Topic != TopicAttemptExpired {
		t.Errorf("topics = %s, %s", events[0].Topic, events[1].Topic)
	}

	// The returned slice is a copy, mutating it must not affect the publisher
	events[0].Topic = "mutated"
	if publisher.GetPublishedEvents()[0].Topic != TopicAttemptSubmitted {
		t.Error("GetPublishedEvents must return a copy")
	}

	publisher.ClearEvents()
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("ClearEvents must drop captured events")
	}

	if err := publisher.Close(); err != nil {
		t.Errorf("close returned %v", err)
	}
}
