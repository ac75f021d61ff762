package memory

import (
	"context"
	"testing"
)

func TestPublisherCapturesEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "documents.new", map[string]string{"doc_id": "doc-1"})
	if err != nil || id != "local-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id, err)
	}
	id, err = pub.Publish(context.Background(), "documents.partial", "payload")
	if err != nil || id != "local-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 captured events, got %d", len(msgs))
	}
	if msgs[0].Topic != "documents.new" || msgs[0].ID != "local-1" {
		t.Fatalf("first event not captured correctly: %+v", msgs[0])
	}

	partial := pub.MessagesFor("documents.partial")
	if len(partial) != 1 || partial[0].ID != "local-2" {
		t.Fatalf("topic filter returned %+v", partial)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}
