package audit

import (
	"strings"
	"testing"
)

func TestNewEvent_Creation(t *testing.T) {
	event := NewEvent(EventCOSESign, ResultSuccess)

	if event.EventType != EventCOSESign {
		t.Errorf("expected EventType=%s, got %s", EventCOSESign, event.EventType)
	}
	if event.Result != ResultSuccess {
		t.Errorf("expected Result=%s, got %s", ResultSuccess, event.Result)
	}
	if event.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}
	if event.Actor.Type != "user" {
		t.Errorf("expected Actor.Type=user, got %s", event.Actor.Type)
	}
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name:    "valid event",
			event:   NewEvent(EventCOSESign, ResultSuccess),
			wantErr: false,
		},
		{
			name: "missing event_type",
			event: &Event{
				Timestamp: "2024-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
		{
			name: "missing result",
			event: &Event{
				EventType: EventCOSESign,
				Timestamp: "2024-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
			},
			wantErr: true,
		},
		{
			name: "missing actor",
			event: &Event{
				EventType: EventCOSEVerify,
				Timestamp: "2024-01-15T10:00:00Z",
				Result:    ResultFailure,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvent_CanonicalJSON_ExcludesHash(t *testing.T) {
	event := NewEvent(EventCOSEVerify, ResultSuccess).
		WithObject(Object{Type: "message", Path: "msg.cbor"}).
		WithContext(Context{Algorithm: "ES256"})
	event.HashPrev = GenesisHash
	event.Hash = "sha256:deadbeef"

	canonical, err := event.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if strings.Contains(string(canonical), "deadbeef") {
		t.Error("CanonicalJSON should not include the Hash field")
	}
	if !strings.Contains(string(canonical), "ES256") {
		t.Error("CanonicalJSON should include context fields")
	}
}

func TestEvent_WithActor(t *testing.T) {
	event := NewEvent(EventCOSESign, ResultSuccess).WithActor(Actor{Type: "service", ID: "cosectl"})
	if event.Actor.Type != "service" || event.Actor.ID != "cosectl" {
		t.Errorf("WithActor did not override actor: %+v", event.Actor)
	}
}

func TestNopWriter(t *testing.T) {
	w := NopWriter{}
	if err := w.Write(NewEvent(EventCOSESign, ResultSuccess)); err != nil {
		t.Errorf("NopWriter.Write should never error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("NopWriter.Close should never error: %v", err)
	}
	if w.LastHash() != GenesisHash {
		t.Errorf("NopWriter.LastHash() = %s, want %s", w.LastHash(), GenesisHash)
	}
}

type failingWriter struct{}

func (failingWriter) Write(*Event) error { return errBoom }
func (failingWriter) Close() error       { return errBoom }
func (failingWriter) LastHash() string   { return GenesisHash }

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

var errBoom = &boomErr{}

func TestMultiWriter_FirstFails(t *testing.T) {
	mw := NewMultiWriter(&failingWriter{}, NopWriter{})
	if err := mw.Write(NewEvent(EventCOSESign, ResultSuccess)); err == nil {
		t.Error("expected error when first writer fails")
	}
}

func TestMultiWriter_Empty(t *testing.T) {
	mw := NewMultiWriter()
	if err := mw.Write(NewEvent(EventCOSESign, ResultSuccess)); err != nil {
		t.Errorf("empty MultiWriter.Write should succeed: %v", err)
	}
	if mw.LastHash() != GenesisHash {
		t.Errorf("empty MultiWriter.LastHash() = %s, want %s", mw.LastHash(), GenesisHash)
	}
}
