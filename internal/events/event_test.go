package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/iliyamo/venture-platform/internal/model"
)

func TestEnvelopeKeepsPayloadType(t *testing.T) {
	ev := New("bp-1", ProposalStatusChanged{
		Proposal:       model.InvestmentProposal{ID: "p1", Status: model.ProposalAccepted},
		PreviousStatus: model.ProposalPending,
	})
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"kind":"investment_proposal.status_changed"`) {
		t.Fatalf("kind missing from envelope: %s", raw)
	}

	var back Event
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p, ok := back.Payload.(ProposalStatusChanged)
	if !ok {
		t.Fatalf("payload type = %T", back.Payload)
	}
	if back.ID != ev.ID || back.ActorID != "bp-1" || p.PreviousStatus != model.ProposalPending {
		t.Fatalf("decoded %+v", back)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"id":"x","kind":"seat.reserved","payload":{}}`), &ev)
	if err == nil || !strings.Contains(err.Error(), "unknown event kind") {
		t.Fatalf("err = %v", err)
	}
}

func TestMarshalWithoutPayloadFails(t *testing.T) {
	if _, err := json.Marshal(Event{ID: "x"}); err == nil {
		t.Fatal("expected error for empty event")
	}
}

type failing struct{}

func (failing) Publish(context.Context, Event) error { return errors.New("broker down") }

func TestFallbackDeliversInline(t *testing.T) {
	var got []Kind
	inline := Inline{Handler: HandlerFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev.Kind())
		return nil
	})}
	pub := Fallback{Primary: failing{}, Secondary: inline}
	if err := pub.Publish(context.Background(), New("u", QueryCreated{})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0] != KindQueryCreated {
		t.Fatalf("inline handler saw %v", got)
	}
}
