package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"radiator_control/internal/models"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/protocol"
)

func encode(t *testing.T, from, to, command string) []byte {
	t.Helper()
	b, err := protocol.Encode(protocol.Message{From: from, To: to, Command: command}, protocol.FormatLiteral)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func decodeAll(t *testing.T, payloads [][]byte) []protocol.Message {
	t.Helper()
	out := make([]protocol.Message, 0, len(payloads))
	for _, p := range payloads {
		m, err := protocol.Decode(p)
		if err != nil {
			t.Fatalf("reply not decodable: %q: %v", p, err)
		}
		out = append(out, m)
	}
	return out
}

func TestFleet_StateRequest(t *testing.T) {
	f := NewFleet([]string{"Salon", "Cuisine"}, "")

	got := decodeAll(t, f.Handle(encode(t, protocol.ControllerID, "Salon", protocol.CommandState)))
	if len(got) != 1 {
		t.Fatalf("replies = %v", got)
	}
	want := protocol.Message{From: "Salon", To: protocol.ControllerID, Command: models.StateDefault}
	if got[0] != want {
		t.Fatalf("reply = %+v, want %+v", got[0], want)
	}
}

func TestFleet_CommandSetsAndAcknowledges(t *testing.T) {
	f := NewFleet([]string{"Salon"}, models.StateEco)

	got := decodeAll(t, f.Handle(encode(t, protocol.ControllerID, "Salon", models.StateComfort)))
	if len(got) != 1 || got[0].Command != models.StateComfort {
		t.Fatalf("replies = %v", got)
	}
	if st, _ := f.State("Salon"); st != models.StateComfort {
		t.Fatalf("state = %q", st)
	}

	got = decodeAll(t, f.Handle(encode(t, "Tablet", "Salon", protocol.CommandState)))
	if got[0].To != "Tablet" || got[0].Command != models.StateComfort {
		t.Fatalf("reply = %+v", got[0])
	}
}

func TestFleet_Broadcast(t *testing.T) {
	f := NewFleet([]string{"A", "B", "C"}, "", WithMute("B"))

	for _, to := range []string{AddressAll, AddressStar} {
		got := decodeAll(t, f.Handle(encode(t, protocol.ControllerID, to, models.StateHorsGel)))
		if len(got) != 2 || got[0].From != "A" || got[1].From != "C" {
			t.Fatalf("%s: replies = %v", to, got)
		}
	}
	if st, _ := f.State("B"); st != models.StateDefault {
		t.Fatalf("muted device changed to %q", st)
	}
}

func TestFleet_IgnoresNoise(t *testing.T) {
	f := NewFleet([]string{"Salon"}, "", WithMute("Salon"))
	g := NewFleet([]string{"Salon"}, "")

	inputs := [][]byte{
		[]byte("hello"),
		[]byte(`{'FROM': 'Django', 'TO': 'Salon'}`),
		encode(t, "Salon", protocol.ControllerID, models.StateEco),
		encode(t, protocol.ControllerID, "Garage", protocol.CommandState),
	}
	for _, in := range inputs {
		if got := g.Handle(in); len(got) != 0 {
			t.Fatalf("%q produced %q", in, got)
		}
	}
	if got := f.Handle(encode(t, protocol.ControllerID, "Salon", protocol.CommandState)); len(got) != 0 {
		t.Fatal("muted device answered")
	}
}

func TestFleet_JSONReplies(t *testing.T) {
	f := NewFleet([]string{"Salon"}, "", WithFormat(protocol.FormatJSON))
	got := f.Handle(encode(t, protocol.ControllerID, "Salon", protocol.CommandState))
	if len(got) != 1 || got[0][0] != '{' || got[0][1] != '"' {
		t.Fatalf("expected JSON reply, got %q", got)
	}
}

// loopLink publishes straight back into its own inbox, like a broker.
type loopLink struct {
	*mqtt.Inbox
	mu   sync.Mutex
	sent int
}

func (l *loopLink) Publish(topic string, payload []byte) error {
	l.mu.Lock()
	l.sent++
	l.mu.Unlock()
	l.Append(topic, payload)
	return nil
}

func TestFleet_Serve(t *testing.T) {
	link := &loopLink{Inbox: mqtt.NewInbox(0)}
	f := NewFleet([]string{"Salon"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Serve(ctx, link, "test")
		close(done)
	}()

	link.Append("other", encode(t, protocol.ControllerID, "Salon", models.StateOff))
	link.Append("test", encode(t, protocol.ControllerID, "Salon", models.StateEco))

	deadline := time.After(2 * time.Second)
	for {
		if st, _ := f.State("Salon"); st == models.StateEco {
			break
		}
		select {
		case <-deadline:
			t.Fatal("fleet did not handle the command")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	link.mu.Lock()
	defer link.mu.Unlock()
	if link.sent != 1 {
		t.Fatalf("published %d replies, want 1", link.sent)
	}
}
