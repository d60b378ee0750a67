package service

import (
	"context"
	"errors"
	"testing"

	"radiator_control/internal/models"
	"radiator_control/internal/protocol"
	"radiator_control/internal/state"
)

// metaMap views an event's Metadata (typed any) as a map for assertions.
func metaMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func newDispatcherFixture(names ...string) (*DispatcherService, *fakeTransport, *memDeviceRepo, *state.Store, *memEventRepo) {
	tr := newFakeTransport()
	repo := newMemDeviceRepo(names...)
	store := state.NewStore()
	events := &memEventRepo{}
	return NewDispatcherService(tr, repo, store, events, nil, nil, testWire), tr, repo, store, events
}

func TestApplyMode_DisabledDeviceGetsEco(t *testing.T) {
	svc, tr, repo, store, events := newDispatcherFixture("Salon", "Cuisine")
	if err := repo.SetDisabled(context.Background(), "Cuisine", true); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ApplyMode(context.Background(), ModeParams{Mode: models.StateComfort, Targets: []string{"Salon", "Cuisine"}})
	if err != nil {
		t.Fatalf("ApplyMode: %v", err)
	}
	if got["Salon"] != models.StateComfort || got["Cuisine"] != models.StateEco {
		t.Fatalf("unexpected applied modes: %v", got)
	}
	if tr.count("Cuisine", models.StateEco) != 1 || tr.count("Cuisine", models.StateComfort) != 0 {
		t.Fatalf("disabled device received wrong command: %v", tr.sent())
	}
	if v, _ := store.Get("Cuisine"); v != models.StateEco {
		t.Fatalf("store Cuisine = %q", v)
	}

	changes := events.ofType(models.EventModeChange)
	if len(changes) != 2 {
		t.Fatalf("expected 2 MODE_CHANGE events, got %d", len(changes))
	}
	for _, e := range changes {
		if metaMap(e.Metadata)["requested"] != models.StateComfort || metaMap(e.Metadata)["source"] != SourceAPI {
			t.Fatalf("unexpected metadata: %v", e.Metadata)
		}
	}
}

func TestApplyMode_NilTargetsMeansAllDevices(t *testing.T) {
	svc, tr, _, _, _ := newDispatcherFixture("A", "B", "C")

	got, err := svc.ApplyMode(context.Background(), ModeParams{Mode: models.StateHorsGel})
	if err != nil {
		t.Fatalf("ApplyMode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 devices, got %v", got)
	}
	for _, m := range tr.sent() {
		if m.From != protocol.ControllerID || m.Command != models.StateHorsGel {
			t.Fatalf("unexpected message %+v", m)
		}
	}
}

func TestApplyMode_ArbitraryModePassesThrough(t *testing.T) {
	svc, tr, _, _, _ := newDispatcherFixture("A")

	got, err := svc.ApplyMode(context.Background(), ModeParams{Mode: " BOOST ", Targets: []string{"A", "Unregistered"}})
	if err != nil {
		t.Fatalf("ApplyMode: %v", err)
	}
	if got["A"] != "BOOST" || got["Unregistered"] != "BOOST" {
		t.Fatalf("unexpected result: %v", got)
	}
	if tr.count("Unregistered", "BOOST") != 1 {
		t.Fatal("explicit target outside registry was not sent")
	}
}

func TestApplyMode_EmptyRegistrySendsNothing(t *testing.T) {
	svc, tr, _, _, _ := newDispatcherFixture()
	tr.connected = false

	got, err := svc.ApplyMode(context.Background(), ModeParams{Mode: models.StateEco})
	if err != nil {
		t.Fatalf("ApplyMode: %v", err)
	}
	if len(got) != 0 || len(tr.sent()) != 0 {
		t.Fatalf("expected nothing sent, got %v", got)
	}
}

func TestApplyMode_InvalidMode(t *testing.T) {
	svc, tr, _, _, _ := newDispatcherFixture("A")

	for _, mode := range []string{"", "  ", protocol.CommandState} {
		if _, err := svc.ApplyMode(context.Background(), ModeParams{Mode: mode}); !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("mode %q: expected ErrInvalidMode, got %v", mode, err)
		}
	}
	if len(tr.sent()) != 0 {
		t.Fatal("invalid mode was published")
	}
}

func TestApplyMode_TransportUnavailable(t *testing.T) {
	svc, tr, _, store, _ := newDispatcherFixture("A")
	tr.connected = false

	if _, err := svc.ApplyMode(context.Background(), ModeParams{Mode: models.StateOff}); !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}
	if _, ok := store.Get("A"); ok {
		t.Fatal("store updated without publish")
	}
}

func TestApplyMode_PublishErrorStopsAndWraps(t *testing.T) {
	svc, tr, _, _, events := newDispatcherFixture("A", "B")
	tr.publishErr = errors.New("broker gone")

	_, err := svc.ApplyMode(context.Background(), ModeParams{Mode: models.StateOff})
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("expected wrapped ErrTransportUnavailable, got %v", err)
	}
	if len(events.ofType(models.EventModeChange)) != 0 {
		t.Fatal("event recorded for a failed publish")
	}
}
