package state

import (
	"fmt"
	"sync"
	"testing"

	"radiator_control/internal/models"
)

func TestStore_SeedKeepsExisting(t *testing.T) {
	s := NewStore()
	s.Set("Salon", models.StateComfort)
	s.Seed("Salon", "Cuisine")

	if v, _ := s.Get("Salon"); v != models.StateComfort {
		t.Fatalf("seed overwrote Salon: %q", v)
	}
	if v, ok := s.Get("Cuisine"); !ok || v != models.StateDefault {
		t.Fatalf("Cuisine = %q, %v; want DEFAULT", v, ok)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Set("Salon", models.StateEco)
	snap := s.Snapshot()
	snap["Salon"] = models.StateOff

	if v, _ := s.Get("Salon"); v != models.StateEco {
		t.Fatalf("snapshot aliased store: %q", v)
	}
}

func TestStore_RenameAndRemove(t *testing.T) {
	s := NewStore()
	s.Set("Salon", models.StateHorsGel)

	if s.Rename("Nope", "X") {
		t.Fatal("rename of unknown device reported success")
	}
	if !s.Rename("Salon", "Living") {
		t.Fatal("rename failed")
	}
	if _, ok := s.Get("Salon"); ok {
		t.Fatal("old name still present")
	}
	if v, _ := s.Get("Living"); v != models.StateHorsGel {
		t.Fatalf("Living = %q", v)
	}

	s.Remove("Living")
	if len(s.Snapshot()) != 0 {
		t.Fatalf("expected empty store, got %v", s.Snapshot())
	}
}

func TestStore_Names(t *testing.T) {
	s := NewStore()
	s.Seed("b", "a", "c")
	got := fmt.Sprint(s.Names())
	if got != "[a b c]" {
		t.Fatalf("Names() = %s", got)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("r%d", i%3)
			for j := 0; j < 100; j++ {
				s.Set(name, models.StateEco)
				_ = s.Snapshot()
				_, _ = s.Get(name)
			}
		}(i)
	}
	wg.Wait()
	if len(s.Snapshot()) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(s.Snapshot()))
	}
}
