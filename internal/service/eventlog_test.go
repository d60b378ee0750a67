package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"radiator_control/internal/models"
)

func fixedZone(name string, offsetSec int) *time.Location {
	return time.FixedZone(name, offsetSec)
}

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

// normalizeToUTC

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want func(time.Time) bool
	}{
		{
			name: "zero time remains zero",
			in:   time.Time{},
			want: func(out time.Time) bool { return out.IsZero() },
		},
		{
			name: "non-UTC converted to UTC preserving instant",
			in:   mustTimeIn(fixedZone("UTC+3", 3*3600), 2025, time.August, 1, 12, 34, 56),
			want: func(out time.Time) bool {
				exp := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeToUTC(tc.in)
			if !tc.want(got) {
				t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
			}
		})
	}
}

// normalizeFilter

func Test_normalizeFilter(t *testing.T) {
	t.Parallel()

	fromLocal := mustTimeIn(fixedZone("UTC+2", 2*3600), 2025, time.September, 10, 10, 0, 0)
	toUTC := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		in         LogFilter
		wantFrom   time.Time
		wantTo     time.Time
		wantType   string
		wantDevice string
		wantLimit  int
		wantErr    error
	}{
		{
			name:      "all zero/empty ok",
			in:        LogFilter{},
			wantLimit: maxLogLimit,
		},
		{
			name: "from after to -> error",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name: "normalize tz, type and device",
			in: LogFilter{
				From:   fromLocal,
				To:     toUTC,
				Type:   " mode_change ",
				Device: " Salon ",
				Limit:  20,
			},
			wantFrom:   time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
			wantTo:     toUTC,
			wantType:   models.EventModeChange,
			wantDevice: "Salon",
			wantLimit:  20,
		},
		{
			name:      "limit is capped",
			in:        LogFilter{Limit: 50000},
			wantLimit: maxLogLimit,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeFilter(tc.in)

			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if !got.From.Equal(tc.wantFrom) {
				t.Fatalf("from: got %v; want %v", got.From, tc.wantFrom)
			}
			if !got.To.Equal(tc.wantTo) {
				t.Fatalf("to: got %v; want %v", got.To, tc.wantTo)
			}
			if got.Type != tc.wantType {
				t.Fatalf("type: got %q; want %q", got.Type, tc.wantType)
			}
			if got.Device != tc.wantDevice {
				t.Fatalf("device: got %q; want %q", got.Device, tc.wantDevice)
			}
			if got.Limit != tc.wantLimit {
				t.Fatalf("limit: got %d; want %d", got.Limit, tc.wantLimit)
			}
		})
	}
}

// EventLogService.List

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	repo := &memEventRepo{events: []models.DeviceEvent{{EventID: "1", Type: models.EventState}}}
	svc := NewEventLogService(repo)

	got, err := svc.List(context.Background(), LogFilter{Type: "state"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if len(repo.filters) != 1 || repo.filters[0].Type != models.EventState {
		t.Fatalf("repo not called with normalized filter: %+v", repo.filters)
	}
}

func TestEventLogService_List_InvalidRangeSkipsRepo(t *testing.T) {
	t.Parallel()

	repo := &memEventRepo{}
	svc := NewEventLogService(repo)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if !IsInvalidFilter(err) {
		t.Fatalf("expected invalid filter error, got %v", err)
	}
	if len(repo.filters) != 0 {
		t.Fatal("repo should not be called")
	}
}

func TestEventLogService_List_PropagatesRepoError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	svc := NewEventLogService(&memEventRepo{listErr: boom})

	if _, err := svc.List(context.Background(), LogFilter{}); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if IsInvalidFilter(boom) {
		t.Fatal("repo error reported as invalid filter")
	}
}
