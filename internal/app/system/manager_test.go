package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name     string
	startErr error
	stopErr  error
	calls    *[]string
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(context.Context) error {
	*s.calls = append(*s.calls, "start:"+s.name)
	return s.startErr
}

func (s *recordingService) Stop(context.Context) error {
	*s.calls = append(*s.calls, "stop:"+s.name)
	return s.stopErr
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var calls []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, calls: &calls}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var calls []string
	m := NewManager()
	m.Register(&recordingService{name: "a", calls: &calls})
	m.Register(&recordingService{name: "b", startErr: errors.New("boom"), calls: &calls})
	m.Register(&recordingService{name: "c", calls: &calls})

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("start must fail")
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var calls []string
	m := NewManager()
	if err := m.Register(&recordingService{name: "a", calls: &calls}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordingService{name: "a", calls: &calls}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestManagerRejectsRegisterAfterStart(t *testing.T) {
	var calls []string
	m := NewManager()
	m.Register(&recordingService{name: "a", calls: &calls})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop(context.Background())

	if err := m.Register(&recordingService{name: "b", calls: &calls}); err == nil {
		t.Fatal("register after start accepted")
	}
}

func TestManagerStopReportsFirstErrorButStopsAll(t *testing.T) {
	var calls []string
	m := NewManager()
	m.Register(&recordingService{name: "a", calls: &calls})
	m.Register(&recordingService{name: "b", stopErr: errors.New("flush failed"), calls: &calls})
	m.Register(&recordingService{name: "c", calls: &calls})

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := m.Stop(ctx)
	if err == nil {
		t.Fatal("stop must surface the error")
	}

	stops := 0
	for _, c := range calls {
		if c == "stop:a" || c == "stop:b" || c == "stop:c" {
			stops++
		}
	}
	if stops != 3 {
		t.Fatalf("only %d services stopped: %v", stops, calls)
	}
}

func TestNoopService(t *testing.T) {
	svc := NoopService{ServiceName: "noop"}
	if svc.Name() != "noop" {
		t.Fatalf("name %q", svc.Name())
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
