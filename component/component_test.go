package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeComponent records lifecycle calls into a shared log.
type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	calls    *[]string
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Start(context.Context) error {
	*f.calls = append(*f.calls, "start "+f.name)
	return f.startErr
}
func (f *fakeComponent) Stop(context.Context) error {
	*f.calls = append(*f.calls, "stop "+f.name)
	return f.stopErr
}
func (f *fakeComponent) Health(context.Context) Health { return f.health }

type describedComponent struct {
	fakeComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "http-adapter", Details: "https://api.shop.example"}
}

func newFake(name string, calls *[]string) *fakeComponent {
	return &fakeComponent{name: name, calls: calls, health: Health{Name: name, Status: StatusHealthy}}
}

func TestRegister(t *testing.T) {
	var calls []string
	r := NewRegistry(nil)
	if err := r.Register(newFake("http", &calls)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(newFake("http", &calls)); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if got := r.Get("http"); got == nil || got.Name() != "http" {
		t.Errorf("expected to get registered component, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Error("expected nil for unregistered component")
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 component, got %d", len(r.All()))
	}
}

func TestStartStopOrder(t *testing.T) {
	var calls []string
	r := NewRegistry(nil)
	_ = r.Register(newFake("telemetry", &calls))
	_ = r.Register(&describedComponent{*newFake("http", &calls)})
	_ = r.Register(newFake("session", &calls))

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := []string{
		"start telemetry", "start http", "start session",
		"stop session", "stop http", "stop telemetry",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("lifecycle mismatch (-want +got):\n%s", diff)
	}
}

func TestStartAll_RollsBackOnFailure(t *testing.T) {
	var calls []string
	r := NewRegistry(nil)
	_ = r.Register(newFake("telemetry", &calls))
	_ = r.Register(newFake("http", &calls))
	failing := newFake("session", &calls)
	failing.startErr = fmt.Errorf("no tokens")
	_ = r.Register(failing)

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected error from StartAll")
	}
	want := []string{
		"start telemetry", "start http", "start session",
		"stop http", "stop telemetry",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("lifecycle mismatch (-want +got):\n%s", diff)
	}

	calls = calls[:0]
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll after rollback failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected nothing left to stop, got %v", calls)
	}
}

func TestStopAll(t *testing.T) {
	tests := []struct {
		name    string
		start   bool
		stopErr error
		wantErr bool
		want    []string
	}{
		{"skips unstarted", false, nil, false, nil},
		{"stops started", true, nil, false, []string{"start http", "stop http"}},
		{"reports stop error", true, fmt.Errorf("stop failed"), true, []string{"start http", "stop http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			r := NewRegistry(nil)
			c := newFake("http", &calls)
			c.stopErr = tt.stopErr
			_ = r.Register(c)
			if tt.start {
				_ = r.StartAll(context.Background())
			}
			err := r.StopAll(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("StopAll() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, calls); diff != "" {
				t.Errorf("lifecycle mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealthAll(t *testing.T) {
	var calls []string
	r := NewRegistry(nil)
	http := newFake("http", &calls)
	http.health = Health{Name: "http", Status: StatusDegraded, Message: "circuit open"}
	_ = r.Register(http)
	_ = r.Register(newFake("session", &calls))

	want := []Health{
		{Name: "http", Status: StatusDegraded, Message: "circuit open"},
		{Name: "session", Status: StatusHealthy},
	}
	if diff := cmp.Diff(want, r.HealthAll(context.Background())); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
	if !r.Healthy(context.Background()) {
		t.Error("degraded must still count as healthy")
	}

	bad := newFake("telemetry", &calls)
	bad.health.Status = StatusUnhealthy
	_ = r.Register(bad)
	if r.Healthy(context.Background()) {
		t.Error("expected unhealthy registry")
	}
}
