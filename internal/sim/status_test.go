package sim

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		want Status
	}{
		{"realtime", Realtime{}},
		{"", Realtime{}},
		{"simulate", SimulateAndRender{}},
		{"paused", Paused{}},
		{"record", Record{FPS: 24}},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.name, 24)
		if err != nil {
			t.Fatalf("%q: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.name, tt.want, got)
		}
	}

	if _, err := ParseStatus("warp", 0); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNextStatus(t *testing.T) {
	var s Status = Realtime{}
	want := []Status{SimulateAndRender{}, Paused{}, Realtime{}}
	for _, w := range want {
		s = NextStatus(s)
		if s != w {
			t.Errorf("expected %v, got %v", w, s)
		}
	}
	if NextStatus(Record{FPS: 30}) != (Realtime{}) {
		t.Error("expected record to cycle back to realtime")
	}
}

func TestStatusString(t *testing.T) {
	if got := (Record{FPS: 30}).String(); got != "record@30fps" {
		t.Errorf("got %s", got)
	}
}

func TestClockLag(t *testing.T) {
	c := Clock{WallTime: 2 * time.Second, SimTime: 1.5}
	if c.Lag() != 0.5 {
		t.Errorf("expected lag 0.5, got %f", c.Lag())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	ff := &fakeFactory{}
	if _, err := New(testScene(), nil, Options{}); err == nil {
		t.Error("expected error for nil factory")
	}
	if _, err := New(testScene(), ff.build, Options{Status: Record{}}); err == nil {
		t.Error("expected error for zero fps")
	}
	bad := testScene()
	bad.Name = "broken"
	if _, err := New(bad, ff.build, Options{}); err == nil {
		t.Error("expected build error")
	}
}
