package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

func sample(pos, vel []dynamo.Vec3) Sample {
	return Sample{
		Positions:  pos,
		Velocities: vel,
		Min:        dynamo.Vec3{},
		Max:        dynamo.V(1, 1, 1),
		Gravity:    dynamo.V(0, -9.81, 0),
	}
}

func TestEnergy(t *testing.T) {
	m := NewEnergy()

	s := sample(
		[]dynamo.Vec3{dynamo.V(0.5, 0.5, 0.5), dynamo.V(0.5, 0, 0.5)},
		[]dynamo.Vec3{dynamo.V(2, 0, 0), dynamo.Vec3{}},
	)
	m.Observe(s)

	// (0.5*4 + 9.81*0.5 + 0) / 2
	expected := (2 + 9.81*0.5) / 2
	if math.Abs(m.Value()-expected) > 1e-9 {
		t.Errorf("expected energy %f, got %f", expected, m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyEmpty(t *testing.T) {
	m := NewEnergy()
	m.Observe(sample(nil, nil))
	if m.Value() != 0 {
		t.Errorf("expected 0 for no particles, got %f", m.Value())
	}
}

func TestEnergyFollowsGravity(t *testing.T) {
	m := NewEnergy()
	s := sample([]dynamo.Vec3{dynamo.V(0.5, 0.5, 0.5)}, []dynamo.Vec3{{}})
	m.Observe(s)
	if math.Abs(m.Value()-9.81*0.5) > 1e-9 {
		t.Fatalf("expected %f, got %f", 9.81*0.5, m.Value())
	}

	// tipped sideways: potential follows x instead of height
	s.Gravity = dynamo.V(4, 0, 0)
	m.Observe(s)
	if math.Abs(m.Value()-(-4*0.5)) > 1e-9 {
		t.Errorf("expected %f after gravity change, got %f", -4*0.5, m.Value())
	}
}

func TestKinetic(t *testing.T) {
	ke := Kinetic([]dynamo.Vec3{dynamo.V(1, 0, 0), dynamo.V(0, 3, 0)})
	if math.Abs(ke-2.5) > 1e-12 {
		t.Errorf("expected 2.5, got %f", ke)
	}
	if Kinetic(nil) != 0 {
		t.Error("expected 0 for no particles")
	}
}

func TestMaxSpeed(t *testing.T) {
	m := NewMaxSpeed()
	pos := []dynamo.Vec3{{}, {}}

	m.Observe(sample(pos, []dynamo.Vec3{dynamo.V(3, 4, 0), dynamo.V(1, 0, 0)}))
	m.Observe(sample(pos, []dynamo.Vec3{dynamo.V(1, 0, 0), dynamo.V(1, 0, 0)}))
	if m.Value() != 5 {
		t.Errorf("expected max speed 5, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestSpeeds(t *testing.T) {
	st := Speeds([]dynamo.Vec3{dynamo.V(1, 0, 0), dynamo.V(0, 3, 0)})
	if st.Mean != 2 || st.Max != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
	if math.Abs(st.StdDev-math.Sqrt2) > 1e-12 {
		t.Errorf("expected stddev sqrt2, got %f", st.StdDev)
	}

	one := Speeds([]dynamo.Vec3{dynamo.V(0, 0, 2)})
	if one.StdDev != 0 || one.Mean != 2 {
		t.Errorf("unexpected single stats %+v", one)
	}
}
