package rules

import "testing"

func TestLerpf(t *testing.T) {
	got := lerpf(0.0, 1.0, 0.5)
	if got != 0.5 {
		t.Errorf("lerpf(0, 1, 0.5) = %f, want 0.5", got)
	}
	got = lerpf(10.0, 20.0, 0.3)
	if got != 13.0 {
		t.Errorf("lerpf(10, 20, 0.3) = %f, want 13.0", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-0.5, 0, 1, 0.0},
		{1.5, 0, 1, 1.0},
		{0.0, 0, 1, 0.0},
		{1.0, 0, 1, 1.0},
	}
	for _, tc := range tests {
		got := clamp(tc.v, tc.min, tc.max)
		if got != tc.want {
			t.Errorf("clamp(%f, %f, %f) = %f, want %f", tc.v, tc.min, tc.max, got, tc.want)
		}
	}
}

func TestRound2(t *testing.T) {
	if got := round2(0.3456); got != 0.35 {
		t.Errorf("round2(0.3456) = %f, want 0.35", got)
	}
}

func TestDoctrineValidate(t *testing.T) {
	d := Doctrine{
		Aggression:     1.7,
		Caution:        -0.2,
		Teamwork:       0.4,
		ObjectiveFocus: 2,
		EngageRange:    500,
		BurstSeconds:   0,
	}
	d.Validate()

	if d.Aggression != 1 {
		t.Errorf("Aggression = %f, want 1", d.Aggression)
	}
	if d.Caution != 0 {
		t.Errorf("Caution = %f, want 0", d.Caution)
	}
	if d.Teamwork != 0.4 {
		t.Errorf("Teamwork = %f, want 0.4", d.Teamwork)
	}
	if d.ObjectiveFocus != 1 {
		t.Errorf("ObjectiveFocus = %f, want 1", d.ObjectiveFocus)
	}
	if d.EngageRange != 80 {
		t.Errorf("EngageRange = %f, want 80", d.EngageRange)
	}
	if d.BurstSeconds != 0.2 {
		t.Errorf("BurstSeconds = %f, want 0.2", d.BurstSeconds)
	}
}

func TestDefaultDoctrineIsValid(t *testing.T) {
	d := DefaultDoctrine()
	before := d
	d.Validate()
	if d != before {
		t.Errorf("DefaultDoctrine changed under Validate: %+v -> %+v", before, d)
	}
}
