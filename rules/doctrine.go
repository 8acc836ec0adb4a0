package rules

import "math"

// Doctrine is a bot's temperament. Weights are 0.0–1.0; the compiler maps
// them to concrete rule thresholds and scores.
type Doctrine struct {
	Name           string  `yaml:"name" json:"name"`
	Aggression     float64 `yaml:"aggression" json:"aggression"`
	Caution        float64 `yaml:"caution" json:"caution"`
	Teamwork       float64 `yaml:"teamwork" json:"teamwork"`
	ObjectiveFocus float64 `yaml:"objective_focus" json:"objective_focus"`
	EngageRange    float64 `yaml:"engage_range" json:"engage_range"`
	BurstSeconds   float64 `yaml:"burst_seconds" json:"burst_seconds"`
}

// DefaultDoctrine returns a balanced baseline doctrine.
func DefaultDoctrine() Doctrine {
	return Doctrine{
		Name:           "Balanced",
		Aggression:     0.5,
		Caution:        0.5,
		Teamwork:       0.5,
		ObjectiveFocus: 0.5,
		EngageRange:    25,
		BurstSeconds:   1.5,
	}
}

// Validate clamps all weights to their valid ranges.
func (d *Doctrine) Validate() {
	d.Aggression = clamp(d.Aggression, 0, 1)
	d.Caution = clamp(d.Caution, 0, 1)
	d.Teamwork = clamp(d.Teamwork, 0, 1)
	d.ObjectiveFocus = clamp(d.ObjectiveFocus, 0, 1)
	d.EngageRange = clamp(d.EngageRange, 5, 80)
	d.BurstSeconds = clamp(d.BurstSeconds, 0.2, 5)
}

// lerpf linearly interpolates between min and max by t (0–1).
func lerpf(min, max, t float64) float64 {
	return min + (max-min)*t
}

// round2 keeps generated expressions readable.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp restricts v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
