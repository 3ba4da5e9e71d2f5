package manipulator

import (
	"fmt"
	"math"
	"strings"
)

type Mode string

const (
	ModeLossless Mode = "lossless"
	ModePreset   Mode = "preset"
	ModeManual   Mode = "manual"
)

type Tier string

const (
	High   Tier = "high"
	Medium Tier = "medium"
	Low    Tier = "low"
)

const (
	MinFactor = 0.10
	MaxFactor = 1.00
)

var presets = map[Tier]float64{
	High:   0.90,
	Medium: 0.70,
	Low:    0.50,
}

// Policy is the compression policy selected by the operator.
// Only the field matching Mode is meaningful.
type Policy struct {
	Mode   Mode    `json:"mode"`
	Preset Tier    `json:"preset,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

func Lossless() Policy {
	return Policy{Mode: ModeLossless}
}

func PresetPolicy(tier Tier) Policy {
	return Policy{Mode: ModePreset, Preset: tier}
}

func Manual(factor float64) Policy {
	return Policy{Mode: ModeManual, Factor: factor}
}

func DefaultPolicy() Policy {
	return PresetPolicy(Medium)
}

func (p Policy) String() string {
	switch p.Mode {
	case ModeLossless:
		return "lossless"
	case ModeManual:
		return fmt.Sprintf("manual(%.2f)", p.Factor)
	default:
		return fmt.Sprintf("preset(%s)", p.Preset)
	}
}

// Validate checks operator input, the estimator itself never fails.
func (p Policy) Validate() error {
	vErr := NewValidationError()

	switch p.Mode {
	case ModeLossless:
	case ModePreset:
		if _, ok := presets[p.Preset]; !ok {
			vErr.Add("preset", fmt.Sprintf("Preset %s is unsupported", p.Preset))
		}
	case ModeManual:
		if math.IsNaN(p.Factor) || p.Factor < MinFactor || p.Factor > MaxFactor {
			vErr.Add("factor", fmt.Sprintf("Factor must be between %.2f and %.2f", MinFactor, MaxFactor))
		}
	default:
		vErr.Add("mode", fmt.Sprintf("Mode %s is unsupported", p.Mode))
	}

	if vErr.Empty() {
		return nil
	}

	return vErr
}

// ParseMode accepts "none" as an alias of lossless.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "lossless":
		return ModeLossless
	case "manual":
		return ModeManual
	case "preset":
		return ModePreset
	default:
		return Mode(s)
	}
}

// Quality computes the quality factor in (0, 1] for a policy.
func Quality(p Policy) float64 {
	switch p.Mode {
	case ModeLossless:
		return 1.0
	case ModeManual:
		return clamp(p.Factor, MinFactor, MaxFactor)
	default:
		if q, ok := presets[p.Preset]; ok {
			return q
		}

		return presets[Medium]
	}
}

// JPEGQuality maps the quality factor onto the 1..100 scale of the jpeg encoder.
func JPEGQuality(p Policy) int {
	return int(math.Round(Quality(p) * 100))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
