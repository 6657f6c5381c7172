package core

// MapKind is a closed enum over the three photon map kinds. Replaces any
// dynamic string→enum dictionary (see DESIGN.md, REDESIGN FLAGS).
type MapKind int

const (
	MapGlobal MapKind = iota
	MapCaustics
	MapVolumetric
	numMapKinds
)

// String implements fmt.Stringer for log output.
func (k MapKind) String() string {
	switch k {
	case MapGlobal:
		return "global"
	case MapCaustics:
		return "caustics"
	case MapVolumetric:
		return "volumetric"
	default:
		return "unknown"
	}
}

// ParseMapKind parses a map-kind string into its enum value, rejecting
// anything unrecognized with a ConfigError rather than silently defaulting.
func ParseMapKind(s string) (MapKind, error) {
	switch s {
	case "global":
		return MapGlobal, nil
	case "caustics":
		return MapCaustics, nil
	case "volumetric":
		return MapVolumetric, nil
	default:
		return 0, NewConfigError("mapKind", "unrecognized map kind "+s)
	}
}

// EstimationConfig holds the per-map-kind radius/tolerance/size triple from
// §3 "Estimation configuration".
type EstimationConfig struct {
	Radius    float64 // 0 means auto-derive (§4.E)
	Tolerance float64 // default 0.05
	Size      int     // k, default 50
}

// TuningConfig is the opaque tuning surface from §6. All fields are
// write-once before PreProcess.
type TuningConfig struct {
	MaxNumberOfPhotons int // default 100,000,000
	GlobalMapSize      int // default 10,000

	CausticsQuality   float64 // default 1
	VolumetricQuality float64 // default 1

	NumFinalGatherRays     int // 0 disables final gather
	NumSecondaryGatherRays int // 0 disables secondary gather

	RatioPrecomputedIrradiance float64 // in [0,1], default 0.25
	VolumetricGatherQuality    float64 // in [0,1], default 0.25

	IsVisualizingPhotonMap bool
	IsRayTracingDirect     bool
	IsScatteringDirect     bool

	Estimation [numMapKinds]EstimationConfig

	MaxRayGeneration int // hard ceiling from the surrounding renderer
}

// DefaultTuningConfig returns the defaults enumerated in §6.
func DefaultTuningConfig() TuningConfig {
	cfg := TuningConfig{
		MaxNumberOfPhotons:         100_000_000,
		GlobalMapSize:              10_000,
		CausticsQuality:            1,
		VolumetricQuality:          1,
		NumFinalGatherRays:         0,
		NumSecondaryGatherRays:     0,
		RatioPrecomputedIrradiance: 0.25,
		VolumetricGatherQuality:    0.25,
		MaxRayGeneration:           16,
	}
	for k := range cfg.Estimation {
		cfg.Estimation[k] = EstimationConfig{Radius: 0, Tolerance: 0.05, Size: 50}
	}
	return cfg
}

// Validate rejects the configurations enumerated in §7: unknown map-kind
// strings (not applicable here since MapKind is a closed enum; retained
// for parity with ParseMapKind callers), negative quality, and zero size.
func (c TuningConfig) Validate() error {
	if c.MaxNumberOfPhotons <= 0 {
		return NewConfigError("MaxNumberOfPhotons", "must be positive")
	}
	if c.GlobalMapSize <= 0 {
		return NewConfigError("GlobalMapSize", "must be positive")
	}
	if c.CausticsQuality < 0 {
		return NewConfigError("CausticsQuality", "must be non-negative")
	}
	if c.VolumetricQuality < 0 {
		return NewConfigError("VolumetricQuality", "must be non-negative")
	}
	if c.RatioPrecomputedIrradiance < 0 || c.RatioPrecomputedIrradiance > 1 {
		return NewConfigError("RatioPrecomputedIrradiance", "must be in [0,1]")
	}
	if c.VolumetricGatherQuality < 0 || c.VolumetricGatherQuality > 1 {
		return NewConfigError("VolumetricGatherQuality", "must be in [0,1]")
	}
	for k, est := range c.Estimation {
		if est.Size == 0 {
			return NewConfigError(MapKind(k).String()+".Size", "must be non-zero")
		}
		if est.Radius < 0 {
			return NewConfigError(MapKind(k).String()+".Radius", "must be non-negative")
		}
		if est.Tolerance <= 0 {
			return NewConfigError(MapKind(k).String()+".Tolerance", "must be positive")
		}
	}
	return nil
}

// StorageProbability derives per-map-kind photon storage probabilities
// from the quality ratios (§4.D): equalizes expected photon density
// across maps without reshooting.
func (c TuningConfig) StorageProbability() [numMapKinds]float64 {
	maxQ := 1.0
	if c.CausticsQuality > maxQ {
		maxQ = c.CausticsQuality
	}
	if c.VolumetricQuality > maxQ {
		maxQ = c.VolumetricQuality
	}

	var p [numMapKinds]float64
	p[MapGlobal] = 1.0 / maxQ
	p[MapCaustics] = c.CausticsQuality / maxQ
	p[MapVolumetric] = c.VolumetricQuality / maxQ
	return p
}
