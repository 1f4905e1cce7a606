package scoring

// HeatLayout is shared by rule types whose athletes compete in heats and lanes.
type HeatLayout struct {
	UsesHeats    bool `json:"usesHeats,omitempty" mapstructure:"usesHeats"`
	HeatCount    int  `json:"heatCount,omitempty" mapstructure:"heatCount"`
	LanesPerHeat int  `json:"lanesPerHeat,omitempty" mapstructure:"lanesPerHeat"`
}

func (l HeatLayout) bounded() HeatLayout {
	if l.HeatCount < 0 {
		l.HeatCount = 0
	}
	if l.LanesPerHeat < 0 || l.LanesPerHeat > MaxLanes {
		l.LanesPerHeat = 0
	}
	return l
}

// Params is the typed parameter record of one rule type.
type Params interface {
	Type() RuleType
	Layout() HeatLayout
	applyDefaults() Params
	// bounded replaces values the form cannot be built from, such as
	// negative or oversized counts, with defaults.
	bounded() Params
}

type PointsParams struct {
	HeatLayout `mapstructure:",squash"`
}

type DistanceParams struct {
	Unit       string `json:"unit,omitempty" mapstructure:"unit"`
	Subunit    string `json:"subunit,omitempty" mapstructure:"subunit"`
	MaxSubunit int    `json:"maxSubunit,omitempty" mapstructure:"maxSubunit"`
	HeatLayout `mapstructure:",squash"`
}

// SplitCentimeters reports whether input is taken as meters plus centimeters.
func (p DistanceParams) SplitCentimeters() bool { return p.Subunit == "cm" }

type TimeParams struct {
	TimeFormat string `json:"timeFormat,omitempty" mapstructure:"timeFormat"`
	HeatLayout `mapstructure:",squash"`
}

// AttemptsParams configures the generic attempt-based "heats" rule type.
type AttemptsParams struct {
	AttemptCount int    `json:"attemptCount,omitempty" mapstructure:"attemptCount"`
	LaneCount    int    `json:"laneCount,omitempty" mapstructure:"laneCount"`
	Unit         string `json:"unit,omitempty" mapstructure:"unit"`
	HeatLayout   `mapstructure:",squash"`
}

// Lanes returns the lane count for the lane selector, zero when none.
func (p AttemptsParams) Lanes() int {
	if p.LaneCount > 0 {
		return p.LaneCount
	}
	return p.LanesPerHeat
}

type SetsParams struct {
	BestOf         int    `json:"bestOf,omitempty" mapstructure:"bestOf"`
	SetsToWin      int    `json:"setsToWin,omitempty" mapstructure:"setsToWin"`
	ScorePerSet    bool   `json:"scorePerSet,omitempty" mapstructure:"scorePerSet"`
	Unit           string `json:"unit,omitempty" mapstructure:"unit"`
	PointsPerSet   int    `json:"pointsPerSet,omitempty" mapstructure:"pointsPerSet"`
	FinalSetPoints int    `json:"finalSetPoints,omitempty" mapstructure:"finalSetPoints"`
	MinAdvantage   int    `json:"minAdvantage,omitempty" mapstructure:"minAdvantage"`
	HeatLayout     `mapstructure:",squash"`
}

// PointsMode is the legacy per-set point tally without win conditions.
func (p SetsParams) PointsMode() bool { return p.ScorePerSet || p.Unit == "points" }

// Volleyball reports whether set winners are derived from team points.
func (p SetsParams) Volleyball() bool { return !p.PointsMode() && p.PointsPerSet > 0 }

type ArrowsParams struct {
	HasClassificationPhase   bool `json:"hasClassificationPhase,omitempty" mapstructure:"hasClassificationPhase"`
	ClassificationArrowCount int  `json:"classificationArrowCount,omitempty" mapstructure:"classificationArrowCount"`
	HasEliminationPhase      bool `json:"hasEliminationPhase,omitempty" mapstructure:"hasEliminationPhase"`
	SetsPerMatch             int  `json:"setsPerMatch,omitempty" mapstructure:"setsPerMatch"`
	ArrowsPerSet             int  `json:"arrowsPerSet,omitempty" mapstructure:"arrowsPerSet"`
	SetWinPoints             int  `json:"setWinPoints,omitempty" mapstructure:"setWinPoints"`
	SetTiePoints             int  `json:"setTiePoints,omitempty" mapstructure:"setTiePoints"`
	MatchWinPoints           int  `json:"matchWinPoints,omitempty" mapstructure:"matchWinPoints"`
	AllowsShootOff           bool `json:"allowsShootOff,omitempty" mapstructure:"allowsShootOff"`
	HeatLayout               `mapstructure:",squash"`
}

// Phased reports whether the classification/elimination layout applies.
func (p ArrowsParams) Phased() bool { return p.HasClassificationPhase || p.HasEliminationPhase }

// ShootOffThreshold is the per-side match score that triggers a shoot-off.
func (p ArrowsParams) ShootOffThreshold() int { return p.MatchWinPoints - 1 }

// UnknownParams carries the layout of a rule whose type is not recognized.
type UnknownParams struct {
	Name       string `json:"-" mapstructure:"-"`
	HeatLayout `mapstructure:",squash"`
}

func (p PointsParams) Type() RuleType   { return RulePoints }
func (p DistanceParams) Type() RuleType { return RuleDistance }
func (p TimeParams) Type() RuleType     { return RuleTime }
func (p AttemptsParams) Type() RuleType { return RuleHeats }
func (p SetsParams) Type() RuleType     { return RuleSets }
func (p ArrowsParams) Type() RuleType   { return RuleArrows }
func (p UnknownParams) Type() RuleType  { return RuleType(p.Name) }

func (p PointsParams) Layout() HeatLayout   { return p.HeatLayout }
func (p DistanceParams) Layout() HeatLayout { return p.HeatLayout }
func (p TimeParams) Layout() HeatLayout     { return p.HeatLayout }
func (p AttemptsParams) Layout() HeatLayout { return p.HeatLayout }
func (p SetsParams) Layout() HeatLayout     { return p.HeatLayout }
func (p ArrowsParams) Layout() HeatLayout   { return p.HeatLayout }
func (p UnknownParams) Layout() HeatLayout  { return p.HeatLayout }

func (p PointsParams) applyDefaults() Params { return p }
func (p TimeParams) applyDefaults() Params   { return p }
func (p UnknownParams) applyDefaults() Params {
	return p
}

func (p DistanceParams) applyDefaults() Params {
	if p.MaxSubunit <= 0 {
		p.MaxSubunit = DefaultMaxSubunit
	}
	return p
}

func (p AttemptsParams) applyDefaults() Params {
	if p.AttemptCount <= 0 {
		p.AttemptCount = DefaultAttemptCount
	}
	return p
}

func (p SetsParams) applyDefaults() Params {
	if p.BestOf == 0 {
		p.BestOf = DefaultBestOf
	}
	if p.SetsToWin == 0 {
		p.SetsToWin = (p.BestOf + 1) / 2
	}
	if p.Volleyball() && p.MinAdvantage == 0 {
		p.MinAdvantage = DefaultMinAdvantage
	}
	return p
}

func (p ArrowsParams) applyDefaults() Params {
	if p.ClassificationArrowCount <= 0 {
		if p.Phased() {
			p.ClassificationArrowCount = DefaultClassificationArrows
		} else {
			p.ClassificationArrowCount = DefaultZoneArrows
		}
	}
	if p.SetsPerMatch <= 0 {
		p.SetsPerMatch = DefaultSetsPerMatch
	}
	if p.ArrowsPerSet <= 0 {
		p.ArrowsPerSet = DefaultArrowsPerSet
	}
	if p.SetWinPoints <= 0 {
		p.SetWinPoints = DefaultSetWinPoints
	}
	if p.SetTiePoints <= 0 {
		p.SetTiePoints = DefaultSetTiePoints
	}
	if p.MatchWinPoints <= 0 {
		p.MatchWinPoints = DefaultMatchWinPoints
	}
	return p
}

// Upper bounds of count parameters.
const (
	MaxLanes                = 99
	MaxAttemptCount         = 20
	MaxBestOf               = 7
	MaxClassificationArrows = 144
	MaxSetsPerMatch         = 9
	MaxArrowsPerSet         = 6
)

func (p PointsParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	return p
}

func (p TimeParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	return p
}

func (p UnknownParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	return p
}

func (p DistanceParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	if p.MaxSubunit > DefaultMaxSubunit {
		p.MaxSubunit = DefaultMaxSubunit
	}
	return p
}

func (p AttemptsParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	if p.AttemptCount > MaxAttemptCount {
		p.AttemptCount = DefaultAttemptCount
	}
	if p.LaneCount < 0 || p.LaneCount > MaxLanes {
		p.LaneCount = 0
	}
	return p
}

func (p SetsParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	if p.BestOf <= 0 || p.BestOf > MaxBestOf || p.BestOf%2 == 0 {
		p.BestOf = DefaultBestOf
	}
	if p.SetsToWin < 1 || p.SetsToWin > p.BestOf {
		p.SetsToWin = (p.BestOf + 1) / 2
	}
	if p.FinalSetPoints < 0 {
		p.FinalSetPoints = 0
	}
	if p.Volleyball() && p.MinAdvantage <= 0 {
		p.MinAdvantage = DefaultMinAdvantage
	}
	return p
}

func (p ArrowsParams) bounded() Params {
	p.HeatLayout = p.HeatLayout.bounded()
	if p.ClassificationArrowCount > MaxClassificationArrows {
		p.ClassificationArrowCount = 0
	}
	if p.SetsPerMatch > MaxSetsPerMatch {
		p.SetsPerMatch = 0
	}
	if p.ArrowsPerSet > MaxArrowsPerSet {
		p.ArrowsPerSet = 0
	}
	if p.SetTiePoints > p.SetWinPoints {
		p.SetWinPoints, p.SetTiePoints = 0, 0
	}
	return p.applyDefaults()
}

// Parameter defaults.
const (
	DefaultMaxSubunit           = 99
	DefaultAttemptCount         = 3
	DefaultBestOf               = 3
	DefaultMinAdvantage         = 2
	DefaultClassificationArrows = 72
	DefaultZoneArrows           = 6
	DefaultSetsPerMatch         = 5
	DefaultArrowsPerSet         = 3
	DefaultSetWinPoints         = 2
	DefaultSetTiePoints         = 1
	DefaultMatchWinPoints       = 6
)
