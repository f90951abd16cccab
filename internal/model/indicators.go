package model

// MomentumSignal classifies the RSI oscillator.
type MomentumSignal string

const (
	Overbought      MomentumSignal = "OVERBOUGHT"
	Oversold        MomentumSignal = "OVERSOLD"
	MomentumNeutral MomentumSignal = "NEUTRAL"
)

// MACDTrend classifies the MACD line against its signal line.
type MACDTrend string

const (
	Bullish     MACDTrend = "BULLISH"
	Bearish     MACDTrend = "BEARISH"
	MACDNeutral MACDTrend = "NEUTRAL"
)

// BandPosition locates the close relative to the Bollinger bands.
type BandPosition string

const (
	AboveUpper   BandPosition = "ABOVE_UPPER"
	BelowLower   BandPosition = "BELOW_LOWER"
	UpperHalf    BandPosition = "UPPER_HALF"
	LowerHalf    BandPosition = "LOWER_HALF"
	BandsUnknown BandPosition = "UNKNOWN"
)

// TrendDirection is the six-way trend classification on the 7-point change.
type TrendDirection string

const (
	StrongUptrend   TrendDirection = "STRONG_UPTREND"
	Uptrend         TrendDirection = "UPTREND"
	Sideways        TrendDirection = "SIDEWAYS"
	Downtrend       TrendDirection = "DOWNTREND"
	StrongDowntrend TrendDirection = "STRONG_DOWNTREND"
	TrendUnknown    TrendDirection = "UNKNOWN"
)

// VolumeSignal compares the latest volume to its trailing average.
type VolumeSignal string

const (
	HighVolume   VolumeSignal = "HIGH_VOLUME"
	LowVolume    VolumeSignal = "LOW_VOLUME"
	NormalVolume VolumeSignal = "NORMAL_VOLUME"
	VolumeNoData VolumeSignal = "NO_DATA"
)

// Momentum is the 14-period RSI.
type Momentum struct {
	Value  *float64       `json:"value"`
	Signal MomentumSignal `json:"signal"`
}

// TrendMomentum is MACD(12, 26, 9).
type TrendMomentum struct {
	MACDLine   *float64  `json:"macd_line"`
	SignalLine *float64  `json:"signal_line"`
	Histogram  *float64  `json:"histogram"`
	Trend      MACDTrend `json:"trend"`
}

// VolatilityBands is Bollinger(20, 2).
type VolatilityBands struct {
	Upper    *float64     `json:"upper"`
	Middle   *float64     `json:"middle"`
	Lower    *float64     `json:"lower"`
	Position BandPosition `json:"position"`
	Width    *float64     `json:"width"`
}

// MovingAverages holds EMA(7), EMA(20), EMA(50) and the price deviation from each in percent.
type MovingAverages struct {
	EMA7         *float64 `json:"ema_7"`
	EMA20        *float64 `json:"ema_20"`
	EMA50        *float64 `json:"ema_50"`
	PriceVsEMA7  *float64 `json:"price_vs_ema7"`
	PriceVsEMA20 *float64 `json:"price_vs_ema20"`
	PriceVsEMA50 *float64 `json:"price_vs_ema50"`
}

// Trend holds trailing percentage changes and their classification.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Change7d  *float64       `json:"change_7d"`
	Change30d *float64       `json:"change_30d"`
}

// Volume compares the latest volume to the trailing-20 average.
type Volume struct {
	Current   *float64     `json:"current"`
	Average20 *float64     `json:"average_20"`
	VsAverage *float64     `json:"vs_average"`
	Signal    VolumeSignal `json:"signal"`
}

// SupportResistance is the trailing-20 low/high and the distance to each in percent.
type SupportResistance struct {
	Support              *float64 `json:"support"`
	Resistance           *float64 `json:"resistance"`
	DistanceToSupport    *float64 `json:"distance_to_support"`
	DistanceToResistance *float64 `json:"distance_to_resistance"`
}

// IndicatorSet is the immutable result of one indicator computation.
// Fields that could not be computed are nil or carry their unknown signal; none are omitted.
type IndicatorSet struct {
	Momentum          Momentum          `json:"momentum"`
	TrendMomentum     TrendMomentum     `json:"trend_momentum"`
	VolatilityBands   VolatilityBands   `json:"volatility_bands"`
	MovingAverages    MovingAverages    `json:"moving_averages"`
	Trend             Trend             `json:"trend"`
	Volume            Volume            `json:"volume"`
	SupportResistance SupportResistance `json:"support_resistance"`
	Points            int               `json:"points"`
}

// UnknownIndicators returns the fully degraded indicator set.
func UnknownIndicators() *IndicatorSet {
	return &IndicatorSet{
		Momentum:        Momentum{Signal: MomentumNeutral},
		TrendMomentum:   TrendMomentum{Trend: MACDNeutral},
		VolatilityBands: VolatilityBands{Position: BandsUnknown},
		Trend:           Trend{Direction: TrendUnknown},
		Volume:          Volume{Signal: VolumeNoData},
	}
}

// Float returns a pointer to v, for populating nullable indicator fields.
func Float(v float64) *float64 { return &v }
