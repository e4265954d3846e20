package lifecycle

import (
	"fmt"
	"time"
)

// Interval is a plan's billing frequency.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// NominalDays is the fixed period length used for proration. It is an
// approximation: months are 30 days and years 365 regardless of calendar.
func (i Interval) NominalDays() int64 {
	if i == IntervalYear {
		return 365
	}
	return 30
}

// AddTo returns t advanced by one calendar billing interval.
func (i Interval) AddTo(t time.Time) time.Time {
	if i == IntervalYear {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// ParseInterval accepts the common spellings used by plan files and providers.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "month", "monthly":
		return IntervalMonth, nil
	case "year", "yearly", "annual":
		return IntervalYear, nil
	}
	return "", fmt.Errorf("unknown billing interval %q", s)
}

// Feature is a plan capability flag.
type Feature string

const (
	FeatureDigitalMenu     Feature = "digital_menu"
	FeatureQRCodes         Feature = "qr_codes"
	FeatureTableOrdering   Feature = "table_ordering"
	FeatureEmbeds          Feature = "embeds"
	FeatureMultiMenu       Feature = "multi_menu"
	FeatureCustomBranding  Feature = "custom_branding"
	FeatureAnalytics       Feature = "analytics"
	FeatureWhatsAppAlerts  Feature = "whatsapp_alerts"
	FeaturePrioritySupport Feature = "priority_support"
)

// FeatureSetVersion is bumped whenever the Feature enumeration changes meaning.
const FeatureSetVersion = 1

var knownFeatures = map[Feature]bool{
	FeatureDigitalMenu:     true,
	FeatureQRCodes:         true,
	FeatureTableOrdering:   true,
	FeatureEmbeds:          true,
	FeatureMultiMenu:       true,
	FeatureCustomBranding:  true,
	FeatureAnalytics:       true,
	FeatureWhatsAppAlerts:  true,
	FeaturePrioritySupport: true,
}

// FeatureSet is the versioned feature list captured on a subscription.
type FeatureSet struct {
	Version int       `json:"version"`
	Flags   []Feature `json:"flags"`
}

// NewFeatureSet validates flags against the current enumeration.
func NewFeatureSet(flags ...Feature) (FeatureSet, error) {
	seen := make(map[Feature]bool, len(flags))
	out := make([]Feature, 0, len(flags))
	for _, f := range flags {
		if !knownFeatures[f] {
			return FeatureSet{}, fmt.Errorf("unknown feature %q", f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return FeatureSet{Version: FeatureSetVersion, Flags: out}, nil
}

// Has reports whether f is enabled.
func (fs FeatureSet) Has(f Feature) bool {
	for _, x := range fs.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// PlanSnapshot is the price and feature terms frozen onto a subscription at
// the time it was created or changed.
type PlanSnapshot struct {
	PlanID   string     `json:"plan_id"`
	Name     string     `json:"name"`
	Price    int64      `json:"price"` // smallest currency unit
	Currency string     `json:"currency"`
	Interval Interval   `json:"interval"`
	Features FeatureSet `json:"features"`
}
