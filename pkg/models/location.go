package models

import "time"

type LocationSample struct {
	OrderID        int64     `json:"order_id"`
	CourierID      int64     `json:"courier_id"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	BearingDegrees float64   `json:"bearing_degrees"`
	Speed          float64   `json:"speed"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	SampledAt      time.Time `json:"sampled_at"`
}

type StopReason string

const (
	StopCompleted           StopReason = "completed"
	StopManual              StopReason = "manual"
	StopPermissionDenied    StopReason = "permission_denied"
	StopSignalTimeout       StopReason = "signal_timeout"
	StopPositionUnavailable StopReason = "position_unavailable"
	StopOrderClosed         StopReason = "order_closed"
)

func (r StopReason) Valid() bool {
	switch r {
	case StopCompleted, StopManual, StopPermissionDenied, StopSignalTimeout, StopPositionUnavailable, StopOrderClosed:
		return true
	}
	return false
}

// IsDeviceFailure marks reasons reported by a courier device that lost positioning.
func (r StopReason) IsDeviceFailure() bool {
	return r == StopPermissionDenied || r == StopSignalTimeout || r == StopPositionUnavailable
}

type LocationSession struct {
	OrderID    int64      `json:"order_id"`
	CourierID  int64      `json:"courier_id"`
	Active     bool       `json:"active"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`
}
