// Package geolocation feeds the plotter from a device position source instead
// of a SignalK server.
package geolocation

import (
	"time"

	"marine/gogroup"
)

// Fix is one device position report. Speed is meters/second and Heading
// degrees true; either is nil when the device does not know it.
type Fix struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Time      time.Time
}

// Locator watches a device for fixes until ctxt is canceled. Returning an
// error ends the watch; no further fixes are expected afterwards.
type Locator interface {
	Watch(ctxt gogroup.GoGroup, fixes chan<- Fix) error
}
