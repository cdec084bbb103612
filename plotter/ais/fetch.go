package ais

import (
	"context"
	"time"

	"marine/gogroup"
	"marine/plotter/signalk"
)

const SnapshotTimeout = 15 * time.Second

// SeedResult carries a fetched snapshot back to the reconciler owner.
type SeedResult struct {
	Generation int
	Vessels    map[string]signalk.VesselState
	Err        error
}

// Fetch reads the snapshot of req in the background and delivers exactly one
// result on out unless ctxt is canceled first.
func Fetch(ctxt gogroup.GoGroup, src signalk.Snapshotter, req SeedRequest, out chan<- SeedResult) {
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		ctx, cancel := context.WithTimeout(ctxt, SnapshotTimeout)
		defer cancel()
		vessels, err := src.Vessels(ctx)
		select {
		case out <- SeedResult{Generation: req.Generation, Vessels: vessels, Err: err}:
		case <-ctxt.Done():
		}
		return nil
	})
}
