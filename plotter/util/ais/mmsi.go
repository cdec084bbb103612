// Package ais provides extra functions for AIS identifiers.
package ais

import (
	"fmt"
	"strconv"
	"strings"
)

const mmsiURNPrefix = "urn:mrn:imo:mmsi:"

func FormatMMSI(mmsi int) string {
	return fmt.Sprintf("%09d", mmsi)
}

// MMSIFromVesselID extracts the MMSI of a SignalK vessel id such as
// "urn:mrn:imo:mmsi:230099999" or "vessels.urn:mrn:imo:mmsi:230099999".
func MMSIFromVesselID(id string) (string, bool) {
	id = strings.TrimPrefix(id, "vessels.")
	if !strings.HasPrefix(id, mmsiURNPrefix) {
		return "", false
	}
	n, err := strconv.Atoi(id[len(mmsiURNPrefix):])
	if err != nil || n <= 0 || n > 999999999 {
		return "", false
	}
	return FormatMMSI(n), true
}

// VesselID is the inverse of MMSIFromVesselID.
func VesselID(mmsi int) string {
	return mmsiURNPrefix + FormatMMSI(mmsi)
}
