package signalk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vesselsJSON = `{
  "urn:mrn:imo:mmsi:230000002": {
    "mmsi": "230000002",
    "name": "Ferry",
    "navigation": {
      "position": {
        "value": {"latitude": 60.1, "longitude": 24.9},
        "timestamp": "2019-05-01T10:00:00.000Z",
        "$source": "ais.GP"
      },
      "speedOverGround": {"value": 5.5, "timestamp": "2019-05-01T10:00:00.000Z"},
      "state": {"value": "motoring"}
    },
    "design": {
      "length": {"value": {"overall": 120.5}},
      "aisShipType": {"value": {"id": 60, "name": "Passenger ship"}}
    },
    "sensors": {"ais": {"class": {"value": "A"}}}
  },
  "urn:mrn:imo:mmsi:230000003": {"mmsi": "230000003"},
  "version": "ignored"
}`

func TestFlattenVessels(t *testing.T) {
	vessels, err := FlattenVessels([]byte(vesselsJSON))
	require.NoError(t, err)
	require.Len(t, vessels, 2)

	ferry := vessels["urn:mrn:imo:mmsi:230000002"]
	assert.Equal(t, []string{
		"design.aisShipType", "design.length", "mmsi", "name",
		"navigation.position", "navigation.speedOverGround", "navigation.state",
		"sensors.ais.class",
	}, ferry.Paths())
	assert.Equal(t, "Ferry", ferry[PathName].Value)
	pos, ok := ferry.Position()
	require.True(t, ok)
	assert.Equal(t, 24.9, pos.Lon)
	assert.False(t, ferry[PathPosition].Timestamp.IsZero())
	sog, _ := ferry.Float(PathSpeedOverGround)
	assert.Equal(t, 5.5, sog)
	length, ok := ferry.Field(PathLength, "overall")
	assert.True(t, ok)
	assert.Equal(t, 120.5, length)
	shipType, _ := ferry.Field(PathShipType, "name")
	assert.Equal(t, "Passenger ship", shipType)
	state, _ := ferry.String(PathState)
	assert.Equal(t, "motoring", state)

	_, err = FlattenVessels([]byte(`{"a": {"b": }`))
	assert.Error(t, err)
}

func TestSnapshotClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signalk/v1/api/vessels" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(vesselsJSON))
	}))
	defer srv.Close()

	vessels, err := (&SnapshotClient{URL: srv.URL + "/signalk/v1/api/vessels"}).Vessels(context.Background())
	require.NoError(t, err)
	assert.Len(t, vessels, 2)

	_, err = (&SnapshotClient{URL: srv.URL + "/missing"}).Vessels(context.Background())
	assert.Error(t, err)
}

func TestVesselStateHelpers(t *testing.T) {
	s := VesselState{
		PathPosition: {Value: Position{Latitude: 91, Longitude: 0}},
		"x":          {Value: "str"},
	}
	_, ok := s.Position()
	assert.False(t, ok, "latitude out of range")
	_, ok = s.Float("x")
	assert.False(t, ok)

	clone := s.Clone()
	clone.Merge(VesselState{"x": {Value: 1.0}})
	assert.Equal(t, "str", s["x"].Value)
	assert.Equal(t, 1.0, clone["x"].Value)

	assert.Equal(t, "urn:x", VesselIDFromContext("vessels.urn:x"))
	assert.Equal(t, "vessels.urn:x", ContextForVessel("urn:x"))
}
