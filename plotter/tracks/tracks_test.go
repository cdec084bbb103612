package tracks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marine/plotter/geo"
)

const trackJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"day":"2020-06-01"},
	 "geometry":{"type":"LineString","coordinates":[[24.9,60.1],[24.95,60.12]]}}]}`

var bbox = geo.Bounds{West: 24, South: 60, East: 25, North: 61}

func TestConnect(t *testing.T) {
	p, err := Connect(nil, nil)
	require.NoError(t, err)
	fc, err := p.QueryTracks(context.Background(), bbox, nil)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)

	_, err = Connect([]Config{{Type: TypeDailyTrackServer, Address: "a"}, {Type: TypeDailyTrackServer, Address: "b"}}, nil)
	assert.Equal(t, ErrTooManyProviders, err)

	_, err = Connect([]Config{{Type: "ftp", Address: "a"}}, nil)
	assert.Equal(t, ErrUnsupported, errors.Cause(err))

	_, err = Connect([]Config{{Type: TypeSignalKTrackServer}}, nil)
	assert.Error(t, err)
}

func TestSignalKTrackServer(t *testing.T) {
	var metaCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signalk/v1/api/vessels/self/tracks":
			assert.Equal(t, "24,60,25,61", r.URL.Query().Get("bbox"))
			assert.Equal(t, "navigation.speedOverGround,environment.depth.belowTransducer", r.URL.Query().Get("paths"))
			w.Write([]byte(trackJSON))
		case "/signalk/v1/api/vessels/self/navigation/speedOverGround/meta":
			atomic.AddInt32(&metaCalls, 1)
			w.Write([]byte(`{"units":"m/s"}`))
		case "/signalk/v1/api/vessels/self/environment/depth/belowTransducer/meta":
			atomic.AddInt32(&metaCalls, 1)
			w.Write([]byte(`{"description":"depth"}`))
		default:
			atomic.AddInt32(&metaCalls, 1)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := Connect([]Config{{Type: TypeSignalKTrackServer, Address: srv.URL}}, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	fc, err := p.QueryTracks(ctx, bbox, []string{"navigation.speedOverGround", "environment.depth.belowTransducer"})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.GeoJSONType())

	for i := 0; i < 2; i++ {
		unit, err := p.Units(ctx, "navigation.speedOverGround")
		require.NoError(t, err)
		assert.Equal(t, "m/s", unit)

		_, err = p.Units(ctx, "environment.depth.belowTransducer")
		assert.Equal(t, ErrUnitNotAvailable, errors.Cause(err))

		_, err = p.Units(ctx, "missing.path")
		assert.Error(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&metaCalls), "answers are cached")

	_, err = p.Units(ctx, "missing.path")
	assert.Equal(t, ErrUnitNotAvailable, errors.Cause(err), "failed lookups are cached as unavailable")
}

func TestDailyTrackServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/daily-tracks", r.URL.Path)
		assert.Equal(t, "24,60,25,61", r.URL.Query().Get("bbox"))
		w.Write([]byte(`[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}]`))
	}))
	defer srv.Close()

	p, err := Connect([]Config{{Type: TypeDailyTrackServer, Address: srv.URL + "/"}}, srv.Client())
	require.NoError(t, err)
	fc, err := p.QueryTracks(context.Background(), bbox, nil)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
	_, err = p.Units(context.Background(), "x")
	assert.Equal(t, ErrUnitNotAvailable, err)
}

func TestMetaURL(t *testing.T) {
	assert.Equal(t, "http://sk/signalk/v1/api/vessels/self/environment/wind/speedTrue/meta",
		MetaURL("http://sk", "environment.wind.speedTrue"))
}
