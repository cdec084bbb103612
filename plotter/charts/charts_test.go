package charts

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngTile = []byte{0x89, 'P', 'N', 'G', 1, 2, 3}

func writeMBTiles(t *testing.T, file string, metadata map[string]string) {
	db, err := sql.Open("sqlite", file)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range []string{
		"CREATE TABLE metadata (name text, value text)",
		"CREATE TABLE tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob)",
	} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	for k, v := range metadata {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v)
		require.NoError(t, err)
	}
	// z=1 x=0 tms row 0 is xyz y=1
	_, err = db.Exec("INSERT INTO tiles VALUES (1, 0, 0, ?)", pngTile)
	require.NoError(t, err)
}

func harborDir(t *testing.T) string {
	dir := t.TempDir()
	writeMBTiles(t, filepath.Join(dir, "Helsinki Harbor.mbtiles"), map[string]string{
		"format":      "png",
		"bounds":      "24.0,60.0,25.0,60.5",
		"center":      "24.9,60.1,12",
		"minzoom":     "10",
		"maxzoom":     "14",
		"description": "harbor",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	return dir
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "helsinki_harbor", SanitizeName("Helsinki Harbor"))
	assert.Equal(t, "naytto_kartta", SanitizeName("Näyttö Kartta"))
}

func TestCatalog(t *testing.T) {
	dir := harborDir(t)
	c, err := NewCatalog(dir)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Refresh())

	charts := c.Charts()
	require.Len(t, charts, 1)
	chart := charts[0]
	assert.Equal(t, "helsinki_harbor", chart.Name)
	assert.Equal(t, []float64{24, 60, 25, 60.5}, chart.Bounds)
	assert.Equal(t, 10, chart.MinZoom)
	assert.Equal(t, 14, chart.MaxZoom)

	tile, err := chart.Tile(1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, pngTile, tile)
	_, err = chart.Tile(1, 0, 0)
	assert.Equal(t, ErrTileNotFound, err)

	p := chart.Provider()
	assert.Equal(t, "/charts/helsinki_harbor/{z}/{x}/{y}", p.TilemapURL)
	assert.Equal(t, TypeTiles, p.Type)

	require.NoError(t, os.Remove(chart.File))
	require.NoError(t, c.Refresh())
	assert.Empty(t, c.Charts())
}

func TestRoutes(t *testing.T) {
	c, err := NewCatalog(harborDir(t))
	require.NoError(t, err)
	defer c.Close()
	router := mux.NewRouter()
	Register(router, c)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/charts/")
	require.NoError(t, err)
	var listed []Provider
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed, 1)
	assert.Equal(t, "helsinki_harbor", listed[0].Name)
	assert.Equal(t, "tilelayer", listed[0].Type)

	tt := []struct {
		path   string
		status int
	}{
		{"/charts/helsinki_harbor/1/0/1", http.StatusOK},
		{"/charts/helsinki_harbor/1/0/0", http.StatusNotFound},
		{"/charts/elsewhere/1/0/1", http.StatusNotFound},
		{"/charts/helsinki_harbor/z/0/1", http.StatusBadRequest},
	}
	for _, tc := range tt {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusOK {
				assert.Equal(t, cacheControl, resp.Header.Get("Cache-Control"))
				assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestRoutesMissingDir(t *testing.T) {
	c, err := NewCatalog(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	router := mux.NewRouter()
	Register(router, c)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/charts/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type staticLister []Provider

func (l staticLister) Providers(context.Context) ([]Provider, error) {
	return l, nil
}

func TestResolve(t *testing.T) {
	signalk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signalk/v1/api/resources/charts", r.URL.Path)
		w.Write([]byte(`{
			"b": {"name": "bad", "tilemapUrl": "/b/{z}/{x}/{y}", "type": "tilelayer", "bounds": [1, 2, 3]},
			"a": {"name": "sea", "tilemapUrl": "/sea/{z}/{x}/{y}", "type": "tilelayer", "maxzoom": 12}
		}`))
	}))
	defer signalk.Close()

	r := &Resolver{
		Local: staticLister{{Name: "harbor", Type: TypeTiles, TilemapURL: "/charts/harbor/{z}/{x}/{y}"}},
	}
	sources := []Source{
		{Provider: Provider{Type: TypeLocal, Index: 2}},
		{Provider: Provider{Type: TypeSignalK}, Address: signalk.URL},
		{Provider: Provider{Type: TypeTiles, Name: "osm", TilemapURL: "https://tile/{z}/{x}/{y}"}},
		{Provider: Provider{Type: TypeSignalK}},
	}
	providers, err := r.Resolve(context.Background(), sources, []string{"harbor"})
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 2, "bad bounds and empty address")

	require.Len(t, providers, 3)
	assert.Equal(t, "harbor", providers[0].ID)
	assert.Equal(t, 2, providers[0].Index)
	assert.False(t, providers[0].Enabled)

	assert.Equal(t, "sea", providers[1].ID)
	assert.Equal(t, signalk.URL+"/sea/{z}/{x}/{y}", providers[1].TilemapURL)
	assert.Equal(t, MinZoom, providers[1].MinZoom)
	assert.Equal(t, 12, providers[1].MaxZoom)
	assert.True(t, providers[1].Enabled)

	assert.Equal(t, "osm", providers[2].ID)
	assert.True(t, providers[2].Enabled)
}

func TestProviderAddress(t *testing.T) {
	addr, err := ProviderAddress(":3000", "boat.local")
	require.NoError(t, err)
	assert.Equal(t, "http://boat.local:3000", addr)
	addr, _ = ProviderAddress("http://sk:3000/", "x")
	assert.Equal(t, "http://sk:3000", addr)
	_, err = ProviderAddress("", "x")
	assert.Equal(t, ErrEmptyAddress, err)
}
