package libmain

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marine/plotter/charts"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "8080")
	t.Setenv("CHARTS_PATH", dir)
	t.Setenv("CLIENT_CONFIG_FILE", "")
	t.Setenv(EnvName, "production")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, env.Port)
	assert.Equal(t, dir, env.ChartsPath)
	assert.Equal(t, "client-config.json", filepath.Base(env.ClientConfigFile))
	assert.True(t, env.Production)

	t.Setenv("PORT", "0")
	_, err = LoadEnv()
	assert.Error(t, err)
	t.Setenv("PORT", "http")
	_, err = LoadEnv()
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "client-config.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"zoom": 10, "data": [{"type": "signalk", "address": ":3000"}]}`), 0644))
	yamlFile := filepath.Join(dir, "client-config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("zoom: 10\ndata:\n  - type: signalk\n    address: \":3000\"\n"), 0644))

	fromJSON, err := ReadClientConfig(jsonFile)
	require.NoError(t, err)
	fromYAML, err := ReadClientConfig(yamlFile)
	require.NoError(t, err)
	assert.EqualValues(t, 10, fromJSON["zoom"])
	assert.EqualValues(t, 10, fromYAML["zoom"])
	assert.Len(t, fromYAML["data"], 1)

	assert.Equal(t, map[string]interface{}{}, LoadClientConfig(filepath.Join(dir, "missing.json")))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0644))
	_, err = ReadClientConfig(broken)
	assert.Error(t, err)
	assert.Equal(t, map[string]interface{}{}, LoadClientConfig(broken))
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestSite(t *testing.T) {
	dir := t.TempDir()
	public := filepath.Join(dir, "public")
	chartsDir := filepath.Join(dir, "charts")
	require.NoError(t, os.MkdirAll(public, 0755))
	require.NoError(t, os.MkdirAll(chartsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(public, "bundle.js"), []byte("console.log(1)"), 0644))
	config := filepath.Join(dir, "client-config.json")
	require.NoError(t, os.WriteFile(config, []byte(`{"zoom":10}`), 0644))
	catalog, err := charts.NewCatalog(chartsDir)
	require.NoError(t, err)
	defer catalog.Close()

	site := Site{
		ClientConfigFile: config,
		PublicPath:       public,
		Catalog:          catalog,
		Socket: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}
	srv := httptest.NewServer(site.Router())
	defer srv.Close()

	status, body := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `window.INITIAL_SETTINGS = {"zoom":10};`)

	status, body = get(t, srv, "/bundle.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log(1)", body)

	status, body = get(t, srv, "/charts/")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)

	status, _ = get(t, srv, "/ws")
	assert.Equal(t, http.StatusTeapot, status)

	site.ClientConfigFile = filepath.Join(dir, "missing.json")
	srv2 := httptest.NewServer(site.Router())
	defer srv2.Close()
	_, body = get(t, srv2, "/")
	assert.Contains(t, body, `window.INITIAL_SETTINGS = {};`)
}
