package charts

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"marine/plotter/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Lister yields the charts of a local catalog.
type Lister interface {
	Providers(ctx context.Context) ([]Provider, error)
}

// Providers refreshes the catalog and describes every chart in it.
func (c *Catalog) Providers(_ context.Context) ([]Provider, error) {
	err := c.Refresh()
	charts := c.Charts()
	if err != nil && len(charts) == 0 {
		return nil, err
	}
	if err != nil {
		log.Warn("refreshing chart providers: %v", err)
	}
	out := make([]Provider, len(charts))
	for i, chart := range charts {
		out[i] = chart.Provider()
	}
	return out, nil
}

// HTTPLister reads the chart list of a plotter server.
type HTTPLister struct {
	URL    string
	Client *http.Client
}

func (l HTTPLister) Providers(ctx context.Context) ([]Provider, error) {
	var out []Provider
	body, err := get(ctx, l.Client, l.URL)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding %v", l.URL)
	}
	return out, nil
}

// Resolver expands configured chart sources into providers.
type Resolver struct {
	Local  Lister
	Client *http.Client
	// DefaultHost completes relative ":port" addresses.
	DefaultHost string
}

// Resolve expands every source; a source or provider that fails is left
// out and its error collected. Providers listed in hidden start disabled.
func (r *Resolver) Resolve(ctx context.Context, sources []Source, hidden []string) ([]Provider, error) {
	isHidden := make(map[string]bool, len(hidden))
	for _, id := range hidden {
		isHidden[id] = true
	}
	var result error
	var out []Provider
	for _, src := range sources {
		var expanded []Provider
		var err error
		switch src.Type {
		case TypeLocal:
			expanded, err = r.local(ctx, src, isHidden)
		case TypeSignalK:
			expanded, err = r.signalk(ctx, src, isHidden)
		default:
			p := src.Provider
			if p.ID == "" {
				p.ID = p.Name
			}
			p.Enabled = !isHidden[p.ID]
			expanded = []Provider{p}
		}
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, p := range expanded {
			if _, err := p.Box(); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			out = append(out, p)
		}
	}
	return out, result
}

func (r *Resolver) local(ctx context.Context, src Source, hidden map[string]bool) ([]Provider, error) {
	if r.Local == nil {
		return nil, errors.New("no local chart catalog")
	}
	charts, err := r.Local.Providers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "local charts")
	}
	out := make([]Provider, 0, len(charts))
	for _, p := range charts {
		p.ID = p.Name
		p.Index = src.Index
		p.Enabled = !hidden[p.ID]
		out = append(out, p)
	}
	return out, nil
}

func (r *Resolver) signalk(ctx context.Context, src Source, hidden map[string]bool) ([]Provider, error) {
	address, err := ProviderAddress(src.Address, r.DefaultHost)
	if err != nil {
		return nil, err
	}
	url := address + "/signalk/v1/api/resources/charts"
	body, err := get(ctx, r.Client, url)
	if err != nil {
		return nil, err
	}
	var listed map[string]jsoniter.RawMessage
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, errors.Wrapf(err, "decoding %v", url)
	}
	keys := make([]string, 0, len(listed))
	for key := range listed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Provider, 0, len(listed))
	for _, key := range keys {
		raw := listed[key]
		p := Provider{MinZoom: MinZoom, MaxZoom: MaxZoom}
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn("skipping chart %v of %v: %v", key, address, err)
			continue
		}
		p.ID = p.Name
		p.TilemapURL = address + p.TilemapURL
		p.Index = src.Index
		p.Enabled = !hidden[p.ID]
		out = append(out, p)
	}
	return out, nil
}

// ProviderAddress resolves a relative ":port" address against defaultHost.
func ProviderAddress(address, defaultHost string) (string, error) {
	if address == "" {
		return "", ErrEmptyAddress
	}
	if strings.HasPrefix(address, ":") {
		return "http://" + defaultHost + address, nil
	}
	return strings.TrimSuffix(address, "/"), nil
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = cleanhttp.DefaultClient()
	}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %v: %v", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
