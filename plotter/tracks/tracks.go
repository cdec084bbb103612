// Package tracks queries recorded vessel tracks from a track server.
package tracks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-cleanhttp"
	lru "github.com/hashicorp/golang-lru"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"marine/plotter/geo"
	"marine/plotter/log"
)

const (
	TypeSignalKTrackServer = "signalk-trackserver"
	TypeDailyTrackServer   = "daily-trackserver"

	unitCacheSize = 256
	notAvailable  = "not_available"
)

var (
	ErrTooManyProviders = errors.New("only 1 track provider supported")
	ErrUnsupported      = errors.New("unsupported track provider")
	ErrUnitNotAvailable = errors.New("unit not available")

	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// Config is one entry of the "tracks" settings list.
type Config struct {
	Type    string `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Address string `json:"address" yaml:"address" mapstructure:"address" validate:"required"`
}

type Provider interface {
	QueryTracks(ctx context.Context, bbox geo.Bounds, paths []string) (*geojson.FeatureCollection, error)
	// Units returns the unit of a self path, ErrUnitNotAvailable when the
	// server has none.
	Units(ctx context.Context, path string) (string, error)
}

// Connect builds the single configured track provider. No configuration
// yields a provider without tracks.
func Connect(configs []Config, client *http.Client) (Provider, error) {
	if len(configs) > 1 {
		return nil, ErrTooManyProviders
	}
	if len(configs) == 0 {
		return Empty{}, nil
	}
	cfg := configs[0]
	if client == nil {
		client = cleanhttp.DefaultClient()
	}
	switch cfg.Type {
	case TypeSignalKTrackServer, TypeDailyTrackServer:
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%q", cfg.Type)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "track provider")
	}
	address := strings.TrimSuffix(cfg.Address, "/")
	if cfg.Type == TypeDailyTrackServer {
		return &DailyTrackServer{address: address, client: client}, nil
	}
	cache, err := lru.New(unitCacheSize)
	if err != nil {
		return nil, err
	}
	return &SignalKTrackServer{address: address, client: client, units: cache}, nil
}

// BBoxString formats bounds as west,south,east,north.
func BBoxString(b geo.Bounds) string {
	return fmt.Sprintf("%v,%v,%v,%v", b.West, b.South, b.East, b.North)
}

type Empty struct{}

func (Empty) QueryTracks(context.Context, geo.Bounds, []string) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (Empty) Units(context.Context, string) (string, error) {
	return "", ErrUnitNotAvailable
}

type SignalKTrackServer struct {
	address string
	client  *http.Client
	units   *lru.Cache
}

func (s *SignalKTrackServer) QueryTracks(ctx context.Context, bbox geo.Bounds, paths []string) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	q.Set("bbox", BBoxString(bbox))
	q.Set("paths", strings.Join(paths, ","))
	body, err := get(ctx, s.client, s.address+"/signalk/v1/api/vessels/self/tracks?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodeTracks(body)
}

func (s *SignalKTrackServer) Units(ctx context.Context, path string) (string, error) {
	if cached, ok := s.units.Get(path); ok {
		if cached.(string) == notAvailable {
			return "", errors.Wrapf(ErrUnitNotAvailable, "%v", path)
		}
		return cached.(string), nil
	}
	body, err := get(ctx, s.client, MetaURL(s.address, path))
	if err != nil {
		s.units.Add(path, notAvailable)
		return "", err
	}
	var meta struct {
		Units *string `json:"units"`
	}
	if err := json.Unmarshal(body, &meta); err != nil || meta.Units == nil {
		s.units.Add(path, notAvailable)
		return "", errors.Wrapf(ErrUnitNotAvailable, "%v", path)
	}
	s.units.Add(path, *meta.Units)
	return *meta.Units, nil
}

// MetaURL is the metadata resource of a self path. Every dot of the path
// becomes a slash, so "environment.wind.speedApparent" maps to
// ".../environment/wind/speedApparent/meta"; replacing only the first dot
// would address a nonexistent resource for nested paths.
func MetaURL(address, path string) string {
	return address + "/signalk/v1/api/vessels/self/" + strings.Replace(path, ".", "/", -1) + "/meta"
}

type DailyTrackServer struct {
	address string
	client  *http.Client
}

func (d *DailyTrackServer) QueryTracks(ctx context.Context, bbox geo.Bounds, _ []string) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	q.Set("bbox", BBoxString(bbox))
	body, err := get(ctx, d.client, d.address+"/daily-tracks?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodeTracks(body)
}

func (d *DailyTrackServer) Units(context.Context, string) (string, error) {
	return "", ErrUnitNotAvailable
}

// decodeTracks accepts a FeatureCollection or a bare array of features.
func decodeTracks(body []byte) (*geojson.FeatureCollection, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var raw []jsoniter.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, errors.Wrap(err, "decoding tracks")
		}
		fc := geojson.NewFeatureCollection()
		for _, r := range raw {
			f, err := geojson.UnmarshalFeature(r)
			if err != nil {
				log.Warn("skipping track feature: %v", err)
				continue
			}
			fc.Append(f)
		}
		return fc, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	return fc, errors.Wrap(err, "decoding tracks")
}

func get(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %v: %v", target, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
