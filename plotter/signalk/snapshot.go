package signalk

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FlattenVessels converts the nested REST vessel tree into one VesselState
// per vessel id. An object carrying a "value" key is a leaf; any other object
// is descended into. Scalars directly under a vessel (name, mmsi) are leaves
// without a timestamp.
func FlattenVessels(body []byte) (map[string]VesselState, error) {
	vessels := make(map[string]VesselState)
	err := jsonparser.ObjectEach(body, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Object {
			return nil
		}
		id := string(key)
		state, err := FlattenVessel(value)
		if err != nil {
			return errors.Wrapf(err, "vessel %v", id)
		}
		vessels[id] = state
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "malformed vessels snapshot")
	}
	return vessels, nil
}

// FlattenVessel flattens one vessel object.
func FlattenVessel(body []byte) (VesselState, error) {
	state := make(VesselState)
	if err := flatten(state, "", body); err != nil {
		return nil, err
	}
	return state, nil
}

func flatten(state VesselState, prefix string, body []byte) error {
	return jsonparser.ObjectEach(body, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		if strings.HasPrefix(name, "$") {
			return nil
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if dataType != jsonparser.Object {
			v, err := decodeValue(value, dataType)
			if err != nil {
				return errors.Wrap(err, path)
			}
			state[path] = PathValue{Value: v}
			return nil
		}
		raw, vt, _, err := jsonparser.Get(value, "value")
		if err == jsonparser.KeyPathNotFoundError {
			return flatten(state, path, value)
		}
		if err != nil {
			return errors.Wrap(err, path)
		}
		v, err := decodeValue(raw, vt)
		if err != nil {
			return errors.Wrap(err, path)
		}
		pv := PathValue{Value: v}
		if ts, err := jsonparser.GetString(value, "timestamp"); err == nil {
			pv.Timestamp = ParseTimestamp(ts)
		}
		state[path] = pv
		return nil
	})
}

func decodeValue(raw []byte, dataType jsonparser.ValueType) (interface{}, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(raw)
	case jsonparser.Number:
		return jsonparser.ParseFloat(raw)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(raw)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object, jsonparser.Array:
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unexpected json value %q", raw)
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds; anything
// else yields the zero time.
func ParseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Snapshotter is a one shot source of every known vessel.
type Snapshotter interface {
	Vessels(ctx context.Context) (map[string]VesselState, error)
}

// NoVessels is the snapshot of providers without AIS.
type NoVessels struct{}

func (NoVessels) Vessels(context.Context) (map[string]VesselState, error) {
	return map[string]VesselState{}, nil
}

// SnapshotClient reads the REST vessel resource.
type SnapshotClient struct {
	URL    string
	Client *http.Client
}

// Vessels fetches and flattens GET <base>/signalk/v1/api/vessels.
func (c *SnapshotClient) Vessels(ctx context.Context) (map[string]VesselState, error) {
	req, err := http.NewRequest(http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "vessels request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "vessels request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("vessels request: %v %v", c.URL, resp.Status)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "vessels body")
	}
	return FlattenVessels(body)
}
