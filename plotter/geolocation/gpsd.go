package geolocation

import (
	"bufio"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/log"
)

const DefaultGPSDAddress = "localhost:2947"

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	watchCommand = []byte("?WATCH={\"enable\":true,\"json\":true}\n")

	tr = log.GetTracer("gpsd")
)

type tpvMessage struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Time  string   `json:"time"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Track *float64 `json:"track"`
	Speed *float64 `json:"speed"`
}

// GPSD reads TPV reports of a gpsd daemon. Reports without at least a 2D
// fix are skipped.
type GPSD struct {
	Address string
	Dialer  net.Dialer
}

func (g *GPSD) Watch(ctxt gogroup.GoGroup, fixes chan<- Fix) error {
	addr := g.Address
	if addr == "" {
		addr = DefaultGPSDAddress
	}
	conn, err := g.Dialer.DialContext(ctxt, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "gpsd connection failed")
	}
	defer conn.Close()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctxt.Done():
			conn.Close()
		case <-stop:
		}
	}()
	log.Info("connected to gpsd at %v", addr)

	if _, err := conn.Write(watchCommand); err != nil {
		return errors.Wrap(err, "gpsd watch")
	}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fix, ok := parseTPV(scanner.Bytes())
		if !ok {
			continue
		}
		select {
		case fixes <- fix:
		case <-ctxt.Done():
			return nil
		}
	}
	if ctxt.Canceled() {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "gpsd read error")
	}
	return errors.New("gpsd closed the connection")
}

func parseTPV(line []byte) (Fix, bool) {
	var msg tpvMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		tr.Logf("undecodable report %q", line)
		return Fix{}, false
	}
	if msg.Class != "TPV" || msg.Mode < 2 {
		return Fix{}, false
	}
	fix := Fix{
		Latitude:  msg.Lat,
		Longitude: msg.Lon,
		Speed:     msg.Speed,
		Heading:   msg.Track,
	}
	if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
		fix.Time = t
	}
	return fix, true
}
