package charts

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

const Extension = ".mbtiles"

var ErrTileNotFound = errors.New("tile does not exist")

// Chart is an opened MBTiles file.
type Chart struct {
	Name        string
	File        string
	Bounds      []float64
	Center      []float64
	MinZoom     int
	MaxZoom     int
	Type        string
	Format      string
	Attribution string
	Description string
	Scheme      string

	db *sql.DB
}

// SanitizeName turns a file name into a URL-safe provider name:
// diacritics are stripped and the result is snake_cased.
func SanitizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	deburred, _, err := transform.String(t, name)
	if err != nil {
		deburred = name
	}
	return strcase.ToSnake(deburred)
}

// Open reads the metadata table of an MBTiles file.
func Open(file string) (*Chart, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v", file)
	}
	base := filepath.Base(file)
	c := &Chart{
		Name: SanitizeName(strings.TrimSuffix(base, filepath.Ext(base))),
		File: file,
		db:   db,
	}
	if err := c.readMetadata(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "metadata of %v", file)
	}
	return c, nil
}

func (c *Chart) readMetadata() error {
	rows, err := c.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		switch name {
		case "bounds":
			c.Bounds = parseFloats(value)
		case "center":
			c.Center = parseFloats(value)
		case "minzoom":
			c.MinZoom, _ = strconv.Atoi(value)
		case "maxzoom":
			c.MaxZoom, _ = strconv.Atoi(value)
		case "type":
			c.Type = value
		case "format":
			c.Format = value
		case "attribution":
			c.Attribution = value
		case "description":
			c.Description = value
		case "scheme":
			c.Scheme = value
		}
	}
	return rows.Err()
}

func parseFloats(value string) []float64 {
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

// Tile returns the tile at XYZ coordinates. Rows are stored TMS-flipped.
func (c *Chart) Tile(z, x, y int) ([]byte, error) {
	if z < 0 || z > 30 {
		return nil, ErrTileNotFound
	}
	row := (1 << uint(z)) - 1 - y
	var data []byte
	err := c.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		z, x, row).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrTileNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "tile %v/%v/%v/%v", c.Name, z, x, y)
	}
	return data, nil
}

// Headers are the content headers of a tile body.
func (c *Chart) Headers(tile []byte) map[string]string {
	h := map[string]string{}
	switch c.Format {
	case "png":
		h["Content-Type"] = "image/png"
	case "jpg", "jpeg":
		h["Content-Type"] = "image/jpeg"
	case "webp":
		h["Content-Type"] = "image/webp"
	case "pbf":
		h["Content-Type"] = "application/x-protobuf"
	}
	if bytes.HasPrefix(tile, []byte{0x1f, 0x8b}) {
		h["Content-Encoding"] = "gzip"
	}
	return h
}

// Provider describes the chart as served by the local tile routes.
func (c *Chart) Provider() Provider {
	return Provider{
		ID:          c.Name,
		Name:        c.Name,
		TilemapURL:  "/charts/" + c.Name + "/{z}/{x}/{y}",
		Type:        TypeTiles,
		MinZoom:     c.MinZoom,
		MaxZoom:     c.MaxZoom,
		Center:      c.Center,
		Description: c.Description,
		Format:      c.Format,
		Bounds:      c.Bounds,
		Attribution: c.Attribution,
		Scheme:      c.Scheme,
	}
}

func (c *Chart) Close() error {
	return c.db.Close()
}
