package charts

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"marine/plotter/log"
	"marine/plotter/rest"
)

const cacheControl = "public, max-age=7776000"

var paramMap = rest.PathParameter("map", "^[A-Za-z0-9_]+$", 128)

type routes struct {
	catalog *Catalog
}

// Register mounts the chart list and tile routes on router.
func Register(router *mux.Router, catalog *Catalog) {
	r := &routes{catalog: catalog}
	router.HandleFunc("/charts/", r.list).Methods(http.MethodGet)
	router.HandleFunc("/charts/{map}/{z}/{x}/{y}", r.tile).Methods(http.MethodGet)
}

func (r *routes) list(w http.ResponseWriter, req *http.Request) {
	providers, err := r.catalog.Providers(req.Context())
	if err != nil {
		log.Error("refreshing chart providers: %v", err)
		rest.WriteStatus(w, http.StatusInternalServerError)
		return
	}
	if providers == nil {
		providers = []Provider{}
	}
	rest.WriteEntitySafely(w, providers)
}

func (r *routes) tile(w http.ResponseWriter, req *http.Request) {
	var errs []rest.ErrorValidation
	name, e := rest.SanitizeValidatePathParameter(req, paramMap)
	errs = append(errs, e...)
	z, e := rest.PathInt(req, "z")
	errs = append(errs, e...)
	x, e := rest.PathInt(req, "x")
	errs = append(errs, e...)
	y, e := rest.PathInt(req, "y")
	errs = append(errs, e...)
	if len(errs) > 0 {
		rest.WriteValidationErrsSafely(w, errs)
		return
	}

	chart, ok := r.catalog.Get(name)
	if !ok {
		rest.WriteStatus(w, http.StatusNotFound)
		return
	}
	tile, err := chart.Tile(z, x, y)
	if errors.Cause(err) == ErrTileNotFound {
		rest.WriteStatus(w, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("fetching tile %v/%v/%v/%v: %v", name, z, x, y, err)
		rest.WriteStatus(w, http.StatusInternalServerError)
		return
	}
	for k, v := range chart.Headers(tile) {
		w.Header().Set(k, v)
	}
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(tile)
}
