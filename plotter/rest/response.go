package rest

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/microcosm-cc/bluemonday"

	"marine/plotter/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func OutputEncodingAndSanitize(input string) string {
	if !utf8.ValidString(input) {
		return fmt.Sprint([]byte(input))
	}

	p := bluemonday.StrictPolicy()
	return p.Sanitize(input)
}

func WriteHeaderAndEntitySafely(w http.ResponseWriter, status int, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		log.Error("encoding response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

func WriteEntitySafely(w http.ResponseWriter, value interface{}) error {
	return WriteHeaderAndEntitySafely(w, http.StatusOK, value)
}

func WriteValidationErrsSafely(w http.ResponseWriter, errs []ErrorValidation) error {
	return WriteHeaderAndEntitySafely(w, http.StatusBadRequest, errs)
}

// WriteStatus writes a bare status code with its text as body.
func WriteStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
