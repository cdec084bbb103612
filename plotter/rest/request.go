// Package rest holds request validation and response helpers shared by the
// plotter HTTP routes.
package rest

import (
	"net/http"
	"regexp"
	"strconv"
	"sync"

	"github.com/go-openapi/spec"
	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
)

type ErrorValidation struct {
	Property string `json:"property"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
}

// PathParameter is a required path parameter matching pattern.
func PathParameter(name, pattern string, maxLength int64) spec.Parameter {
	return spec.Parameter{
		ParamProps: spec.ParamProps{
			Name:     name,
			In:       "path",
			Required: true,
			Schema: &spec.Schema{
				SchemaProps: spec.SchemaProps{
					MinLength: &[]int64{1}[0],
					MaxLength: &maxLength,
					Pattern:   pattern,
				},
			},
		},
	}
}

// QueryParameter is an optional query parameter matching pattern.
func QueryParameter(name, pattern string, maxLength int64) spec.Parameter {
	p := PathParameter(name, pattern, maxLength)
	p.In = "query"
	p.Required = false
	return p
}

func SanitizeValidatePathParameter(request *http.Request, parameter spec.Parameter) (string, []ErrorValidation) {
	return sanitizeValidateParameter(parameter, mux.Vars(request)[parameter.Name])
}

func SanitizeValidateQueryParameter(request *http.Request, parameter spec.Parameter) (string, []ErrorValidation) {
	return sanitizeValidateParameter(parameter, request.URL.Query().Get(parameter.Name))
}

// PathInt reads a validated non-negative integer path parameter.
func PathInt(request *http.Request, name string) (int, []ErrorValidation) {
	value, errs := SanitizeValidatePathParameter(request, PathParameter(name, "^[0-9]+$", 10))
	if len(errs) > 0 {
		return 0, errs
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, []ErrorValidation{{Property: name, Rule: "Integer", Message: err.Error()}}
	}
	return n, nil
}

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
	strict     = bluemonday.StrictPolicy()
)

func compiled(pattern string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	re, ok := patterns[pattern]
	if !ok {
		re = regexp.MustCompile(pattern)
		patterns[pattern] = re
	}
	return re
}

// sanitizeValidateParameter checks value against the parameter schema and
// strips any markup from it.
func sanitizeValidateParameter(parameter spec.Parameter, value string) (string, []ErrorValidation) {
	schema := parameter.Schema
	if schema == nil {
		return strict.Sanitize(value), nil
	}
	if value == "" {
		if parameter.Required {
			return "", []ErrorValidation{{Property: parameter.Name, Rule: "Required", Message: "Required non-empty property"}}
		}
		return "", nil
	}
	var errs []ErrorValidation
	fail := func(rule, msg string) {
		errs = append(errs, ErrorValidation{Property: parameter.Name, Rule: rule, Message: msg})
	}
	n := int64(len(value))
	if schema.MinLength != nil && n < *schema.MinLength {
		fail("MinLength", "Invalid length")
	}
	if schema.MaxLength != nil && n > *schema.MaxLength {
		fail("MaxLength", "Invalid length")
	}
	if schema.Pattern != "" && !compiled(schema.Pattern).MatchString(value) {
		fail("Pattern", "Invalid match "+schema.Pattern)
	}
	return strict.Sanitize(value), errs
}
