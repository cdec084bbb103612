package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeValidatePathParameter(t *testing.T) {
	param := PathParameter("map", "^[a-z0-9_]+$", 8)
	tt := []struct {
		value string
		rules []string
	}{
		{"nautical", nil},
		{"", []string{"Required"}},
		{"much_too_long", []string{"MaxLength"}},
		{"BAD", []string{"Pattern"}},
	}
	for _, tc := range tt {
		t.Run(tc.value, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"map": tc.value})
			value, errs := SanitizeValidatePathParameter(req, param)
			var rules []string
			for _, e := range errs {
				rules = append(rules, e.Rule)
			}
			assert.Equal(t, tc.rules, rules)
			if tc.rules == nil {
				assert.Equal(t, tc.value, value)
			}
		})
	}
}

func TestQueryParameterOptional(t *testing.T) {
	req := httptest.NewRequest("GET", "/tracks?bbox=<b>1,2,3,4</b>", nil)
	value, errs := SanitizeValidateQueryParameter(req, QueryParameter("bbox", "^.*$", 64))
	assert.Empty(t, errs)
	assert.Equal(t, "1,2,3,4", value)

	value, errs = SanitizeValidateQueryParameter(req, QueryParameter("paths", "^.*$", 64))
	assert.Empty(t, errs)
	assert.Empty(t, value)
}

func TestPathInt(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"z": "12", "x": "-1"})
	z, errs := PathInt(req, "z")
	require.Empty(t, errs)
	assert.Equal(t, 12, z)
	_, errs = PathInt(req, "x")
	assert.NotEmpty(t, errs)
}

func TestWriteValidationErrs(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationErrsSafely(rec, []ErrorValidation{{Property: "z", Rule: "Pattern", Message: "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `[{"property":"z","rule":"Pattern","message":"x"}]`, rec.Body.String())
	assert.Equal(t, "alert", OutputEncodingAndSanitize("<script>x</script>alert"))
}
