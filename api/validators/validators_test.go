package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
)

type reserveBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"p1","quantity":2}`))
	var body reserveBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "p1", body.ProductID)
	require.Equal(t, 2, body.Quantity)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"","quantity":0}`))
	var body reserveBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["productId"])
	require.Contains(t, details, "quantity")
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"p1","quantity":1,"extra":true}`))
	var body reserveBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsMalformedEnvelopes(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"trailing": `{"productId":"p1","quantity":1}{"productId":"p2","quantity":1}`,
		"oversize": `{"productId":"` + strings.Repeat("a", MaxBodyBytes) + `","quantity":1}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body reserveBody
		err := DecodeJSONBody(req, &body)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: %v", name, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{\"productId\":\"p1\",\"quantity\":1}\n"))
	var body reserveBody
	require.NoError(t, DecodeJSONBody(req, &body), "trailing whitespace is fine")
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	v, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, v)

	v, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 10, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 10, v)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=0", nil), "limit", 10, 1, 100)
	require.Error(t, err)
	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 10, 1, 100)
	require.Error(t, err)
}

func TestParseQueryBool(t *testing.T) {
	v, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/", nil), "processed")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?processed=false", nil), "processed")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.False(t, *v)

	_, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?processed=maybe", nil), "processed")
	require.Error(t, err)
}

func TestSanitizeStrings(t *testing.T) {
	require.Equal(t, []string{"a", "bc"}, SanitizeStrings([]string{" a ", "", "  ", "bcd"}, 2))
}
