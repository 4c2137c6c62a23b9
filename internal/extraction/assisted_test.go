package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/sales"
)

func responsesServer(t *testing.T, status int, outputText string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(raw, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         "resp_1",
			"object":     "response",
			"created_at": 1700000000,
			"status":     "completed",
			"model":      "gpt-4o-mini",
			"output": []any{map[string]any{
				"type":   "message",
				"id":     "msg_1",
				"status": "completed",
				"role":   "assistant",
				"content": []any{map[string]any{
					"type":        "output_text",
					"text":        outputText,
					"annotations": []any{},
				}},
			}},
			"parallel_tool_calls": false,
			"tool_choice":         "auto",
			"tools":               []any{},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAssisted(t *testing.T, srv *httptest.Server) *Assisted {
	t.Helper()
	a, err := NewAssisted(AssistedConfig{APIKey: "test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return a
}

func TestAssistedExtract(t *testing.T) {
	out, err := json.Marshal(payload{
		ClientName:  "Jean Martin",
		ClientEmail: "jean@acme.fr",
		ProductType: "flyers",
		Quantity:    500,
		Format:      "A5",
		Paper:       "350g",
		DoubleSided: true,
		Finishes:    []string{"spot varnish"},
		Confidence:  0.9,
	})
	require.NoError(t, err)

	var sent map[string]any
	a := newTestAssisted(t, responsesServer(t, http.StatusOK, string(out), &sent))

	res, err := a.Extract(context.Background(), sampleRequest)
	require.NoError(t, err)

	assert.Equal(t, StrategyAssisted, res.Strategy)
	assert.Equal(t, "Jean Martin", res.Client.Name)
	assert.Equal(t, sales.ProductFlyers, res.Product.Type)
	require.NotNil(t, res.Product.Quantity)
	assert.Equal(t, 500, *res.Product.Quantity)
	assert.Equal(t, []string{"spot varnish"}, res.Product.Finishes)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	assert.Equal(t, "gpt-4o-mini", sent["model"])
	assert.Equal(t, sampleRequest, sent["input"])
}

func TestAssistedZeroQuantityIsUnknown(t *testing.T) {
	out, _ := json.Marshal(payload{ProductType: "banner", Confidence: 0.4})
	a := newTestAssisted(t, responsesServer(t, http.StatusOK, string(out), nil))

	res, err := a.Extract(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Nil(t, res.Product.Quantity)
	assert.Equal(t, sales.ProductOther, res.Product.Type)
	assert.NotNil(t, res.Product.Finishes)
}

func TestAssistedFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		a := newTestAssisted(t, responsesServer(t, http.StatusInternalServerError, "", nil))
		_, err := a.Extract(context.Background(), "x")
		assert.Error(t, err)
	})
	t.Run("empty output", func(t *testing.T) {
		a := newTestAssisted(t, responsesServer(t, http.StatusOK, "", nil))
		_, err := a.Extract(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmptyOutput)
	})
	t.Run("not json", func(t *testing.T) {
		a := newTestAssisted(t, responsesServer(t, http.StatusOK, "sure, here it is", nil))
		_, err := a.Extract(context.Background(), "x")
		assert.Error(t, err)
	})
	t.Run("confidence out of range", func(t *testing.T) {
		out, _ := json.Marshal(payload{Confidence: 3})
		a := newTestAssisted(t, responsesServer(t, http.StatusOK, string(out), nil))
		_, err := a.Extract(context.Background(), "x")
		assert.Error(t, err)
	})
}

func TestPayloadSchemaIsStrict(t *testing.T) {
	schema, err := payloadSchema()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.NotContains(t, schema, "$schema")
	required, ok := schema["required"].([]any)
	require.True(t, ok)
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, required, len(props))
}
