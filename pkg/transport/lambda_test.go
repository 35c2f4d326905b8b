package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lambdaTestRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/echo", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"method": req.Method,
			"q":      req.URL.Query().Get("q"),
			"header": req.Header.Get("x-custom"),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/body", func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(payload)
	}).Methods(http.MethodPost)

	return r
}

func TestLambdaHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("should route get with query and headers", func(t *testing.T) {
		h := NewLambdaHandler(lambdaTestRouter())

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod:            http.MethodGet,
			Path:                  "/echo",
			QueryStringParameters: map[string]string{"q": "recife"},
			Headers:               map[string]string{"x-custom": "abc"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		assert.Equal(t, "GET", body["method"])
		assert.Equal(t, "recife", body["q"])
		assert.Equal(t, "abc", body["header"])
	})

	t.Run("should forward the request body", func(t *testing.T) {
		h := NewLambdaHandler(lambdaTestRouter())

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Path:       "/body",
			Body:       `{"nome":"Ana"}`,
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.JSONEq(t, `{"nome":"Ana"}`, resp.Body)
	})

	t.Run("should copy response headers", func(t *testing.T) {
		h := NewLambdaHandler(lambdaTestRouter())

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodGet,
			Path:       "/echo",
		})
		require.NoError(t, err)

		assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	})

	t.Run("should merge multi value query params and headers", func(t *testing.T) {
		r := mux.NewRouter()
		r.HandleFunc("/multi", func(w http.ResponseWriter, req *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"tags":    req.URL.Query()["tag"],
				"accepts": req.Header.Values("Accept"),
			})
		}).Methods(http.MethodGet)
		h := NewLambdaHandler(r)

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodGet,
			Path:       "/multi",
			// O API Gateway repete a última ocorrência nos mapas simples
			QueryStringParameters:           map[string]string{"tag": "b"},
			MultiValueQueryStringParameters: map[string][]string{"tag": {"a", "b"}},
			Headers:                         map[string]string{"Accept": "text/html"},
			MultiValueHeaders:               map[string][]string{"Accept": {"application/json", "text/html"}},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string][]string
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		assert.Equal(t, []string{"a", "b"}, body["tags"])
		assert.Equal(t, []string{"application/json", "text/html"}, body["accepts"])
	})

	t.Run("should fall back to single value maps", func(t *testing.T) {
		h := NewLambdaHandler(lambdaTestRouter())

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod:            http.MethodGet,
			Path:                  "/echo",
			QueryStringParameters: map[string]string{"q": "olinda"},
			Headers:               map[string]string{"x-custom": "solo"},
		})
		require.NoError(t, err)

		var body map[string]string
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		assert.Equal(t, "olinda", body["q"])
		assert.Equal(t, "solo", body["header"])
	})

	t.Run("should return 404 for unknown route", func(t *testing.T) {
		h := NewLambdaHandler(lambdaTestRouter())

		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodGet,
			Path:       "/nao-existe",
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
