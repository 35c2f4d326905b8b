package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
)

// Handler atende POST /api/v1/graphql.
type Handler struct {
	schema graphql.Schema
}

func NewHandler(svc Service) (*Handler, error) {
	schema, err := NewSchema(svc)
	if err != nil {
		return nil, err
	}
	return &Handler{schema: schema}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error": "Invalid JSON Body"}`, http.StatusBadRequest)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  p.Query,
		VariableValues: p.Variables,
		Context:        r.Context(),
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
