package dados

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/raywall/dados-api/pkg/logger"
	"github.com/rs/zerolog/log"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// Handler expõe o CRUD via HTTP. Ele é o único tradutor entre os erros de
// domínio e os códigos de status — nenhuma outra camada conhece HTTP.
type Handler struct {
	svc   *Service
	isDev bool
}

func NewHandler(svc *Service, isDev bool) *Handler {
	return &Handler{svc: svc, isDev: isDev}
}

// Register registra as rotas no subrouter de /api/v1/dados.
// A rota de stats vem antes de /{id} para não ser capturada por ela.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/stats/summary", h.stats).Methods(http.MethodGet)
	r.HandleFunc("", h.list).Methods(http.MethodGet)
	r.HandleFunc("", h.create).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.delete).Methods(http.MethodDelete)
}

// apiResponse é o envelope padrão de todas as respostas. Corpos de erro
// carregam o requestId para correlação com os logs.
type apiResponse struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Message    string            `json:"message,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	Pagination *Pagination       `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError mapeia a taxonomia de erros de domínio para o transporte.
// Erros de banco viram 500 genérico com detalhe suprimido fora de
// desenvolvimento; erros de cache nunca chegam aqui.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := logger.CorrelationID(r.Context())

	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "Validation failed",
			Details:   vErr.Details,
			RequestID: reqID,
		})

	case errors.Is(err, ErrNoFieldsToUpdate):
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "No fields to update",
			RequestID: reqID,
		})

	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiResponse{
			Success:   false,
			Error:     "Record not found",
			RequestID: reqID,
		})

	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("Erro interno na requisição")
		msg := "internal server error"
		if h.isDev {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, apiResponse{
			Success:   false,
			Error:     msg,
			RequestID: reqID,
		})
	}
}

// parsePageParam coage um parâmetro de query para inteiro positivo.
func parsePageParam(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, ok := parsePageParam(q.Get("page"), defaultPage)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "Validation failed",
			Details:   map[string]string{"page": "deve ser um inteiro positivo"},
			RequestID: logger.CorrelationID(r.Context()),
		})
		return
	}

	limit, ok := parsePageParam(q.Get("limit"), defaultLimit)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "Validation failed",
			Details:   map[string]string{"limit": "deve ser um inteiro positivo"},
			RequestID: logger.CorrelationID(r.Context()),
		})
		return
	}

	result, err := h.svc.List(r.Context(), ListParams{Page: page, Limit: limit, Cidade: q.Get("cidade")})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success:    true,
		Data:       result.Data,
		Pagination: &result.Pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: rec})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "Invalid JSON body",
			RequestID: logger.CorrelationID(r.Context()),
		})
		return
	}

	rec, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Data:    rec,
		Message: "Record created successfully",
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Success:   false,
			Error:     "Invalid JSON body",
			RequestID: logger.CorrelationID(r.Context()),
		})
		return
	}

	rec, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    rec,
		Message: "Record updated successfully",
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Record deleted successfully",
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: stats})
}
