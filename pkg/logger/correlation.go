package logger

import "context"

type contextKey string

// ContextKeyCorrID carrega o correlation id da requisição no contexto.
const ContextKeyCorrID contextKey = "correlation_id"

// HeaderCorrelationID é o header de entrada/saída do correlation id.
const HeaderCorrelationID = "x-correlation-id"

// CorrelationID extrai o correlation id do contexto; vazio quando a
// requisição não passou pelo middleware de observabilidade.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrID).(string)
	return id
}
