package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler adapta eventos do API Gateway para o mesmo roteador mux do
// runtime local, evitando dois caminhos de código para o mesmo contrato.
type LambdaHandler struct {
	router http.Handler
}

func NewLambdaHandler(router http.Handler) *LambdaHandler {
	return &LambdaHandler{router: router}
}

// Handle converte o evento proxy em uma http.Request, roda o roteador e
// traduz a resposta gravada de volta para o formato do API Gateway.
func (h *LambdaHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq, err := h.toHTTPRequest(ctx, req)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"success":false,"error":"invalid request"}`,
		}, nil
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httpReq)

	headers := make(map[string]string, len(rec.Header()))
	for k, v := range rec.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: rec.Code,
		Headers:    headers,
		Body:       rec.Body.String(),
	}, nil
}

// toHTTPRequest reconstrói a requisição. O API Gateway entrega parâmetros e
// headers repetidos nos mapas multi-value; os mapas simples só complementam
// chaves que não apareceram lá.
func (h *LambdaHandler) toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	u := url.URL{Path: req.Path}

	query := url.Values{}
	for k, values := range req.MultiValueQueryStringParameters {
		for _, v := range values {
			query.Add(k, v)
		}
	}
	for k, v := range req.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, u.String(), strings.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	for k, values := range req.MultiValueHeaders {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}

	return httpReq, nil
}
