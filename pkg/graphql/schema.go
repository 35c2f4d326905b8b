// Package graphql expõe uma superfície de consulta somente-leitura sobre a
// coleção dados, resolvendo através do mesmo serviço (e portanto do mesmo
// cache) das rotas REST.
package graphql

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"
	"github.com/raywall/dados-api/pkg/dados"
)

// Service é o contrato de leitura que os resolvers consomem.
type Service interface {
	Get(ctx context.Context, id string) (*dados.Record, error)
	List(ctx context.Context, p dados.ListParams) (*dados.ListResult, error)
	Stats(ctx context.Context) (*dados.Stats, error)
}

// Os nomes dos campos seguem as tags JSON do modelo, então o resolver
// padrão da lib resolve as propriedades sem código extra.
var dadoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Dado",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.ID},
		"aluno_id":   &graphql.Field{Type: graphql.Int},
		"nome":       &graphql.Field{Type: graphql.String},
		"sobrenome":  &graphql.Field{Type: graphql.String},
		"endereco":   &graphql.Field{Type: graphql.String},
		"cidade":     &graphql.Field{Type: graphql.String},
		"host":       &graphql.Field{Type: graphql.String},
		"created_at": &graphql.Field{Type: graphql.DateTime},
		"updated_at": &graphql.Field{Type: graphql.DateTime},
	},
})

var cityCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CityCount",
	Fields: graphql.Fields{
		"cidade": &graphql.Field{Type: graphql.String},
		"count":  &graphql.Field{Type: graphql.Int},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Stats",
	Fields: graphql.Fields{
		"total":       &graphql.Field{Type: graphql.Int},
		"byCity":      &graphql.Field{Type: graphql.NewList(cityCountType)},
		"last24Hours": &graphql.Field{Type: graphql.Int},
		"timestamp":   &graphql.Field{Type: graphql.DateTime},
	},
})

var pageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DadosPage",
	Fields: graphql.Fields{
		"data":       &graphql.Field{Type: graphql.NewList(dadoType)},
		"page":       &graphql.Field{Type: graphql.Int},
		"limit":      &graphql.Field{Type: graphql.Int},
		"total":      &graphql.Field{Type: graphql.Int},
		"totalPages": &graphql.Field{Type: graphql.Int},
	},
})

type pageResult struct {
	Data       []dados.Record `json:"data"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// NewSchema constrói o schema de consulta sobre o serviço injetado.
func NewSchema(svc Service) (graphql.Schema, error) {
	queryFields := graphql.Fields{
		"dado": &graphql.Field{
			Type: dadoType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id, _ := p.Args["id"].(string)
				rec, err := svc.Get(p.Context, id)
				if errors.Is(err, dados.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return rec, nil
			},
		},

		"dados": &graphql.Field{
			Type: pageType,
			Args: graphql.FieldConfigArgument{
				"page":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
				"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				"cidade": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				params := dados.ListParams{Page: 1, Limit: 20}
				if v, ok := p.Args["page"].(int); ok && v > 0 {
					params.Page = v
				}
				if v, ok := p.Args["limit"].(int); ok && v > 0 {
					params.Limit = v
				}
				if v, ok := p.Args["cidade"].(string); ok {
					params.Cidade = v
				}

				result, err := svc.List(p.Context, params)
				if err != nil {
					return nil, err
				}

				return pageResult{
					Data:       result.Data,
					Page:       result.Pagination.Page,
					Limit:      result.Pagination.Limit,
					Total:      result.Pagination.Total,
					TotalPages: result.Pagination.TotalPages,
				}, nil
			},
		},

		"stats": &graphql.Field{
			Type: statsType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return svc.Stats(p.Context)
			},
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
	})
}
