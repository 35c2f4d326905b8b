// Package dados implementa o CRUD da coleção "dados" com aceleração
// cache-aside: consulta o cache antes do banco, popula no miss e invalida
// na escrita. O Postgres é sempre a fonte de verdade.
package dados

import "time"

// Record é um registro da tabela dados. O contrato JSON preserva os nomes
// do sistema original.
type Record struct {
	ID        string    `json:"id"`
	AlunoID   int       `json:"aluno_id"`
	Nome      string    `json:"nome"`
	Sobrenome string    `json:"sobrenome"`
	Endereco  string    `json:"endereco"`
	Cidade    string    `json:"cidade"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput é o payload de criação: quatro strings obrigatórias e limitadas.
type CreateInput struct {
	Nome      string `json:"nome" validate:"required,min=1,max=50"`
	Sobrenome string `json:"sobrenome" validate:"required,min=1,max=50"`
	Endereco  string `json:"endereco" validate:"required,min=1,max=150"`
	Cidade    string `json:"cidade" validate:"required,min=1,max=50"`
}

// UpdateInput é o payload parcial de atualização: cada campo é opcional,
// mas um campo presente não pode ser vazio (campos não podem ser limpos).
type UpdateInput struct {
	Nome      *string `json:"nome" validate:"omitempty,min=1,max=50"`
	Sobrenome *string `json:"sobrenome" validate:"omitempty,min=1,max=50"`
	Endereco  *string `json:"endereco" validate:"omitempty,min=1,max=150"`
	Cidade    *string `json:"cidade" validate:"omitempty,min=1,max=50"`
}

// IsEmpty indica que nenhum campo foi fornecido (update no-op é rejeitado).
func (in UpdateInput) IsEmpty() bool {
	return in.Nome == nil && in.Sobrenome == nil && in.Endereco == nil && in.Cidade == nil
}

// ListParams são os parâmetros de listagem já coagidos para inteiros válidos.
type ListParams struct {
	Page   int
	Limit  int
	Cidade string
}

// Page é o valor serializado no cache para uma página de listagem.
type Page struct {
	Data  []Record `json:"data"`
	Total int      `json:"total"`
}

// Pagination é o bloco de paginação do envelope de resposta.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResult agrupa a página e sua paginação.
type ListResult struct {
	Data       []Record
	Pagination Pagination
}

// CityCount é uma linha da agregação por cidade.
type CityCount struct {
	Cidade string `json:"cidade"`
	Count  int    `json:"count"`
}

// Stats é o resumo agregado da coleção, computado em uma transação para
// garantir um snapshot consistente.
type Stats struct {
	Total       int         `json:"total"`
	ByCity      []CityCount `json:"byCity"`
	Last24Hours int         `json:"last24Hours"`
	Timestamp   time.Time   `json:"timestamp"`
}
