package dados

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound indica id desconhecido em get/update/delete.
	ErrNotFound = errors.New("record not found")

	// ErrNoFieldsToUpdate indica um update sem nenhum campo fornecido.
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)

// ValidationError carrega o detalhe por campo de um payload inválido.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for field, msg := range e.Details {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// asValidationError traduz os erros do validator para o formato de resposta.
func asValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make(map[string]string, len(verrs))
	for _, e := range verrs {
		details[strings.ToLower(e.Field())] = fmt.Sprintf("falhou na regra '%s'", e.Tag())
	}

	return &ValidationError{Details: details}
}
