package vote

import (
	"errors"
	"fmt"
)

// Category classifica o desfecho de um job de votação. Nenhuma categoria é
// retentada automaticamente: dinheiro em jogo pede intervenção do operador.
type Category string

const (
	// credenciais rejeitadas pelo portal
	CategoryAuthentication Category = "authentication_error"
	// pista/corrida não encontrada ou fora do horário de apostas
	CategoryScheduleMismatch Category = "schedule_mismatch"
	// controle esperado sumiu; provável mudança de layout do portal
	CategoryStructuralDrift Category = "structural_drift"
	// rotação de mercados esgotada sem acomodar todas as combinações
	CategoryTooManyCombinations Category = "too_many_combinations"
	// todas as combinações filtradas; nada a submeter
	CategoryBusinessRule Category = "business_rule"
	// sem marcador de sucesso nem de erro após o submit; conciliar manualmente
	CategoryAmbiguousOutcome Category = "ambiguous_outcome"
	// sinal malformado, rejeitado antes de abrir sessão
	CategoryInvalidInput Category = "invalid_input"
)

// FlowError é o erro tipado do fluxo de votação, carregando a categoria
// terminal e um detalhe de diagnóstico opcional.
type FlowError struct {
	Category Category
	Message  string
	Detail   string
}

func (e *FlowError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func flowErr(cat Category, msg string) *FlowError {
	return &FlowError{Category: cat, Message: msg}
}

func flowErrf(cat Category, msg, format string, args ...any) *FlowError {
	return &FlowError{Category: cat, Message: msg, Detail: fmt.Sprintf(format, args...)}
}

func asFlowError(err error, target **FlowError) bool {
	return errors.As(err, target)
}

// Classify extrai a categoria de um erro do fluxo. Erros não tipados
// (driver, contexto) são tratados como structural_drift: o mais provável é
// que o portal tenha mudado debaixo de nós.
func Classify(err error) Category {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return CategoryStructuralDrift
}
