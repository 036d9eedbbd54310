package vote

import (
	"context"
	"time"
)

// Element referencia um nó localizado na página: a query que o encontrou e
// a posição dentro do resultado. O driver re-resolve no momento da ação,
// então handles continuam válidos mesmo após re-render do DOM.
type Element struct {
	Query string
	Index int
}

// Surface é o contrato mínimo que o fluxo de votação exige de qualquer
// driver de página (navegador real ou fake roteirizado nos testes).
// Toda ação que muda a página é seguida de WaitSettle antes da próxima.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	WaitSettle(ctx context.Context) error
	Locate(ctx context.Context, query string) ([]Element, error)
	Fill(ctx context.Context, el Element, text string) error
	// SelectLabel seleciona a option cujo rótulo contém o texto e dispara
	// o change do select.
	SelectLabel(ctx context.Context, el Element, label string) error
	Click(ctx context.Context, el Element) error
	Text(ctx context.Context, el Element) (string, error)
	Count(ctx context.Context, query string) (int, error)
	Wait(ctx context.Context, d time.Duration) error
	Close(ctx context.Context) error
}
