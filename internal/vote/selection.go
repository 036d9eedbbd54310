package vote

import "sync"

// Widget identifica logicamente cada select dos portais.
type Widget string

const (
	WidgetVenue   Widget = "venue"
	WidgetRace    Widget = "race"
	WidgetBetType Widget = "bet_type"
	WidgetMethod  Widget = "method"
)

// SelectionCache lembra o último valor aplicado em cada widget. Reaplicar
// um valor já vigente redispara o JavaScript do portal e custa segundos de
// espera, além de poder desanexar nós do DOM no meio do fluxo; por isso o
// fluxo consulta o cache antes de qualquer seleção.
type SelectionCache struct {
	mu      sync.Mutex
	applied map[Widget]string
}

func NewSelectionCache() *SelectionCache {
	return &SelectionCache{applied: make(map[Widget]string)}
}

// Applied reporta se o widget já está com esse valor.
func (c *SelectionCache) Applied(w Widget, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied[w] == value
}

// Remember registra o valor recém-aplicado.
func (c *SelectionCache) Remember(w Widget, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[w] = value
}

// Reset limpa tudo; chamado apenas quando uma nova sessão começa.
func (c *SelectionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = make(map[Widget]string)
}
