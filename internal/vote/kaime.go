package vote

import (
	"fmt"
	"strconv"
	"strings"
)

// Combination é uma lista ordenada de números de corredores (1-3 posições).
// Imutável depois de construída a partir da entrada bruta.
type Combination []int

// ParseCombination aceita os dois encodings usados pelos sinais:
// "1-2-3" e "1_2_3". Zeros são descartados (posições vazias do formato
// de largura fixa), o resto precisa estar em 1..MaxRunner.
func ParseCombination(raw string) (Combination, error) {
	sep := "-"
	if strings.Contains(raw, "_") {
		sep = "_"
	}

	parts := strings.Split(strings.TrimSpace(raw), sep)
	combo := make(Combination, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("kaime %q: %w", raw, err)
		}
		if n == 0 {
			continue
		}
		if n < 1 || n > MaxRunner {
			return nil, fmt.Errorf("kaime %q: runner %d out of range 1-%d", raw, n, MaxRunner)
		}
		combo = append(combo, n)
	}
	if len(combo) == 0 {
		return nil, fmt.Errorf("kaime %q: empty", raw)
	}
	return combo, nil
}

// Contains reporta se o corredor aparece na combinação.
func (c Combination) Contains(runner int) bool {
	for _, n := range c {
		if n == runner {
			return true
		}
	}
	return false
}

// Distinct reporta se não há corredor repetido.
func (c Combination) Distinct() bool {
	seen := map[int]bool{}
	for _, n := range c {
		if seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

func (c Combination) String() string {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// runnerFieldWidth é a largura de cada campo hexadecimal do encoding de
// combinação usado pelos inputs ocultos do SPAT4 (3 campos de 4 dígitos).
const (
	runnerFieldWidth = 4
	runnerFieldCount = 3
)

// EncodeRunnerFields serializa a combinação no formato de largura fixa do
// SPAT4: três campos hexadecimais maiúsculos de 4 dígitos, posições não
// usadas preenchidas com zero. [1 2 3] => "000100020003".
func EncodeRunnerFields(c Combination) string {
	var b strings.Builder
	for i := 0; i < runnerFieldCount; i++ {
		n := 0
		if i < len(c) {
			n = c[i]
		}
		fmt.Fprintf(&b, "%0*X", runnerFieldWidth, n)
	}
	return b.String()
}

// DecodeRunnerFields desfaz EncodeRunnerFields, descartando campos zerados.
func DecodeRunnerFields(s string) (Combination, error) {
	if len(s) != runnerFieldWidth*runnerFieldCount {
		return nil, fmt.Errorf("runner fields %q: want %d chars", s, runnerFieldWidth*runnerFieldCount)
	}
	combo := make(Combination, 0, runnerFieldCount)
	for i := 0; i < runnerFieldCount; i++ {
		field := s[i*runnerFieldWidth : (i+1)*runnerFieldWidth]
		n, err := strconv.ParseInt(field, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("runner fields %q: %w", s, err)
		}
		if n == 0 {
			continue
		}
		combo = append(combo, int(n))
	}
	return combo, nil
}
