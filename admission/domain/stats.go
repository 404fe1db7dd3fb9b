package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão (ou do flood guard HTTP).
//
// Cuidado com cardinalidade: Class/Rule são conjuntos fechados, mas Key (endereço)
// pode explodir o número de chaves numa base como Redis.
type StatsEvent struct {
	Key     string
	Allowed bool

	// Source diz quem decidiu: SourceAdmission ou SourceFlood.
	Source string
	Class  Class
	Rule   Rule

	At time.Time
}

const (
	SourceAdmission = "admission"
	SourceFlood     = "flood"
)

// StatsStore é a estratégia de persistência das estatísticas.
// Quem chama trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
