package domain

import (
	"context"
	"strconv"
	"time"
)

// SubjectClass identifica quem é contado: o fingerprint (endereço + assinatura
// do cliente) ou o endereço de rede puro.
type SubjectClass string

const (
	SubjectFingerprint SubjectClass = "fingerprint"
	SubjectAddress     SubjectClass = "address"
)

// WindowKind é a resolução da janela fixa de um contador.
type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowHour   WindowKind = "hour"
)

// Size retorna a duração da janela.
func (k WindowKind) Size() time.Duration {
	if k == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// BucketKey é a chave de janela de um contador: classe + resolução + índice.
//
// O índice é o tempo de parede (ms desde a época) dividido pelo tamanho da janela,
// então contadores "resetam" sozinhos quando o relógio muda de índice.
type BucketKey struct {
	Class SubjectClass
	Kind  WindowKind
	Index int64
}

// BucketAt calcula a chave de janela para o instante t.
func BucketAt(class SubjectClass, kind WindowKind, t time.Time) BucketKey {
	return BucketKey{
		Class: class,
		Kind:  kind,
		Index: t.UnixMilli() / kind.Size().Milliseconds(),
	}
}

func (b BucketKey) String() string {
	return string(b.Class) + ":" + string(b.Kind) + ":" + strconv.FormatInt(b.Index, 10)
}

// End retorna o instante em que a janela termina (início da próxima).
func (b BucketKey) End() time.Time {
	return time.UnixMilli((b.Index + 1) * b.Kind.Size().Milliseconds())
}

// CounterStore mapeia (subjectID, bucket) -> contagem.
//
// IncrementAndGet cria o contador com 1 se não existir, senão incrementa,
// e retorna o valor pós-incremento numa única operação atômica.
// Contadores mais velhos que ttl são mortos: nunca voltam a ser lidos como vivos.
// A expiração é responsabilidade do store, não de quem chama.
type CounterStore interface {
	IncrementAndGet(ctx context.Context, subjectID string, bucket BucketKey, ttl time.Duration) (int64, error)
}

// CounterPurger apaga todos os contadores de uma vez (purge administrativo).
type CounterPurger interface {
	Purge(ctx context.Context) error
}
