package domain

import "context"

// Notifier avisa o colaborador de mensagens (criação de thread) sobre um anúncio aceito.
// Falhas aqui nunca desfazem a aceitação.
type Notifier interface {
	SubmissionAccepted(ctx context.Context, s Submission) error
}
