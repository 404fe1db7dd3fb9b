package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"trade-admission/admission/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Listings são os caminhos fora da admissão: listar, editar descrição,
// apagar pelo dono e purge administrativo.
type Listings struct {
	Log domain.SubmissionLog
	// Counters, quando presente, é zerado junto no purge.
	Counters            domain.CounterPurger
	RegisteredActiveCap int
	MaxDescriptionLen   int
	// AdminKey vazio desliga o purge.
	AdminKey string
}

// List retorna anúncios sem os campos de identidade de rede, do mais novo ao mais antigo.
func (l Listings) List(ctx context.Context, q domain.Query) ([]domain.Submission, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	q.Search = strings.TrimSpace(q.Search)

	subs, err := l.Log.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i] = subs[i].Public()
	}
	return subs, nil
}

// ManageView é a visão "meus anúncios" de um usuário registrado.
type ManageView struct {
	Trades    []domain.Submission
	Active    int
	MaxActive int
	Remaining int
}

func (l Listings) Manage(ctx context.Context, ownerID string) (ManageView, error) {
	if ownerID == "" {
		return ManageView{}, ErrUnauthorized
	}
	subs, err := l.Log.Find(ctx, domain.Query{OwnerID: ownerID})
	if err != nil {
		return ManageView{}, err
	}
	for i := range subs {
		subs[i] = subs[i].Public()
	}

	v := ManageView{
		Trades:    subs,
		Active:    len(subs),
		MaxActive: l.RegisteredActiveCap,
	}
	if v.Remaining = v.MaxActive - v.Active; v.Remaining < 0 {
		v.Remaining = 0
	}
	return v, nil
}

// EditDescription só altera a descrição, e só do próprio dono.
func (l Listings) EditDescription(ctx context.Context, ownerID, id, description string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}
	return l.Log.UpdateDescription(ctx, id, ownerID, truncateRunes(strings.TrimSpace(description), l.MaxDescriptionLen))
}

func (l Listings) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}
	return l.Log.Delete(ctx, id, ownerID)
}

// Purge apaga todos os anúncios e os contadores de ritmo quando key confere com AdminKey.
func (l Listings) Purge(ctx context.Context, key string) error {
	if l.AdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(l.AdminKey)) != 1 {
		return ErrUnauthorized
	}
	if err := l.Log.Purge(ctx); err != nil {
		return err
	}
	if l.Counters == nil {
		return nil
	}
	return l.Counters.Purge(ctx)
}
