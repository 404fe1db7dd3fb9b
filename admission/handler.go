package admission

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"trade-admission/admission/application"
	"trade-admission/admission/domain"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 64 << 10

// Submitter é o motor de admissão visto pelo adapter HTTP.
type Submitter interface {
	SubmitTrade(ctx context.Context, req application.TradeRequest) application.Result
}

// Handler expõe as rotas de anúncios. KeyFn e Session têm padrões seguros
// (RemoteAddr, sempre anônimo) quando nil.
type Handler struct {
	Engine   Submitter
	Listings application.Listings
	KeyFn    KeyFunc
	Session  SessionFunc
	Logger   zerolog.Logger
}

type tradeBody struct {
	Player1     []domain.ItemRef `json:"player1"`
	Player2     []domain.ItemRef `json:"player2"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Discord     string           `json:"discord"`
	Roblox      string           `json:"roblox"`
}

type editBody struct {
	TradeID     string `json:"tradeId"`
	Description string `json:"description"`
}

type submitResponse struct {
	Success bool              `json:"success"`
	ID      string            `json:"id"`
	Trade   domain.Submission `json:"trade"`
}

type listResponse struct {
	Success bool                `json:"success"`
	Data    []domain.Submission `json:"data"`
}

type manageResponse struct {
	Success   bool                `json:"success"`
	Trades    []domain.Submission `json:"trades"`
	Active    int                 `json:"active"`
	MaxActive int                 `json:"maxActive"`
	Remaining int                 `json:"remaining"`
}

type okResponse struct {
	Success    bool `json:"success"`
	DeletedAll bool `json:"deletedAll,omitempty"`
}

type errorBody struct {
	Error             string `json:"error"`
	Class             string `json:"class,omitempty"`
	Rule              string `json:"rule,omitempty"`
	Count             int    `json:"count,omitempty"`
	Threshold         int    `json:"threshold,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

func (h Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/trades", h.submit)
	mux.HandleFunc("GET /api/trades", h.list)
	mux.HandleFunc("DELETE /api/trades", h.purge)
	mux.HandleFunc("GET /api/manage/trades", h.manage)
	mux.HandleFunc("PATCH /api/trades/editOne", h.editDescription)
	mux.HandleFunc("DELETE /api/trades/deleteOne", h.deleteOne)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (h Handler) address(r *http.Request) string {
	if h.KeyFn != nil {
		return h.KeyFn(r)
	}
	return ClientAddress(false)(r)
}

func (h Handler) account(r *http.Request) *domain.Account {
	if h.Session == nil {
		return nil
	}
	return h.Session(r)
}

func (h Handler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body tradeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeRejection(w, domain.Reject(domain.ClassValidation, domain.RuleMalformedBody, "Invalid JSON body."))
		return
	}

	res := h.Engine.SubmitTrade(r.Context(), application.TradeRequest{
		Side1:       body.Player1,
		Side2:       body.Player2,
		Title:       body.Title,
		Description: body.Description,
		Contacts:    domain.ContactHandles{Discord: body.Discord, Roblox: body.Roblox},
		Meta: domain.RequestMeta{
			Address:   h.address(r),
			Signature: r.UserAgent(),
			Account:   h.account(r),
		},
	})
	if !res.Accepted {
		writeRejection(w, res.Rejection)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Success: true,
		ID:      res.SubmissionID,
		Trade:   res.Submission.Public(),
	})
}

func (h Handler) list(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := domain.Query{
		Search:  qs.Get("search"),
		OwnerID: strings.TrimSpace(qs.Get("ownerId")),
		Skip:    atoiDefault(qs.Get("skip"), 0),
		Limit:   atoiDefault(qs.Get("limit"), 0),
	}

	subs, err := h.Listings.List(r.Context(), q)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list trades failed")
		writeRejection(w, domain.Unavailable())
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Data: subs})
}

func (h Handler) manage(w http.ResponseWriter, r *http.Request) {
	acc := h.account(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "Not logged in.")
		return
	}

	v, err := h.Listings.Manage(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error().Err(err).Msg("manage trades failed")
		writeRejection(w, domain.Unavailable())
		return
	}
	writeJSON(w, http.StatusOK, manageResponse{
		Success:   true,
		Trades:    v.Trades,
		Active:    v.Active,
		MaxActive: v.MaxActive,
		Remaining: v.Remaining,
	})
}

func (h Handler) editDescription(w http.ResponseWriter, r *http.Request) {
	acc := h.account(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "Not logged in.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body editBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(body.TradeID) == "" {
		writeError(w, http.StatusBadRequest, "Trade ID required.")
		return
	}

	err := h.Listings.EditDescription(r.Context(), acc.ID, strings.TrimSpace(body.TradeID), body.Description)
	h.writeOwnerResult(w, err, "edit description")
}

func (h Handler) deleteOne(w http.ResponseWriter, r *http.Request) {
	acc := h.account(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "Not logged in.")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Trade ID required.")
		return
	}
	h.writeOwnerResult(w, h.Listings.Delete(r.Context(), acc.ID, id), "delete trade")
}

func (h Handler) writeOwnerResult(w http.ResponseWriter, err error, op string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, okResponse{Success: true})
	case errors.Is(err, domain.ErrSubmissionNotFound):
		writeError(w, http.StatusForbidden, "Trade not found or unauthorized.")
	default:
		h.Logger.Error().Err(err).Msg(op + " failed")
		writeRejection(w, domain.Unavailable())
	}
}

func (h Handler) purge(w http.ResponseWriter, r *http.Request) {
	err := h.Listings.Purge(r.Context(), r.Header.Get("X-Admin-Key"))
	switch {
	case err == nil:
		h.Logger.Warn().Str("address", h.address(r)).Msg("all trades purged")
		writeJSON(w, http.StatusOK, okResponse{Success: true, DeletedAll: true})
	case errors.Is(err, application.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Unauthorized")
	default:
		h.Logger.Error().Err(err).Msg("purge failed")
		writeRejection(w, domain.Unavailable())
	}
}

// statusFor traduz a classe da rejeição para o status HTTP.
func statusFor(c domain.Class) int {
	switch c {
	case domain.ClassValidation:
		return http.StatusBadRequest
	case domain.ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusTooManyRequests
	}
}

func writeRejection(w http.ResponseWriter, rej *domain.Rejection) {
	if rej == nil {
		rej = domain.Unavailable()
	}
	secs := retryAfterSeconds(rej.RetryAfter)
	if secs > 0 {
		w.Header().Set("Retry-After", formatInt(secs))
	}
	writeJSON(w, statusFor(rej.Class), errorBody{
		Error:             rej.Message,
		Class:             string(rej.Class),
		Rule:              string(rej.Rule),
		Count:             rej.Count,
		Threshold:         rej.Threshold,
		RetryAfterSeconds: secs,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
