// Package api implements the ops HTTP surface of the service.
//
// Routes:
//
//	GET  /health                  → liveness
//	GET  /stats                   → document counts, cache sizes, job history
//	POST /jobs/{name}             → start a scheduled job now
//	GET  /users/{chat_id}/matches → active offers matched for a user
//	PUT  /users/{chat_id}/address → validate and store a user's address
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/scheduler"
)

// Counter is a store seen through its document count and cache size.
type Counter interface {
	Count(ctx context.Context, f docstore.Filter) (int64, error)
	CacheLen() int
}

// OfferCounter also knows how many offers are active.
type OfferCounter interface {
	Counter
	CountActive(ctx context.Context) (int64, error)
}

// JobRunner starts and reports scheduled jobs.
type JobRunner interface {
	Trigger(ctx context.Context, name string) error
	Status() []scheduler.JobStatus
}

// MatchesFunc lists the active offers matched for a user.
type MatchesFunc func(ctx context.Context, chatID int64) ([]*model.Offer, error)

// AddressFunc validates address and stores it on the user. A refused
// address yields a *model.ValidationError.
type AddressFunc func(ctx context.Context, chatID int64, address string) (*model.User, error)

// Deps are the components the handlers read from.
type Deps struct {
	Offers     OfferCounter
	Users      Counter
	Finders    Counter
	Jobs       JobRunner
	Matches    MatchesFunc
	SetAddress AddressFunc
	Version    string
}

// Handler holds shared dependencies. Jobs started over HTTP run on ctx, not
// on the request context, so they outlive the request but not the process.
type Handler struct {
	ctx context.Context
	d   Deps
}

// NewHandler returns a configured Handler.
func NewHandler(ctx context.Context, d Deps) *Handler {
	return &Handler{ctx: ctx, d: d}
}

// Router returns a gorilla/mux router with every route mounted.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{name}", h.runJob).Methods(http.MethodPost)
	r.HandleFunc("/users/{chat_id:-?[0-9]+}/matches", h.matches).Methods(http.MethodGet)
	r.HandleFunc("/users/{chat_id:-?[0-9]+}/address", h.setAddress).Methods(http.MethodPut)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "easyfinder",
		"version": h.d.Version,
	})
}

type storeStats struct {
	Total  int64  `json:"total"`
	Active *int64 `json:"active,omitempty"`
	Cached int    `json:"cached"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := struct {
		Offers  storeStats            `json:"offers"`
		Users   storeStats            `json:"users"`
		Finders storeStats            `json:"finders"`
		Jobs    []scheduler.JobStatus `json:"jobs"`
	}{Jobs: h.d.Jobs.Status()}

	var err error
	if resp.Offers, err = count(ctx, h.d.Offers); err != nil {
		log.Printf("[api] stats offers error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	active, err := h.d.Offers.CountActive(ctx)
	if err != nil {
		log.Printf("[api] stats active offers error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	resp.Offers.Active = &active
	if resp.Users, err = count(ctx, h.d.Users); err != nil {
		log.Printf("[api] stats users error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if resp.Finders, err = count(ctx, h.d.Finders); err != nil {
		log.Printf("[api] stats finders error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, resp)
}

func count(ctx context.Context, c Counter) (storeStats, error) {
	n, err := c.Count(ctx, docstore.Filter{})
	if err != nil {
		return storeStats{}, err
	}
	return storeStats{Total: n, Cached: c.CacheLen()}, nil
}

func (h *Handler) runJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	switch err := h.d.Jobs.Trigger(h.ctx, name); {
	case errors.Is(err, scheduler.ErrUnknownJob):
		jsonError(w, "unknown job", http.StatusNotFound)
		return
	case errors.Is(err, scheduler.ErrStopped):
		jsonError(w, "shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		log.Printf("[api] job %s could not be started: %v", name, err)
		jsonError(w, "job not started", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job": name, "status": "started"})
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(mux.Vars(r)["chat_id"], 10, 64)
	if err != nil {
		jsonError(w, "invalid chat id", http.StatusBadRequest)
		return
	}
	offers, err := h.d.Matches(r.Context(), chatID)
	if err != nil {
		log.Printf("[api] matches for %d error: %v", chatID, err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if offers == nil {
		offers = []*model.Offer{}
	}
	jsonOK(w, offers)
}

func (h *Handler) setAddress(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(mux.Vars(r)["chat_id"], 10, 64)
	if err != nil {
		jsonError(w, "invalid chat id", http.StatusBadRequest)
		return
	}
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	u, err := h.d.SetAddress(r.Context(), chatID, body.Address)
	var verr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, "user not found", http.StatusNotFound)
	case errors.As(err, &verr):
		jsonError(w, verr.Msg, http.StatusUnprocessableEntity)
	case err != nil:
		log.Printf("[api] set address for %d error: %v", chatID, err)
		jsonError(w, "database error", http.StatusInternalServerError)
	default:
		jsonOK(w, u)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
