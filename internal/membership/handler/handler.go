package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/httputil"
	"roster/pkg/requestcontext"
)

// HeaderRequester names the identity account the CRM backend acts for.
const HeaderRequester = "X-Requester-ID"

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Invite(ctx context.Context, requesterID id.AccountID, req models.InviteRequest) (*models.InviteResult, error)
	Blacklist(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (*models.Membership, error)
	Remove(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (*models.Membership, error)
	Restore(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (*models.Membership, error)
}

// Handler wires membership endpoints to the lifecycle service. Routes are mounted
// behind the admin token; the CRM backend passes the acting user in X-Requester-ID.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts membership endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/members", h.HandleInvite)
	r.Post("/members/{membershipID}/blacklist", h.transition("blacklist", h.service.Blacklist))
	r.Post("/members/{membershipID}/remove", h.transition("remove", h.service.Remove))
	r.Post("/members/{membershipID}/restore", h.transition("restore", h.service.Restore))
}

// HandleInvite handles POST /members. The generated secret is only ever returned here.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requesterID, err := requester(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.InviteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Invite(requestcontext.WithRequester(ctx, requesterID), requesterID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "invite failed",
			"request_id", requestcontext.RequestID(ctx),
			"requester_id", requesterID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusCreated, result)
}

type transitionFunc func(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (*models.Membership, error)

func (h *Handler) transition(op string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requesterID, err := requester(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		membershipID, err := id.ParseMembershipID(chi.URLParam(r, "membershipID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		m, err := fn(requestcontext.WithRequester(ctx, requesterID), requesterID, membershipID)
		if err != nil {
			h.logger.WarnContext(ctx, op+" failed",
				"request_id", requestcontext.RequestID(ctx),
				"requester_id", requesterID,
				"membership_id", membershipID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, m)
	}
}

func requester(r *http.Request) (id.AccountID, error) {
	raw := r.Header.Get(HeaderRequester)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, HeaderRequester+" header is required")
	}
	return id.ParseAccountID(raw)
}
