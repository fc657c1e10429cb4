// Package handler exposes the registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/registry/service"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/httputil"
	"vcregistry/pkg/requestcontext"
)

// Service is the registry surface used by the handler.
type Service interface {
	State(ctx context.Context) (*models.ContractState, error)
	ConfigureAuthority(ctx context.Context, caller, authority id.Address) (*models.ContractState, error)
	UploadCredential(ctx context.Context, caller id.Address, cmd service.UploadCommand) (*models.PendingRequest, error)
	SetRevocationStatus(ctx context.Context, caller id.Address, cmd service.RevocationCommand) (*models.PendingRequest, error)
	Resume(ctx context.Context, r models.Resumption) (*models.Outcome, error)
	Credential(ctx context.Context, did id.DID, vcID id.VCID) (*models.VerifiableCredential, error)
	Credentials(ctx context.Context, did id.DID) ([]models.StoredCredential, error)
	DIDs(ctx context.Context) ([]id.DID, error)
	Request(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error)
}

type Handler struct {
	registry Service
	logger   *slog.Logger
}

func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the caller-facing routes. The router must authenticate
// the caller before these handlers run.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registry/state", h.handleGetState)
	r.Put("/registry/authority", h.handleConfigureAuthority)
	r.Post("/registry/credentials", h.handleUploadCredential)
	r.Post("/registry/credentials/revocation", h.handleSetRevocation)
	r.Get("/registry/dids", h.handleListDIDs)
	r.Get("/registry/dids/{did}/credentials", h.handleListCredentials)
	r.Get("/registry/dids/{did}/credentials/{vcID}", h.handleGetCredential)
	r.Get("/registry/requests/{requestID}", h.handleGetRequest)
}

// RegisterCallbacks mounts the resumption route. The router must verify the
// callback token before this handler runs.
func (h *Handler) RegisterCallbacks(r chi.Router) {
	r.Post("/registry/requests/{requestID}/verdict", h.handleVerdict)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.registry.State(ctx)
	if err != nil {
		h.fail(ctx, w, "read state", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

func (h *Handler) handleConfigureAuthority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfigureAuthorityRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	authority, err := id.ParseAddress(req.Authority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	st, err := h.registry.ConfigureAuthority(ctx, caller, authority)
	if err != nil {
		h.fail(ctx, w, "configure authority", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

func (h *Handler) handleUploadCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UploadCredentialRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	vcID, authority, err := parseTarget(req.VCID, req.Authority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pending, err := h.registry.UploadCredential(ctx, caller, service.UploadCommand{
		IssuerDID:  id.DID(req.IssuerDID),
		VCID:       vcID,
		Credential: req.credential(),
		Authority:  authority,
	})
	if err != nil {
		h.fail(ctx, w, "upload credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toPendingResponse(pending))
}

func (h *Handler) handleSetRevocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetRevocationRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	vcID, authority, err := parseTarget(req.VCID, req.Authority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pending, err := h.registry.SetRevocationStatus(ctx, caller, service.RevocationCommand{
		IssuerDID: id.DID(req.IssuerDID),
		VCID:      vcID,
		Revoked:   *req.Revoked,
		Authority: authority,
	})
	if err != nil {
		h.fail(ctx, w, "set revocation status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toPendingResponse(pending))
}

func parseTarget(rawVCID, rawAuthority string) (id.VCID, id.Address, error) {
	vcID, err := id.ParseVCID(rawVCID)
	if err != nil {
		return id.VCID{}, id.Address{}, err
	}
	var authority id.Address
	if rawAuthority != "" {
		if authority, err = id.ParseAddress(rawAuthority); err != nil {
			return id.VCID{}, id.Address{}, err
		}
	}
	return vcID, authority, nil
}

func (h *Handler) handleListDIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dids, err := h.registry.DIDs(ctx)
	if err != nil {
		h.fail(ctx, w, "list DIDs", err)
		return
	}
	out := DIDListResponse{DIDs: make([]string, 0, len(dids))}
	for _, d := range dids {
		out.DIDs = append(out.DIDs, d.String())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, err := didParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.registry.Credentials(ctx, did)
	if err != nil {
		h.fail(ctx, w, "list credentials", err)
		return
	}
	out := CredentialListResponse{DID: did.String(), Credentials: make([]CredentialResponse, 0, len(list))}
	for i := range list {
		out.Credentials = append(out.Credentials, toCredentialResponse(list[i].DID, list[i].VCID, &list[i].Credential))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, err := didParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vcID, err := id.ParseVCID(chi.URLParam(r, "vcID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vc, err := h.registry.Credential(ctx, did, vcID)
	if err != nil {
		h.fail(ctx, w, "read credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(did, vcID, vc))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.registry.Request(ctx, requestID)
	if err != nil {
		h.fail(ctx, w, "read request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

// handleVerdict resumes a request. Denials and rejected commits are
// reported with their error status; the outcome is also recorded and can be
// read back from the request route.
func (h *Handler) handleVerdict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerdictRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	outcome, err := h.registry.Resume(ctx, models.Resumption{RequestID: requestID, Success: *req.Success})
	if err != nil {
		h.fail(ctx, w, "resume request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

func didParam(r *http.Request) (id.DID, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "did"))
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid DID encoding")
	}
	return id.ParseDID(raw)
}

// fail writes err. Only infrastructure failures are logged as errors; the
// rest are expected outcomes of the registry's rules.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if dErrors.IsInternal(err) {
		h.logger.ErrorContext(ctx, "registry operation failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "registry operation refused", attrs...)
	}
	httputil.WriteError(w, err)
}
