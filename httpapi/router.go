// Package httpapi exposes the marketplace over HTTP. All lifecycle
// endpoints require a bearer token; health and metrics do not.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auditflow/metrics"
)

func NewRouter(h *Handler, verifier TokenVerifier) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Instrument)

	r.Get("/healthCheck", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(verifier))

		r.Post("/registerAudit", h.RegisterAudit)
		r.Post("/confirmPost", h.ConfirmPost)
		r.Post("/updateAuditStatus", h.UpdateAuditStatus)
		r.Post("/updateAuditStatusAfterClaim", h.UpdateAuditStatusAfterClaim)
		r.Post("/updateAuditorID", h.UpdateAuditorID)
		r.Post("/updateSalt", h.UpdateSalt)
		r.Post("/submitAuditReport", h.SubmitAuditReport)
		r.Post("/confirmSubmit", h.ConfirmSubmit)

		r.Post("/requestForAudit", h.RequestForAudit)
		r.Get("/viewBidRequests/{postID}", h.ViewBidRequests)
		r.Post("/updateBidStatus", h.UpdateBidStatus)
		r.Post("/deleteBidRequest", h.DeleteBidRequest)
		r.Post("/extendTimeline", h.ExtendTimeline)
		r.Post("/setExtendTimelineData", h.SetExtendTimelineData)

		r.Post("/selectArbiters", h.SelectArbiters)
		r.Post("/voteForPost", h.VoteForPost)
		r.Get("/viewArbiterationDetails", h.ViewArbiterationDetails)
	})

	return r
}
