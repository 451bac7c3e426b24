package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// MountRoutes registers order endpoints. Per-target transition capabilities and
// the creator and assignment guards are enforced by the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapOrderView))
		r.Get("/orders", h.List)
		r.Get("/orders/stats", h.Stats)
		r.Get("/orders/{id}", h.Show)
		r.Get("/orders/{id}/pdf", h.PDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapOrderCreate))
		r.Post("/orders", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapOrderEdit))
		r.Patch("/orders/{id}", h.Update)
		r.Post("/orders/{id}/lines", h.AddLine)
		r.Patch("/orders/{id}/lines/{lineID}", h.UpdateLine)
		r.Delete("/orders/{id}/lines/{lineID}", h.DeleteLine)
		r.Post("/orders/{id}/archive", h.Archive)
		r.Post("/orders/{id}/restore", h.Restore)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapOrderDelete))
		r.Delete("/orders/{id}", h.Delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			shared.CapOrderApprove,
			shared.CapOrderReject,
			shared.CapOrderStartFabrication,
			shared.CapOrderMarkReady,
			shared.CapOrderMarkInstalled,
			shared.CapOrderComplete,
			shared.CapOrderCancel,
		))
		r.Post("/orders/{id}/transition", h.Transition)
	})
}
