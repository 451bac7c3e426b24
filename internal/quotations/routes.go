package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// MountRoutes registers quotation endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapQuotationView))
		r.Get("/quotations", h.List)
		r.Get("/quotations/{id}", h.Show)
		r.Get("/quotations/{id}/pdf", h.PDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapQuotationCreate))
		r.Post("/quotations", h.Create)
		r.Post("/quotations/{id}/clone", h.Clone)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.CapQuotationEdit))
		r.Put("/quotations/{id}", h.Update)
		r.Post("/quotations/{id}/groups/{groupID}/items", h.CreateItem)
		r.Delete("/quotations/{id}/items/{itemID}", h.DeleteItem)
		r.Post("/quotations/{id}/archive", h.Archive)
		r.Post("/quotations/{id}/restore", h.Restore)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(
			shared.CapQuotationSend,
			shared.CapQuotationApprove,
			shared.CapQuotationReject,
			shared.CapQuotationCancel,
		))
		r.Post("/quotations/{id}/transition", h.Transition)
	})
}
