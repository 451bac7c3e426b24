package shared

// Workflow capabilities declared for RBAC. Each transition target maps to exactly one.
const (
	// Order transitions
	CapOrderApprove          = "order.approve"
	CapOrderReject           = "order.reject"
	CapOrderStartFabrication = "order.start_fabrication"
	CapOrderMarkReady        = "order.mark_ready"
	CapOrderMarkInstalled    = "order.mark_installed"
	CapOrderComplete         = "order.complete"
	CapOrderCancel           = "order.cancel"

	// Order management
	CapOrderView   = "order.view"
	CapOrderCreate = "order.create"
	CapOrderEdit   = "order.edit"
	CapOrderDelete = "order.delete"

	// Quotation transitions
	CapQuotationSend    = "quotation.send"
	CapQuotationApprove = "quotation.approve"
	CapQuotationReject  = "quotation.reject"
	CapQuotationCancel  = "quotation.cancel"

	// Quotation management
	CapQuotationView   = "quotation.view"
	CapQuotationCreate = "quotation.create"
	CapQuotationEdit   = "quotation.edit"

	// CapAdminOverride bypasses every per-state and assignment check.
	CapAdminOverride = "admin.override"
)

// OrderScopes lists all order capabilities.
func OrderScopes() []string {
	return []string{
		CapOrderView,
		CapOrderCreate,
		CapOrderEdit,
		CapOrderDelete,
		CapOrderApprove,
		CapOrderReject,
		CapOrderStartFabrication,
		CapOrderMarkReady,
		CapOrderMarkInstalled,
		CapOrderComplete,
		CapOrderCancel,
	}
}

// QuotationScopes lists all quotation capabilities.
func QuotationScopes() []string {
	return []string{
		CapQuotationView,
		CapQuotationCreate,
		CapQuotationEdit,
		CapQuotationSend,
		CapQuotationApprove,
		CapQuotationReject,
		CapQuotationCancel,
	}
}

// AllWorkflowScopes returns every capability known to the engine.
func AllWorkflowScopes() []string {
	scopes := append(OrderScopes(), QuotationScopes()...)
	return append(scopes, CapAdminOverride)
}
