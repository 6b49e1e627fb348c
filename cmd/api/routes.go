package main

import (
	"database/sql"
	"time"

	"campaign-billing/internal/httpapi"
	"campaign-billing/internal/rbac"
	"campaign-billing/internal/taxauthority"
	"campaign-billing/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, webhook taxauthority.WebhookHandler, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Authority result callbacks (public, HMAC-validated in the handler).
	r.POST("/webhooks/taxauthority/result", webhook.HandleResult)

	// Token issuance is the only unauthenticated v1 endpoint.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireWorkspace())
	{
		// PRICING routes: read-only, any workspace member.
		prc := v1.Group("/pricing")
		prc.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance, rbac.RoleAnalyst))
		{
			prc.GET("/tiers", h.ListTiers)
			prc.POST("/quote", h.Quote)
		}

		// BILLING routes: state-changing operations are finance territory.
		inv := v1.Group("/invoice-requests")
		inv.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance))
		{
			inv.POST("", h.CreateInvoiceRequest)
			inv.GET("", h.ListInvoiceRequests)
			inv.GET("/:id", h.GetInvoiceRequest)
			inv.POST("/:id/issue", h.IssueInvoice)
			inv.POST("/:id/reissue", h.ReissueInvoice)
			inv.POST("/:id/cancel", h.CancelInvoice)
			inv.POST("/:id/reconcile", h.ReconcileInvoice)
			inv.POST("/:id/deposit-confirmed", h.ConfirmInvoiceDeposit)
		}

		// DEPOSIT routes
		dep := v1.Group("/deposits")
		dep.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance))
		{
			dep.GET("/:account_id/balance", h.GetDepositBalance)
			dep.GET("/:account_id/ledger", h.ListDepositLedger)
			dep.POST("/:account_id/deposits", h.RecordDeposit)
			dep.POST("/:account_id/refunds", h.RefundDeposit)
		}

		// REPORT routes: read-only, analysts included.
		rep := v1.Group("/reports")
		rep.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance, rbac.RoleAnalyst))
		{
			rep.GET("/invoices", h.InvoiceSummaryReport)
			rep.GET("/receivables", h.ReceivablesReport)
			rep.GET("/deposit-flow", h.DepositFlowReport)
		}

		// ADMIN routes: owner/super_admin only.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			admin.POST("/deposits/:account_id/adjust", h.AdminAdjustDeposit)
		}
	}
}
