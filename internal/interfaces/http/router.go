package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfce-emissor/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Emitter   emitter
	Config    configService
	Documents documentService
	Status    statusChecker
	Sweeper   sweeper
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Todo el módulo fiscal requiere Bearer Token
	fiscal := api.Group("/fiscal", AuthMiddleware(deps.JWTSecret))
	h := NewFiscalHandler(deps.Emitter, deps.Config, deps.Documents, deps.Status, deps.Sweeper)

	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleManager, jwt.RoleOperator)
	managers := RequireRole(jwt.RoleAdmin, jwt.RoleManager)
	adminOnly := RequireRole(jwt.RoleAdmin)

	// Configuración (solo admin modifica)
	fiscal.Get("/config", managers, h.GetConfig)
	fiscal.Post("/config", adminOnly, h.SaveConfig)
	fiscal.Post("/config/test-certificate", adminOnly, h.TestCertificate)

	// Emisión (cualquier operador de caja)
	fiscal.Post("/emit", anyRole, h.Emit)

	// Documentos
	docs := fiscal.Group("/documents", anyRole)
	docs.Get("/", h.ListDocuments)
	docs.Get("/sale/:saleId", h.GetDocumentBySale)
	docs.Get("/:id", h.GetDocument)
	docs.Get("/:id/xml", h.DownloadXML)
	docs.Get("/:id/pdf", h.DownloadPDF)
	docs.Get("/:id/text", h.DanfeText)
	docs.Post("/:id/consult", h.ConsultDocument)

	// Operación
	fiscal.Get("/sefaz/status", anyRole, h.SefazStatus)
	fiscal.Post("/reconcile", managers, h.Reconcile)
}
