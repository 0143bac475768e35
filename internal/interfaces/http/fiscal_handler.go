package http

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	pkgfiscal "github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// Contratos mínimos que necesita el handler; los implementan los casos de uso de application/fiscal.
type (
	emitter interface {
		Emit(ctx context.Context, saleID int64) appfiscal.EmissionResult
	}
	configService interface {
		Get(ctx context.Context) (*dto.FiscalConfigResponse, error)
		Save(ctx context.Context, in dto.FiscalConfigRequest) (*dto.FiscalConfigResponse, error)
		TestCertificate(ctx context.Context, in dto.CertificateTestRequest) (*dto.CertificateTestResponse, error)
	}
	documentService interface {
		GetByID(ctx context.Context, id int64) (*dto.DocumentResponse, error)
		GetBySaleID(ctx context.Context, saleID int64) (*dto.DocumentResponse, error)
		List(ctx context.Context, in dto.DocumentFilterRequest) (*dto.DocumentListResponse, error)
		XML(ctx context.Context, id int64) ([]byte, string, error)
		PDF(ctx context.Context, id int64) ([]byte, string, error)
		Text(ctx context.Context, id int64) (string, error)
		Consult(ctx context.Context, id int64) (*dto.ConsultResponse, error)
	}
	statusChecker interface {
		Check(ctx context.Context) (*dto.SefazStatusResponse, error)
	}
	sweeper interface {
		Sweep(ctx context.Context) (*dto.ReconcileResponse, error)
	}
)

// FiscalHandler maneja las peticiones HTTP del módulo NFC-e (protegido).
type FiscalHandler struct {
	emitter   emitter
	config    configService
	documents documentService
	status    statusChecker
	sweeper   sweeper
}

// NewFiscalHandler construye el handler.
func NewFiscalHandler(em emitter, cfg configService, docs documentService, status statusChecker, sw sweeper) *FiscalHandler {
	return &FiscalHandler{emitter: em, config: cfg, documents: docs, status: status, sweeper: sw}
}

// GetConfig devuelve el perfil fiscal activo sin secretos.
// @Summary      Configuración fiscal activa
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.FiscalConfigResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/fiscal/config [get]
func (h *FiscalHandler) GetConfig(c *fiber.Ctx) error {
	out, err := h.config.Get(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SaveConfig guarda un perfil fiscal nuevo y desactiva el anterior.
// @Summary      Guardar configuración fiscal
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.FiscalConfigRequest  true  "Datos del emisor, certificado y CSC"
// @Success      201   {object}  dto.FiscalConfigResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/fiscal/config [post]
func (h *FiscalHandler) SaveConfig(c *fiber.Ctx) error {
	var in dto.FiscalConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	out, err := h.config.Save(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// TestCertificate valida el certificado A1 enviado o el del perfil activo.
// @Summary      Probar certificado digital
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CertificateTestRequest  false  "Certificado A1 opcional"
// @Success      200   {object}  dto.CertificateTestResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/fiscal/config/test-certificate [post]
func (h *FiscalHandler) TestCertificate(c *fiber.Ctx) error {
	var in dto.CertificateTestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "INVALID_BODY", "cuerpo inválido")
		}
	}
	out, err := h.config.TestCertificate(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Emit emite la NFC-e de una venta finalizada.
// @Summary      Emitir NFC-e
// @Description  Único intento síncrono. 201 autorizada, 202 sin respuesta de la SEFAZ (queda en PROCESSING), 422 rechazada.
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.EmitRequest  true  "Venta a emitir"
// @Success      201   {object}  fiscal.EmissionResult
// @Success      202   {object}  fiscal.EmissionResult
// @Failure      409   {object}  fiscal.EmissionResult
// @Failure      422   {object}  fiscal.EmissionResult
// @Router       /api/fiscal/emit [post]
func (h *FiscalHandler) Emit(c *fiber.Ctx) error {
	var in dto.EmitRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if in.SaleID <= 0 {
		return badRequest(c, "VALIDATION", "sale_id requerido")
	}
	res := h.emitter.Emit(c.Context(), in.SaleID)
	return c.Status(emissionStatus(res)).JSON(res)
}

// ListDocuments lista las NFC-e emitidas.
// @Summary      Listar NFC-e
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "PROCESSING | AUTHORIZED | REJECTED | ERROR"
// @Param        limit   query  int     false  "Máximo 100 (por defecto 20)"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200     {object}  dto.DocumentListResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents [get]
func (h *FiscalHandler) ListDocuments(c *fiber.Ctx) error {
	var in dto.DocumentFilterRequest
	if err := c.QueryParser(&in); err != nil {
		return badRequest(c, "INVALID_QUERY", "parámetros inválidos")
	}
	out, err := h.documents.List(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetDocument obtiene una NFC-e con sus ítems.
// @Summary      Obtener NFC-e por ID
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id} [get]
func (h *FiscalHandler) GetDocument(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	out, err := h.documents.GetByID(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetDocumentBySale obtiene la NFC-e de una venta.
// @Summary      Obtener NFC-e por venta
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        saleId  path  int  true  "ID de la venta"
// @Success      200     {object}  dto.DocumentResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/sale/{saleId} [get]
func (h *FiscalHandler) GetDocumentBySale(c *fiber.Ctx) error {
	saleID, ok := pathID(c, "saleId")
	if !ok {
		return badRequest(c, "VALIDATION", "saleId inválido")
	}
	out, err := h.documents.GetBySaleID(c.Context(), saleID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// DownloadXML descarga el nfeProc autorizado (o el XML enviado).
// @Summary      Descargar XML
// @Tags         fiscal
// @Security     Bearer
// @Produce      application/xml
// @Param        id   path  int  true  "ID del documento"
// @Success      200  {file}    file
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/xml [get]
func (h *FiscalHandler) DownloadXML(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	data, name, err := h.documents.XML(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(data)
}

// DownloadPDF descarga la DANFE NFC-e.
// @Summary      Descargar DANFE (PDF)
// @Tags         fiscal
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  int  true  "ID del documento"
// @Success      200  {file}    file
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/pdf [get]
func (h *FiscalHandler) DownloadPDF(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	data, name, err := h.documents.PDF(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+name+`"`)
	return c.Send(data)
}

// DanfeText devuelve la DANFE en texto plano para impresoras térmicas.
// @Summary      DANFE en texto
// @Tags         fiscal
// @Security     Bearer
// @Produce      plain
// @Param        id   path  int  true  "ID del documento"
// @Success      200  {string}  string
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/text [get]
func (h *FiscalHandler) DanfeText(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	text, err := h.documents.Text(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}

// ConsultDocument consulta la situación de la NFC-e en la SEFAZ.
// @Summary      Consultar protocolo en la SEFAZ
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del documento"
// @Success      200  {object}  dto.ConsultResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/consult [post]
func (h *FiscalHandler) ConsultDocument(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	out, err := h.documents.Consult(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SefazStatus consulta la disponibilidad del web service de autorización.
// @Summary      Estado del servicio SEFAZ
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.SefazStatusResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/fiscal/sefaz/status [get]
func (h *FiscalHandler) SefazStatus(c *fiber.Ctx) error {
	out, err := h.status.Check(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Reconcile ejecuta un barrido de documentos en PROCESSING.
// @Summary      Reconciliar documentos pendientes
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ReconcileResponse
// @Router       /api/fiscal/reconcile [post]
func (h *FiscalHandler) Reconcile(c *fiber.Ctx) error {
	out, err := h.sweeper.Sweep(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ── helpers privados ──────────────────────────────────────────────────────────

// emissionStatus código HTTP de un EmissionResult.
func emissionStatus(res appfiscal.EmissionResult) int {
	switch {
	case res.Success:
		return fiber.StatusCreated
	case res.Status == entity.DocumentStatusRejected:
		return fiber.StatusUnprocessableEntity
	}
	switch res.Code {
	case pkgfiscal.StatusConnectionError:
		return fiber.StatusAccepted
	case appfiscal.CodeAlreadyEmitted, appfiscal.CodeDuplicate:
		return fiber.StatusConflict
	case appfiscal.CodeSaleNotFound:
		return fiber.StatusNotFound
	case appfiscal.CodeNoProfile:
		return fiber.StatusPreconditionFailed
	}
	return fiber.StatusInternalServerError
}

func pathID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
