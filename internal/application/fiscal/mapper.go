package fiscal

import (
	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	pkgfiscal "github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// entityToConfigResponse expone el perfil sin ningún secreto.
func entityToConfigResponse(p *entity.FiscalProfile) *dto.FiscalConfigResponse {
	if p == nil {
		return nil
	}
	return &dto.FiscalConfigResponse{
		ID:                p.ID,
		CNPJ:              p.CNPJ,
		IE:                p.IE,
		IM:                p.IM,
		LegalName:         p.LegalName,
		TradeName:         p.TradeName,
		Street:            p.Street,
		Number:            p.Number,
		Complement:        p.Complement,
		District:          p.District,
		CityCode:          p.CityCode,
		CityName:          p.CityName,
		UF:                p.UF,
		CEP:               p.CEP,
		Phone:             p.Phone,
		CRT:               p.CRT,
		Series:            p.Series,
		LastNumber:        p.LastNumber,
		Environment:       p.Environment,
		ContingencyMode:   p.ContingencyMode,
		CertificateType:   p.CertificateType,
		PKCS11Library:     p.PKCS11Library,
		CSCID:             p.CSCID,
		HasCertificate:    p.CertificateA1 != "",
		HasCertificatePin: p.CertificatePin != "",
		HasCSCToken:       p.CSCToken != "",
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func entityToDocumentResponse(d *entity.IssuedDocument) *dto.DocumentResponse {
	if d == nil {
		return nil
	}
	out := &dto.DocumentResponse{
		ID:            d.ID,
		SaleID:        d.SaleID,
		Number:        d.Number,
		Series:        d.Series,
		Model:         d.Model,
		AccessKey:     d.AccessKey,
		FormattedKey:  pkgfiscal.FormatAccessKey(d.AccessKey),
		EmissionType:  d.EmissionType,
		Contingency:   d.Contingency,
		Status:        d.Status,
		StatusCode:    d.StatusCode,
		StatusMessage: d.StatusMessage,
		Protocol:      d.Protocol,
		AuthorizedAt:  d.AuthorizedAt,
		TotalValue:    d.TotalValue,
		ProductsValue: d.ProductsValue,
		DiscountValue: d.DiscountValue,
		RecipientCPF:  d.RecipientCPF,
		RecipientName: d.RecipientName,
		HasXML:        d.XMLPath != "" || d.XMLFull != "",
		HasPDF:        d.PDFPath != "",
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, dto.DocumentItemResponse{
			ItemNumber:  it.ItemNumber,
			ProductCode: it.ProductCode,
			EAN:         it.EAN,
			Description: it.Description,
			NCM:         it.NCM,
			CFOP:        it.CFOP,
			Unit:        it.Unit,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
	}
	return out
}
