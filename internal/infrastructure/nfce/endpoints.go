package nfce

import (
	"fmt"
	"strings"

	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// Service identifica un web service de la SEFAZ.
type Service string

// Web services NFC-e (versión 4).
const (
	ServiceAuthorization Service = "NFeAutorizacao4"
	ServiceStatusCheck   Service = "NFeStatusServico4"
	ServiceConsult       Service = "NFeConsultaProtocolo4"
)

type envURLs struct {
	production   string
	homologation string
}

func (u envURLs) pick(environment string) string {
	if environment == fiscal.EnvironmentProduction {
		return u.production
	}
	return u.homologation
}

// svrs atiende a las UF que no tienen autorizador propio de NFC-e.
var svrs = map[Service]envURLs{
	ServiceAuthorization: {
		production:   "https://nfce.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		homologation: "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
	},
	ServiceStatusCheck: {
		production:   "https://nfce.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
		homologation: "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
	},
	ServiceConsult: {
		production:   "https://nfce.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx",
		homologation: "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx",
	},
}

var webServices = map[string]map[Service]envURLs{
	"SP": {
		ServiceAuthorization: {
			production:   "https://nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
			homologation: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
		},
		ServiceStatusCheck: {
			production:   "https://nfe.fazenda.sp.gov.br/ws/nfestatusservico4.asmx",
			homologation: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfestatusservico4.asmx",
		},
		ServiceConsult: {
			production:   "https://nfe.fazenda.sp.gov.br/ws/nfeconsultaprotocolo4.asmx",
			homologation: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeconsultaprotocolo4.asmx",
		},
	},
	"RS": svrs,
	"SC": svrs,
}

// EndpointResolver devuelve la URL del web service para la UF y el ambiente.
type EndpointResolver func(uf, environment string, svc Service) (string, error)

// ResolveEndpoint usa la tabla de web services por UF. Una UF sin tabla es un error de configuración.
func ResolveEndpoint(uf, environment string, svc Service) (string, error) {
	services, ok := webServices[strings.ToUpper(uf)]
	if !ok {
		return "", fmt.Errorf("sefaz: web service %s não configurado para o estado %s", svc, uf)
	}
	urls, ok := services[svc]
	if !ok {
		return "", fmt.Errorf("sefaz: web service %s não configurado para o estado %s", svc, uf)
	}
	return urls.pick(environment), nil
}

// URLs del QR Code y de consulta de la chave por UF.
var (
	qrCodeURLs = map[string]envURLs{
		"SP": {
			production:   "https://www.fazenda.sp.gov.br/nfce/qrcode",
			homologation: "https://www.homologacao.nfce.fazenda.sp.gov.br/qrcode",
		},
		"RS": {
			production:   "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx",
			homologation: "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx",
		},
	}
	consultURLs = map[string]envURLs{
		"SP": {
			production:   "http://www.fazenda.sp.gov.br/nfce/consulta",
			homologation: "http://www.homologacao.nfce.fazenda.sp.gov.br/consulta",
		},
		"RS": {
			production:   "http://www.sefaz.rs.gov.br/nfce/consulta",
			homologation: "http://www.sefaz.rs.gov.br/nfce/consulta",
		},
	}
)

// fallbackUF se usa cuando la UF no tiene URLs de QR Code mapeadas.
const fallbackUF = "SP"

// QRCodeURL devuelve la URL base del QR Code. UF sin mapear usa la de SP.
func QRCodeURL(uf, environment string) string {
	u, ok := qrCodeURLs[strings.ToUpper(uf)]
	if !ok {
		u = qrCodeURLs[fallbackUF]
	}
	return u.pick(environment)
}

// ConsultURL devuelve la URL de consulta pública de la chave. UF sin mapear usa la de SP.
func ConsultURL(uf, environment string) string {
	u, ok := consultURLs[strings.ToUpper(uf)]
	if !ok {
		u = consultURLs[fallbackUF]
	}
	return u.pick(environment)
}
