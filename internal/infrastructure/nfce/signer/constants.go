// Constantes XML-DSig usadas en la firma de la NFC-e (Manual de Orientação do Contribuinte).

package signer

// Namespaces y algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgExcC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// DefaultTarget es el elemento firmado de la NFC-e (lleva el atributo Id="NFe<chave>").
const DefaultTarget = "infNFe"

// signatureMarker identifica un documento ya firmado.
const signatureMarker = `<Signature xmlns="` + NamespaceDS + `">`
