package nfce

import "bytes"

// BuildProcXML arma el nfeProc distribuible: la NFe firmada seguida del protNFe de la SEFAZ.
func BuildProcXML(signedNFe []byte, protNFe string) []byte {
	var b bytes.Buffer
	b.WriteString(xmlDecl)
	b.WriteString(`<nfeProc xmlns="` + NsNFe + `" versao="` + LayoutVersion + `">`)
	b.Write(stripDeclaration(signedNFe))
	b.WriteString(string(stripDeclaration([]byte(protNFe))))
	b.WriteString(`</nfeProc>`)
	return b.Bytes()
}
