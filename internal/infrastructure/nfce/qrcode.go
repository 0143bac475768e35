package nfce

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// QRCodePayload arma el contenido del QR Code:
// <url>?p=chNFe|||||cIdToken|SHA1(chNFe+CSC) en hex mayúsculas.
func QRCodePayload(baseURL, accessKey, cscID, cscToken string) string {
	if cscID == "" {
		cscID = DefaultCSCID
	}
	params := []string{
		accessKey,
		"", // cDest
		"", // dhEmi
		"", // vNF
		"", // digVal
		cscID,
		CSCHash(accessKey, cscToken),
	}
	return baseURL + "?p=" + strings.Join(params, "|")
}

// CSCHash calcula SHA-1(accessKey + cscToken) en hexadecimal mayúsculas.
func CSCHash(accessKey, cscToken string) string {
	sum := sha1.Sum([]byte(accessKey + cscToken))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// AddSupplementaryInfo inserta <infNFeSupl> (qrCode en CDATA y urlChave) como último hijo de <NFe>.
// La inserción es textual para no re-serializar el contenido firmado.
func AddSupplementaryInfo(xmlBytes []byte, p *entity.FiscalProfile, accessKey, cscToken string) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nfce: perfil fiscal ausente")
	}
	closeTag := []byte("</NFe>")
	at := bytes.LastIndex(xmlBytes, closeTag)
	if at < 0 {
		return nil, fmt.Errorf("nfce: nó NFe não encontrado")
	}

	supl := etree.NewElement("infNFeSupl")
	payload := QRCodePayload(QRCodeURL(p.UF, p.Environment), accessKey, p.CSCID, cscToken)
	supl.CreateElement("qrCode").CreateCData(payload)
	supl.CreateElement("urlChave").SetText(ConsultURL(p.UF, p.Environment))

	doc := etree.NewDocument()
	doc.SetRoot(supl)
	fragment, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfce: serializar infNFeSupl: %w", err)
	}

	out := make([]byte, 0, len(xmlBytes)+len(fragment))
	out = append(out, xmlBytes[:at]...)
	out = append(out, fragment...)
	out = append(out, xmlBytes[at:]...)
	return out, nil
}
