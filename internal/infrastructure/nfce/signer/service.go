// Servicio de firma XML-DSig enveloped de la NFC-e.
// La firma se inserta como texto antes del cierre del elemento firmado; el resto
// del documento se conserva byte a byte.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrDigestMismatch indica que el contenido firmado fue alterado.
	ErrDigestMismatch = errors.New("signer: DigestValue não confere")
	// ErrSignatureInvalid indica que SignatureValue no verifica con el certificado embebido.
	ErrSignatureInvalid = errors.New("signer: SignatureValue inválido")
)

var (
	signatureBlock  = regexp.MustCompile(`(?s)<Signature xmlns="` + regexp.QuoteMeta(NamespaceDS) + `">.*?</Signature>`)
	signedInfoBlock = regexp.MustCompile(`(?s)<SignedInfo[\s>].*?</SignedInfo>`)
)

// Service firma documentos con el canonicalizador configurado.
type Service struct {
	canon Canonicalizer
}

// NewService crea el servicio. Con canon nil usa la canonicalización simplificada.
func NewService(canon Canonicalizer) *Service {
	if canon == nil {
		canon = simplifiedCanonicalizer{}
	}
	return &Service{canon: canon}
}

// Sign firma el elemento target (por su atributo Id) e inserta <Signature> antes de su cierre.
// Una firma previa se descarta, de modo que firmar dos veces deja un único bloque.
func (s *Service) Sign(xmlBytes []byte, m *Material, target string) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, errors.New("signer: XML vazio")
	}
	if m == nil || m.Certificate == nil || m.PrivateKey == nil {
		return nil, errors.New("signer: certificado ou chave privada ausente")
	}
	if _, ok := m.PrivateKey.Public().(*rsa.PublicKey); !ok {
		return nil, errors.New("signer: somente chaves RSA são suportadas")
	}
	if target == "" {
		target = DefaultTarget
	}

	// 1) Sin firma previa (transform enveloped)
	doc := signatureBlock.ReplaceAll(xmlBytes, nil)

	// 2) Elemento a firmar y su Id
	refID, ns, err := locateTarget(doc, target)
	if err != nil {
		return nil, err
	}
	start, end, err := fragmentBounds(doc, target)
	if err != nil {
		return nil, err
	}

	// 3) Digest del elemento canonicalizado
	canonical, err := s.canon.Canonicalize(doc[start:end], ns)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(canonical)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 4) SignedInfo firmado con RSA-SHA256
	signedInfo := s.buildSignedInfo(refID, digestB64)
	canonicalSI, err := s.canon.Canonicalize([]byte(signedInfo), "")
	if err != nil {
		return nil, err
	}
	siHash := sha256.Sum256(canonicalSI)
	sig, err := m.PrivateKey.Sign(rand.Reader, siHash[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signer: assinar SignedInfo: %w", err)
	}

	// 5) Signature completa, insertada antes de </target>
	signatureXML := buildSignature(signedInfo, base64.StdEncoding.EncodeToString(sig), base64.StdEncoding.EncodeToString(m.Certificate.Raw))
	closeAt := end - len("</"+target+">")
	out := make([]byte, 0, len(doc)+len(signatureXML))
	out = append(out, doc[:closeAt]...)
	out = append(out, signatureXML...)
	out = append(out, doc[closeAt:]...)

	// 6) El subárbol digerido no debe haber cambiado con la inserción
	if err := s.Verify(out); err != nil {
		return nil, fmt.Errorf("signer: verificação pós-assinatura: %w", err)
	}
	return out, nil
}

// IsSigned indica si el documento contiene el bloque de firma.
func IsSigned(xmlBytes []byte) bool {
	return bytes.Contains(xmlBytes, []byte(signatureMarker))
}

// IsSigned indica si el documento contiene el bloque de firma.
func (s *Service) IsSigned(xmlBytes []byte) bool {
	return IsSigned(xmlBytes)
}

// ValidateSignature solo comprueba la presencia de la firma.
// La validación contra la cadena ICP-Brasil no está implementada.
func (s *Service) ValidateSignature(xmlBytes []byte, _ *x509.Certificate) bool {
	return IsSigned(xmlBytes)
}

// Verify recalcula el digest del elemento referenciado y verifica SignatureValue
// con la llave pública del X509Certificate embebido.
func (s *Service) Verify(xmlBytes []byte) error {
	sigRaw := signatureBlock.Find(xmlBytes)
	if sigRaw == nil {
		return errors.New("signer: documento sem assinatura")
	}
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromBytes(sigRaw); err != nil {
		return fmt.Errorf("signer: parsear Signature: %w", err)
	}
	sigEl := sigDoc.Root()
	ref := sigEl.FindElement("./SignedInfo/Reference")
	dv := sigEl.FindElement("./SignedInfo/Reference/DigestValue")
	sv := sigEl.FindElement("./SignatureValue")
	xc := sigEl.FindElement("./KeyInfo/X509Data/X509Certificate")
	if ref == nil || dv == nil || sv == nil || xc == nil {
		return errors.New("signer: estrutura de assinatura incompleta")
	}
	refID := strings.TrimPrefix(ref.SelectAttrValue("URI", ""), "#")

	// Transform enveloped: el digest se calcula sin la firma.
	doc := signatureBlock.ReplaceAll(xmlBytes, nil)
	parsed := etree.NewDocument()
	if err := parsed.ReadFromBytes(doc); err != nil {
		return fmt.Errorf("signer: parsear XML: %w", err)
	}
	targetEl := parsed.FindElement(fmt.Sprintf("//*[@Id='%s']", refID))
	if targetEl == nil {
		return fmt.Errorf("signer: elemento com Id %q não encontrado", refID)
	}
	start, end, err := fragmentBounds(doc, targetEl.Tag)
	if err != nil {
		return err
	}
	canonical, err := s.canon.Canonicalize(doc[start:end], targetEl.NamespaceURI())
	if err != nil {
		return err
	}
	digest := sha256.Sum256(canonical)
	if base64.StdEncoding.EncodeToString(digest[:]) != strings.TrimSpace(dv.Text()) {
		return ErrDigestMismatch
	}

	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(xc.Text()))
	if err != nil {
		return fmt.Errorf("signer: X509Certificate inválido: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("signer: X509Certificate inválido: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.New("signer: certificado sem chave pública RSA")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sv.Text()))
	if err != nil {
		return ErrSignatureInvalid
	}
	canonicalSI, err := s.canon.Canonicalize(signedInfoBlock.Find(sigRaw), "")
	if err != nil {
		return err
	}
	siHash := sha256.Sum256(canonicalSI)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, siHash[:], sigBytes); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *Service) buildSignedInfo(refID, digestB64 string) string {
	alg := s.canon.Algorithm()
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + alg + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="#` + escapeXML(refID) + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + alg + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(signatureMarker)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

// locateTarget busca el elemento a firmar y devuelve su Id y namespace por defecto.
func locateTarget(xmlBytes []byte, target string) (id, ns string, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", "", fmt.Errorf("signer: parsear XML: %w", err)
	}
	el := doc.FindElement("//" + target)
	if el == nil {
		return "", "", fmt.Errorf("signer: tag %s não encontrada no XML", target)
	}
	id = el.SelectAttrValue("Id", "")
	if id == "" {
		return "", "", fmt.Errorf("signer: atributo Id não encontrado na tag %s", target)
	}
	return id, el.NamespaceURI(), nil
}

// fragmentBounds devuelve [start, end) del primer elemento target serializado en el texto.
func fragmentBounds(xmlBytes []byte, target string) (int, int, error) {
	open := regexp.MustCompile(`<` + regexp.QuoteMeta(target) + `[\s>/]`)
	loc := open.FindIndex(xmlBytes)
	if loc == nil {
		return 0, 0, fmt.Errorf("signer: tag %s não encontrada no XML", target)
	}
	closeTag := []byte("</" + target + ">")
	rel := bytes.Index(xmlBytes[loc[0]:], closeTag)
	if rel < 0 {
		return 0, 0, fmt.Errorf("signer: tag de fechamento </%s> não encontrada", target)
	}
	return loc[0], loc[0] + rel + len(closeTag), nil
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
