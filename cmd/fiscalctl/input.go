package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var xmlEncodingDecl = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([^"']+)["']`)

// decodeInput devuelve el XML en UTF-8. Sin charset explícito se usa el declarado en el prólogo;
// los XML exportados por sistemas legados suelen venir en ISO-8859-1.
func decodeInput(raw []byte, charset string) ([]byte, error) {
	if charset == "" {
		if m := xmlEncodingDecl.FindSubmatch(raw); m != nil {
			charset = string(m[1])
		}
	}
	switch strings.ToLower(strings.ReplaceAll(charset, "_", "-")) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decodificar ISO-8859-1: %w", err)
		}
		return rewriteDeclaration(out), nil
	case "windows-1252", "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decodificar Windows-1252: %w", err)
		}
		return rewriteDeclaration(out), nil
	}
	return nil, fmt.Errorf("codificación no soportada %q", charset)
}

// rewriteDeclaration ajusta el prólogo a UTF-8 tras transcodificar.
func rewriteDeclaration(b []byte) []byte {
	loc := xmlEncodingDecl.FindSubmatchIndex(b)
	if loc == nil {
		return b
	}
	var out bytes.Buffer
	out.Write(b[:loc[2]])
	out.WriteString("UTF-8")
	out.Write(b[loc[3]:])
	return out.Bytes()
}
