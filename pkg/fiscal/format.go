package fiscal

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // America/Sao_Paulo disponible aunque el contenedor no traiga zoneinfo
)

// TimeZone zona horaria usada en dhEmi y en el AAMM de la chave.
const TimeZone = "America/Sao_Paulo"

var saoPaulo = mustLoadLocation(TimeZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// Location devuelve la zona America/Sao_Paulo.
func Location() *time.Location { return saoPaulo }

// FormatAccessKey agrupa la chave en bloques de 4 dígitos separados por espacio.
func FormatAccessKey(key string) string {
	var parts []string
	for len(key) > 4 {
		parts = append(parts, key[:4])
		key = key[4:]
	}
	if key != "" {
		parts = append(parts, key)
	}
	return strings.Join(parts, " ")
}

// FormatCNPJ aplica la máscara 00.000.000/0000-00. Si no tiene 14 dígitos devuelve la entrada.
func FormatCNPJ(cnpj string) string {
	d := OnlyDigits(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", d[0:2], d[2:5], d[5:8], d[8:12], d[12:14])
}

// FormatCPF aplica la máscara 000.000.000-00. Si no tiene 11 dígitos devuelve la entrada.
func FormatCPF(cpf string) string {
	d := OnlyDigits(cpf)
	if len(d) != 11 {
		return cpf
	}
	return fmt.Sprintf("%s.%s.%s-%s", d[0:3], d[3:6], d[6:9], d[9:11])
}

// FormatSefazDateTime formato ISO-8601 con offset usado en dhEmi (2006-01-02T15:04:05-03:00).
func FormatSefazDateTime(t time.Time) string {
	return t.In(saoPaulo).Format("2006-01-02T15:04:05-07:00")
}

// YearMonth devuelve el AAMM (año y mes con dos dígitos) en horario de Brasília.
func YearMonth(t time.Time) string {
	return t.In(saoPaulo).Format("0601")
}
