// Package fiscal contiene las funciones puras de la NFC-e (modelo 65, SEFAZ Brasil):
// dígito verificador módulo 11, chave de acesso, CPF/CNPJ, formatos y tablas de códigos.
package fiscal

import (
	"fmt"
	"unicode"
)

// ComputeCheckDigit calcula el dígito verificador módulo 11 de la chave de acesso.
// Los pesos van de 2 a 9 empezando por el dígito más a la derecha y se reinician al llegar a 9.
// Resto 0 o 1 => dígito 0; en otro caso 11 - resto.
func ComputeCheckDigit(digits string) (int, error) {
	if digits == "" {
		return 0, fmt.Errorf("fiscal: cadena vacía para dígito verificador")
	}
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("fiscal: carácter no numérico %q en posición %d", c, i)
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	remainder := sum % 11
	if remainder < 2 {
		return 0, nil
	}
	return 11 - remainder, nil
}

// OnlyDigits elimina todo lo que no sea dígito (puntos, barras, guiones, espacios).
func OnlyDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < 128 {
			out = append(out, r)
		}
	}
	return string(out)
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
