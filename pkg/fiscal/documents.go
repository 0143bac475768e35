package fiscal

// Pesos de los dos dígitos verificadores del CNPJ.
var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCPF valida un CPF (11 dígitos, con o sin máscara).
// Rechaza secuencias repetidas como 111.111.111-11.
func ValidateCPF(cpf string) bool {
	d := OnlyDigits(cpf)
	if len(d) != 11 || allSameDigit(d) {
		return false
	}
	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		dv := (sum * 10) % 11
		if dv == 10 {
			dv = 0
		}
		if dv != int(d[n]-'0') {
			return false
		}
	}
	return true
}

// ValidateCNPJ valida un CNPJ (14 dígitos, con o sin máscara).
func ValidateCNPJ(cnpj string) bool {
	d := OnlyDigits(cnpj)
	if len(d) != 14 || allSameDigit(d) {
		return false
	}
	if cnpjDigit(d[:12], cnpjWeights1) != int(d[12]-'0') {
		return false
	}
	return cnpjDigit(d[:13], cnpjWeights2) == int(d[13]-'0')
}

func cnpjDigit(base string, weights []int) int {
	sum := 0
	for i := range base {
		sum += int(base[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}
