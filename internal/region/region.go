package region

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// states: нормализованное имя или сокращение -> код UF.
var states = map[string]string{
	"ACRE": "AC", "ALAGOAS": "AL", "AMAPA": "AP", "AMAZONAS": "AM",
	"BAHIA": "BA", "CEARA": "CE", "DISTRITO FEDERAL": "DF", "ESPIRITO SANTO": "ES",
	"GOIAS": "GO", "MARANHAO": "MA", "MATO GROSSO": "MT", "MATO GROSSO DO SUL": "MS",
	"MINAS GERAIS": "MG", "PARA": "PA", "PARAIBA": "PB", "PARANA": "PR",
	"PERNAMBUCO": "PE", "PIAUI": "PI", "RIO DE JANEIRO": "RJ", "RIO GRANDE DO NORTE": "RN",
	"RIO GRANDE DO SUL": "RS", "RONDONIA": "RO", "RORAIMA": "RR", "SANTA CATARINA": "SC",
	"SAO PAULO": "SP", "SERGIPE": "SE", "TOCANTINS": "TO",

	// местные сокращения
	"BRASILIA": "DF", "D F": "DF", "DIST FEDERAL": "DF",
	"E SANTO": "ES", "ESP SANTO": "ES",
	"M GERAIS": "MG", "MINAS": "MG",
	"MT DO SUL": "MS", "M G DO SUL": "MS",
	"S PAULO": "SP", "SAMPA": "SP",
	"R DE JANEIRO": "RJ", "RIO": "RJ",
	"R G DO SUL": "RS", "RG DO SUL": "RS",
	"R G DO NORTE": "RN", "RG DO NORTE": "RN",
	"S CATARINA": "SC", "STA CATARINA": "SC",
}

var codes = func() map[string]struct{} {
	out := make(map[string]struct{}, 27)
	for _, c := range states {
		out[c] = struct{}{}
	}
	return out
}()

// Normalize приводит регион к двухбуквенному коду.
// Неизвестное значение превращается в первые два символа в верхнем регистре:
// это приближение, корректность кода не гарантируется.
func Normalize(in string) string {
	key := fold(in)
	if key == "" {
		return ""
	}
	if _, ok := codes[key]; ok {
		return key
	}
	if c, ok := states[key]; ok {
		return c
	}

	r := []rune(strings.ToUpper(strings.TrimSpace(in)))
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

// fold убирает диакритику, точки и лишние пробелы.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToUpper(out)
	out = strings.NewReplacer(".", " ", "-", " ", "_", " ").Replace(out)
	return strings.Join(strings.Fields(out), " ")
}
