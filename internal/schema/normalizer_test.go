package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_SourceHeader(t *testing.T) {
	// The catalog export's actual header labels.
	cases := map[string]string{
		"Fecha UTC":                  "fecha_utc",
		"Hora UTC":                   "hora_utc",
		"Magnitud":                   "magnitud",
		"Latitud":                    "latitud",
		"Longitud":                   "longitud",
		"Profundidad":                "profundidad",
		"Referencia de Localización": "referencia_de_localizacion",
		"Fecha Local":                "fecha_local",
		"Hora Local":                 "hora_local",
		"Estatus":                    "estatus",
	}

	for input, want := range cases {
		assert.Equal(t, want, Normalize(input), "input %q", input)
	}
}

func TestNormalize_Diacritics(t *testing.T) {
	assert.Equal(t, "localizacion", Normalize("Localización"))
	assert.Equal(t, "nino", Normalize("Niño"))
	assert.Equal(t, "arbol_cano", Normalize("Árbol Caño"))
}

func TestNormalize_Whitespace(t *testing.T) {
	assert.Equal(t, "fecha_utc", Normalize("  Fecha UTC  "))
	assert.Equal(t, "a_b", Normalize("a\tb"))
}

func TestNormalize_SpecialCharacters(t *testing.T) {
	assert.Equal(t, "magnitud_ml", Normalize("Magnitud (ml)"))
	assert.Equal(t, "id", Normalize("#id!"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Fecha UTC", "Referencia de Localización", "estatus", "a  b  c"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing %q twice", in)
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	got := NormalizeAll([]string{"Fecha UTC", "Magnitud", "Estatus"})
	assert.Equal(t, []string{"fecha_utc", "magnitud", "estatus"}, got)
}

func TestLoadAlias(t *testing.T) {
	assert.Equal(t, "referencia_localizacion", LoadAlias("referencia_de_localizacion"))
	assert.Equal(t, "magnitud", LoadAlias("magnitud"))
	assert.Equal(t, "unknown_column", LoadAlias("unknown_column"))
}
