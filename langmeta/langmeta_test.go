package langmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "es_419", want: "es-419"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, canonicalize(tc.in), "canonicalize(%q)", tc.in)
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("en-GB")
		assert.Equal(t, "English (UK)", got.Name)
		assert.Equal(t, "🇬🇧", got.Flag())
	})

	t.Run("dhis2 underscore locale", func(t *testing.T) {
		got := Resolve("pt_BR")
		assert.Equal(t, "Português (Brasil)", got.Name)
		assert.Equal(t, "🇧🇷", got.Flag())
	})

	t.Run("base fallback keeps region flag", func(t *testing.T) {
		got := Resolve("fr_SN")
		assert.Equal(t, "Français", got.Name)
		assert.Equal(t, "🇸🇳", got.Flag())
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz_ZZ")
		assert.Equal(t, "zz_ZZ", got.Name)
		assert.Empty(t, got.Flag())
	})
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "🇫🇷 Français (fr)", Label("fr"))
	assert.Equal(t, "xx", Label("xx"))
	assert.Equal(t, "", flag("1A"))
}
