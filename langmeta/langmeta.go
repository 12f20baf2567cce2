// Package langmeta provides a language metadata registry (native names and
// emoji flags) used to label DHIS2 locales in tables and prompts.
//
// DHIS2 writes locales with underscores (pt_BR); the registry is keyed by
// BCP 47 style tags (pt-BR) and Resolve accepts both.
package langmeta

import (
	"fmt"
	"strings"
)

// Meta describes language display metadata.
type Meta struct {
	Name string
	// Region is the ISO 3166 country whose flag represents the language.
	Region string
}

// Flag returns the emoji flag for the language's region, or "".
func (m Meta) Flag() string {
	return flag(m.Region)
}

// flag builds a flag from two regional indicator symbols.
func flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":     {"Afrikaans", "ZA"},
	"am":     {"አማርኛ", "ET"},
	"ar":     {"العربية", "SA"},
	"ar-EG":  {"العربية (مصر)", "EG"},
	"bg":     {"Български", "BG"},
	"bi":     {"Bislama", "VU"},
	"bn":     {"বাংলা", "BD"},
	"ckb":    {"کوردی", "IQ"},
	"cs":     {"Čeština", "CZ"},
	"da":     {"Dansk", "DK"},
	"de":     {"Deutsch", "DE"},
	"el":     {"Ελληνικά", "GR"},
	"en":     {"English", "US"},
	"en-GB":  {"English (UK)", "GB"},
	"en-US":  {"English (US)", "US"},
	"es":     {"Español", "ES"},
	"es-419": {"Español (Latinoamérica)", "MX"},
	"fa":     {"فارسی", "IR"},
	"fi":     {"Suomi", "FI"},
	"fr":     {"Français", "FR"},
	"fr-CA":  {"Français (Canada)", "CA"},
	"ha":     {"Hausa", "NG"},
	"he":     {"עברית", "IL"},
	"hi":     {"हिन्दी", "IN"},
	"id":     {"Bahasa Indonesia", "ID"},
	"it":     {"Italiano", "IT"},
	"ja":     {"日本語", "JP"},
	"km":     {"ខ្មែរ", "KH"},
	"ko":     {"한국어", "KR"},
	"lo":     {"ລາວ", "LA"},
	"mn":     {"Монгол", "MN"},
	"my":     {"မြန်မာ", "MM"},
	"ne":     {"नेपाली", "NP"},
	"nl":     {"Nederlands", "NL"},
	"nb":     {"Norsk bokmål", "NO"},
	"no":     {"Norsk", "NO"},
	"pl":     {"Polski", "PL"},
	"ps":     {"پښتو", "AF"},
	"prs":    {"دری", "AF"},
	"pt":     {"Português", "PT"},
	"pt-BR":  {"Português (Brasil)", "BR"},
	"ro":     {"Română", "RO"},
	"ru":     {"Русский", "RU"},
	"rw":     {"Kinyarwanda", "RW"},
	"si":     {"සිංහල", "LK"},
	"so":     {"Soomaali", "SO"},
	"sv":     {"Svenska", "SE"},
	"sw":     {"Kiswahili", "TZ"},
	"ta":     {"தமிழ்", "IN"},
	"tet":    {"Tetun", "TL"},
	"tg":     {"Тоҷикӣ", "TJ"},
	"th":     {"ไทย", "TH"},
	"tr":     {"Türkçe", "TR"},
	"uk":     {"Українська", "UA"},
	"ur":     {"اردو", "PK"},
	"uz":     {"O'zbek", "UZ"},
	"vi":     {"Tiếng Việt", "VN"},
	"zh":     {"中文", "CN"},
	"zh-CN":  {"简体中文", "CN"},
	"zh-TW":  {"繁體中文", "TW"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for locale codes,
// supporting variants like pt_BR, pt-BR, and base-language fallbacks.
// A variant that falls back to its base keeps its own region's flag.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			if flag(parts[1]) != "" {
				m.Region = parts[1]
			}
			return m
		}
	}
	return Meta{Name: lang}
}

// Label renders a locale for display, e.g. "🇫🇷 Français (fr)".
func Label(lang string) string {
	m := Resolve(lang)
	if m.Name == lang {
		return lang
	}
	if f := m.Flag(); f != "" {
		return fmt.Sprintf("%s %s (%s)", f, m.Name, lang)
	}
	return fmt.Sprintf("%s (%s)", m.Name, lang)
}
