// Package i18n provides internationalization support for d2dedup itself.
//
// It wraps the gotext library to provide simple T() and N() functions
// for translating d2dedup's user-facing strings. Translations are embedded
// in the binary via //go:embed and loaded at startup via Init().
//
// Usage:
//
//	i18n.Init("")  // auto-detect from LANGUAGE/LC_ALL/LC_MESSAGES/LANG
//	fmt.Println(i18n.T("No duplicate translations found."))
//	fmt.Println(i18n.N("%d update failed.", "%d updates failed.", n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"github.com/leonelquinteros/gotext"
)

// locales embeds the translation catalogues.
// Directory structure: locales/{lang}/LC_MESSAGES/d2dedup.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for d2dedup.
const domain = "d2dedup"

// po is the gotext locale object used for translations.
var po *gotext.Locale

// lang is the language chosen by Init.
var lang = "en"

// Init initializes the i18n system. If language is empty, it auto-detects
// from the environment variables LANGUAGE, LC_ALL, LC_MESSAGES, LANG
// (in that order, matching GNU gettext behavior), then from the system
// locale.
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(language string) {
	if language == "" {
		language = detectLanguage(jibber_jabber.DetectLanguage)
	}
	lang = language

	po = gotext.NewLocaleFSWithPath(language, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language chosen by Init.
func Language() string {
	return lang
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
// With vars, the result is used as a format string.
func T(msgid string, vars ...any) string {
	if po == nil {
		return format(msgid, vars...)
	}
	return po.Get(msgid, vars...)
}

// N translates a string with plural forms. The singular form is used
// when n == 1, the plural form otherwise (exact rules depend on the
// target language's plural formula).
func N(singular, plural string, n int, vars ...any) string {
	if po == nil {
		if n == 1 {
			return format(singular, vars...)
		}
		return format(plural, vars...)
	}
	return po.GetN(singular, plural, n, vars...)
}

// format mirrors gotext: vars are only applied when present, so messages
// containing a literal % survive untouched.
func format(s string, vars ...any) string {
	if len(vars) == 0 {
		return s
	}
	return fmt.Sprintf(s, vars...)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions. system is asked
// when none of them is set.
func detectLanguage(system func() (string, error)) string {
	// GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				val = strings.SplitN(val, ":", 2)[0]
			}
			// Strip encoding suffix (e.g. "fr_FR.UTF-8" -> "fr_FR")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			// "C" and "POSIX" mean no translation
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}

	if system != nil {
		if val, err := system(); err == nil && val != "" {
			return val
		}
	}
	return "en"
}
