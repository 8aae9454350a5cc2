// Package localization provides functionality for internationalization (i18n).
// It loads translation strings from JSON files and provides a simple way to get
// localized strings for different languages.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	apperr "meetinclick/backend/pkg/errors"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLanguage is used whenever a key or language is missing.
const DefaultLanguage = "en"

//go:embed locales/*.json
var bundled embed.FS

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
	matcher      language.Matcher
	langs        []string
}

// Default returns a Localizer over the catalogs compiled into the binary.
func Default() *Localizer {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		panic(err)
	}
	l, err := NewLocalizer(sub)
	if err != nil {
		panic(err)
	}
	return l
}

// NewLocalizerFromDir loads every <lang>.json file in dir.
func NewLocalizerFromDir(dir string) (*Localizer, error) {
	return NewLocalizer(os.DirFS(dir))
}

// NewLocalizer creates and returns a new Localizer instance.
// The root of fsys should contain JSON files named with the language code (e.g., "en.json").
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(".", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	if _, ok := l.translations[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("localization: missing %s.json", DefaultLanguage)
	}

	// the default language goes first so the matcher falls back to it
	l.langs = []string{DefaultLanguage}
	others := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		if lang != DefaultLanguage {
			others = append(others, lang)
		}
	}
	sort.Strings(others)
	l.langs = append(l.langs, others...)

	tags := make([]language.Tag, 0, len(l.langs))
	for _, lang := range l.langs {
		tags = append(tags, language.Make(lang))
	}
	l.matcher = language.NewMatcher(tags)
	return l, nil
}

// Languages lists the loaded language codes, default first.
func (l *Localizer) Languages() []string {
	return append([]string(nil), l.langs...)
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	// Fallback to a default language if the key is not found in the specified language
	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format looks up key and applies args with fmt.Sprintf.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}

// Match picks the best loaded language for an Accept-Language header value.
func (l *Localizer) Match(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return l.langs[idx]
}

// MessageFor renders err for end users. Unknown reasons fall back to the
// error's own message, foreign errors to a generic text.
func (l *Localizer) MessageFor(lang string, err error) string {
	appErr, ok := apperr.As(err)
	if !ok {
		return l.GetString(lang, "error.INTERNAL")
	}
	key := "error." + appErr.Reason
	if msg := l.GetString(lang, key); msg != key {
		return msg
	}
	return appErr.Message
}
