// Package localization provides the human-readable texts attached to outbound
// notifications. Translations are JSON files named by language code (en.json,
// uk.json) embedded into the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"anonchat/backend/internal/models"
)

const DefaultLang = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer holds a map of languages, each with its own map of keys to texts.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// Default returns a Localizer loaded from the embedded locales.
func Default() (*Localizer, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || path.Ext(file.Name()) != ".json" {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")

		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	if _, ok := l.translations[DefaultLang]; !ok {
		return nil, fmt.Errorf("missing %s translations", DefaultLang)
	}
	return l, nil
}

// Lookup returns the text for key in lang, falling back to English.
func (l *Localizer) Lookup(lang, key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value, true
	}
	if value, ok := l.translations[DefaultLang][key]; ok {
		return value, true
	}
	return "", false
}

// GetString is Lookup that returns the key itself when nothing matches.
func (l *Localizer) GetString(lang, key string) string {
	if value, ok := l.Lookup(lang, key); ok {
		return value
	}
	return key
}

// Supports reports whether lang has its own translation file.
func (l *Localizer) Supports(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.translations[lang]
	return ok
}

// Describe returns the human text for a notification, or "" if there is none.
// Keys are the notification type, optionally suffixed with its reason
// ("partner_left.disconnected", "error.not_in_room").
func (l *Localizer) Describe(lang string, n models.Notification) string {
	if n.Reason != "" {
		if value, ok := l.Lookup(lang, n.Type+"."+n.Reason); ok {
			return value
		}
	}
	value, _ := l.Lookup(lang, n.Type)
	return value
}
