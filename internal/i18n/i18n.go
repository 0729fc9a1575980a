// Package i18n looks up the handful of user-visible strings the backend produces.
package i18n

import (
	"embed"
	"fmt"
	"log"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

const DefaultLang = "de"

var (
	once  sync.Once
	dicts map[string]map[string]any
)

func load() {
	dicts = make(map[string]map[string]any)
	for _, lang := range []string{"de", "en"} {
		b, err := locales.ReadFile("locales/" + lang + ".yaml")
		if err != nil {
			log.Printf("[i18n] missing dictionary %s: %v", lang, err)
			continue
		}
		var d map[string]any
		if err := yaml.Unmarshal(b, &d); err != nil {
			log.Printf("[i18n] invalid dictionary %s: %v", lang, err)
			continue
		}
		dicts[lang] = d
	}
}

// Normalize maps any language setting onto a supported dictionary.
func Normalize(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), "en") {
		return "en"
	}
	return DefaultLang
}

// T resolves a dotted key such as "errors.apiError" and substitutes {name}
// placeholders. Unknown keys resolve to the key itself.
func T(lang, key string, params map[string]any) string {
	once.Do(load)
	s, ok := lookup(dicts[Normalize(lang)], key)
	if !ok {
		s, ok = lookup(dicts[DefaultLang], key)
	}
	if !ok {
		s = key
	}
	for k, v := range params {
		s = strings.ReplaceAll(s, "{"+k+"}", fmt.Sprint(v))
	}
	return s
}

func lookup(d map[string]any, key string) (string, bool) {
	var cur any = d
	for _, p := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur = m[p]
	}
	s, ok := cur.(string)
	return s, ok
}
