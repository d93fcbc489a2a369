// Package catalog loads the YAML message catalogs of the admin UI and
// registers them with golang.org/x/text/message.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	xcatalog "golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the canonical source locale for catalogs.
	BaseLocale = "en-US"
)

// PluralMessage selects a form by the CLDR plural category of one argument.
type PluralMessage struct {
	// Arg is the 1-based index of the count argument.
	Arg int `yaml:"arg"`
	// Forms maps selectors ("one", "few", "many", "other", "=0") to formats.
	Forms map[string]string `yaml:",inline"`
}

type catalogFile struct {
	Locale    string                   `yaml:"locale"`
	Namespace string                   `yaml:"namespace"`
	Messages  map[string]string        `yaml:"messages"`
	Plurals   map[string]PluralMessage `yaml:"plurals"`
}

// LocaleCatalog stores all messages for one locale, grouped by namespace.
type LocaleCatalog struct {
	Locale     string
	Namespaces map[string][]string
	Messages   map[string]string
	Plurals    map[string]PluralMessage
}

// Bundle contains all locale catalogs loaded from disk.
type Bundle struct {
	locales map[string]*LocaleCatalog
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads catalog files from the provided filesystem.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*LocaleCatalog{}}

	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var parsed catalogFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.addFile(path, parsed); err != nil {
			return nil, err
		}
	}

	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := bundle.checkAgainstBase(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Bundle) addFile(path string, file catalogFile) error {
	localeFromPath := filepath.Base(filepath.Dir(path))
	namespaceFromPath := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, localeFromPath)
	}

	namespace := strings.TrimSpace(file.Namespace)
	if namespace == "" {
		return fmt.Errorf("catalog %s: namespace is required", path)
	}
	if namespace != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", path, namespace, namespaceFromPath)
	}

	if len(file.Messages) == 0 && len(file.Plurals) == 0 {
		return fmt.Errorf("catalog %s: messages are required", path)
	}

	localeCatalog, ok := b.locales[locale]
	if !ok {
		localeCatalog = &LocaleCatalog{
			Locale:     locale,
			Namespaces: map[string][]string{},
			Messages:   map[string]string{},
			Plurals:    map[string]PluralMessage{},
		}
		b.locales[locale] = localeCatalog
	}
	if _, exists := localeCatalog.Namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", path, namespace, locale)
	}

	keys := make([]string, 0, len(file.Messages)+len(file.Plurals))
	claim := func(key string) (string, error) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return "", fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if localeCatalog.has(trimmedKey) {
			return "", fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, trimmedKey, locale)
		}
		keys = append(keys, trimmedKey)
		return trimmedKey, nil
	}
	for key, value := range file.Messages {
		trimmedKey, err := claim(key)
		if err != nil {
			return err
		}
		localeCatalog.Messages[trimmedKey] = value
	}
	for key, value := range file.Plurals {
		trimmedKey, err := claim(key)
		if err != nil {
			return err
		}
		if value.Arg < 1 {
			return fmt.Errorf("catalog %s: plural %q needs arg >= 1", path, trimmedKey)
		}
		if _, ok := value.Forms["other"]; !ok {
			return fmt.Errorf("catalog %s: plural %q needs an \"other\" form", path, trimmedKey)
		}
		localeCatalog.Plurals[trimmedKey] = value
	}

	sort.Strings(keys)
	localeCatalog.Namespaces[namespace] = keys
	return nil
}

func (c *LocaleCatalog) has(key string) bool {
	if _, ok := c.Messages[key]; ok {
		return true
	}
	_, ok := c.Plurals[key]
	return ok
}

// checkAgainstBase rejects translated keys the base locale does not define.
func (b *Bundle) checkAgainstBase() error {
	base := b.locales[BaseLocale]
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		for _, key := range b.Keys(locale) {
			if !base.has(key) {
				return fmt.Errorf("locale %s: key %q is missing from %s", locale, key, BaseLocale)
			}
		}
	}
	return nil
}

// Register registers all catalog messages with x/text/message.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, _ := tag.Base(); base.String() != "" && base.String() != "und" {
			baseTag, err := language.Parse(base.String())
			if err == nil && baseTag.String() != tag.String() {
				tags = append(tags, baseTag)
			}
		}
		catalog := b.locales[locale]
		for _, key := range b.Keys(locale) {
			for _, registerTag := range tags {
				if value, ok := catalog.Messages[key]; ok {
					if err := message.SetString(registerTag, key, value); err != nil {
						return fmt.Errorf("register %s %q: %w", locale, key, err)
					}
					continue
				}
				if err := message.Set(registerTag, key, pluralSelector(catalog.Plurals[key])); err != nil {
					return fmt.Errorf("register plural %s %q: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// pluralSelector orders explicit "=N" cases first, then CLDR categories.
func pluralSelector(p PluralMessage) xcatalog.Message {
	selectors := make([]string, 0, len(p.Forms))
	for selector := range p.Forms {
		selectors = append(selectors, selector)
	}
	sort.Slice(selectors, func(i, j int) bool {
		ri, rj := selectorRank(selectors[i]), selectorRank(selectors[j])
		if ri != rj {
			return ri < rj
		}
		return selectors[i] < selectors[j]
	})
	cases := make([]any, 0, 2*len(selectors))
	for _, selector := range selectors {
		cases = append(cases, selector, p.Forms[selector])
	}
	return plural.Selectf(p.Arg, "%d", cases...)
}

func selectorRank(selector string) int {
	switch selector {
	case "zero":
		return 1
	case "one":
		return 2
	case "two":
		return 3
	case "few":
		return 4
	case "many":
		return 5
	case "other":
		return 6
	default:
		return 0
	}
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Keys returns every message and plural key of a locale, sorted.
func (b *Bundle) Keys(locale string) []string {
	if b == nil {
		return nil
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(catalog.Messages)+len(catalog.Plurals))
	for key := range catalog.Messages {
		out = append(out, key)
	}
	for key := range catalog.Plurals {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Message returns one plain message value with base-locale fallback.
func (b *Bundle) Message(locale string, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	trimmedLocale := strings.TrimSpace(locale)
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false
	}
	if catalog, ok := b.locales[trimmedLocale]; ok {
		if value, exists := catalog.Messages[trimmedKey]; exists {
			return value, true
		}
	}
	if trimmedLocale != BaseLocale {
		if catalog, ok := b.locales[BaseLocale]; ok {
			value, exists := catalog.Messages[trimmedKey]
			return value, exists
		}
	}
	return "", false
}

// Namespaces returns sorted namespace names for a locale.
func (b *Bundle) Namespaces(locale string) []string {
	if b == nil {
		return nil
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(catalog.Namespaces))
	for namespace := range catalog.Namespaces {
		out = append(out, namespace)
	}
	sort.Strings(out)
	return out
}

// NamespaceKeys returns the keys a namespace file defined for a locale.
func (b *Bundle) NamespaceKeys(locale string, namespace string) []string {
	if b == nil {
		return nil
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return nil
	}
	keys := catalog.Namespaces[strings.TrimSpace(namespace)]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}
