package eodctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/watchdogpolska/small-eod/internal/platform/i18n/catalog"
)

type i18nReport struct {
	BaseLocale string         `json:"base_locale"`
	Locales    []localeStatus `json:"locales"`
}

type localeStatus struct {
	Locale      string            `json:"locale"`
	BaseKeys    int               `json:"base_keys"`
	Translated  int               `json:"translated"`
	Missing     int               `json:"missing"`
	Completion  float64           `json:"completion"`
	Namespaces  []namespaceStatus `json:"namespaces"`
	MissingKeys []string          `json:"missing_keys"`
}

type namespaceStatus struct {
	Namespace  string  `json:"namespace"`
	BaseKeys   int     `json:"base_keys"`
	Translated int     `json:"translated"`
	Completion float64 `json:"completion"`
}

func i18nStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "i18n-status",
		Short: "Report translation coverage of the admin catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundle, err := catalog.LoadEmbedded()
			if err != nil {
				return fmt.Errorf("load i18n catalogs: %w", err)
			}
			rep := buildI18nReport(bundle, catalog.BaseLocale)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return writeI18nTable(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func buildI18nReport(bundle *catalog.Bundle, baseLocale string) i18nReport {
	baseKeys := bundle.Keys(baseLocale)
	baseNamespaces := bundle.Namespaces(baseLocale)

	rep := i18nReport{BaseLocale: baseLocale}
	for _, locale := range bundle.Locales() {
		have := keySet(bundle.Keys(locale))
		status := localeStatus{Locale: locale, BaseKeys: len(baseKeys), MissingKeys: []string{}}
		for _, key := range baseKeys {
			if !have[key] {
				status.MissingKeys = append(status.MissingKeys, key)
			}
		}
		status.Missing = len(status.MissingKeys)
		status.Translated = len(baseKeys) - status.Missing
		status.Completion = percent(status.Translated, len(baseKeys))

		for _, namespace := range baseNamespaces {
			nsKeys := bundle.NamespaceKeys(baseLocale, namespace)
			translated := 0
			for _, key := range nsKeys {
				if have[key] {
					translated++
				}
			}
			status.Namespaces = append(status.Namespaces, namespaceStatus{
				Namespace:  namespace,
				BaseKeys:   len(nsKeys),
				Translated: translated,
				Completion: percent(translated, len(nsKeys)),
			})
		}
		rep.Locales = append(rep.Locales, status)
	}
	sort.Slice(rep.Locales, func(i, j int) bool {
		return rep.Locales[i].Locale < rep.Locales[j].Locale
	})
	return rep
}

func writeI18nTable(w io.Writer, rep i18nReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "LOCALE\tNAMESPACE\tKEYS\tTRANSLATED\tCOMPLETION\n")
	for _, locale := range rep.Locales {
		fmt.Fprintf(tw, "%s\t*\t%d\t%d\t%.1f%%\n", locale.Locale, locale.BaseKeys, locale.Translated, locale.Completion)
		for _, ns := range locale.Namespaces {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f%%\n", locale.Locale, ns.Namespace, ns.BaseKeys, ns.Translated, ns.Completion)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, locale := range rep.Locales {
		for _, key := range locale.MissingKeys {
			fmt.Fprintf(w, "missing %s: %s\n", locale.Locale, key)
		}
	}
	return nil
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		set[key] = true
	}
	return set
}

func percent(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) * 100 / float64(total)
}
