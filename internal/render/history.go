package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/store"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// History export formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatHistory renders persisted records in the requested format.
func FormatHistory(records []store.Record, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return historyText(records), nil
	case FormatJSON:
		if records == nil {
			records = []store.Record{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "marshal history")
		}
		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return "", errors.Wrap(err, "marshal history")
		}
		return string(data), nil
	default:
		return "", errors.Errorf("unknown history format %q (supported: text, json, yaml)", format)
	}
}

func historyText(records []store.Record) string {
	if len(records) == 0 {
		return "No records stored yet.\n"
	}
	var b strings.Builder
	b.WriteString("Documents in history:\n")
	for _, r := range records {
		m := r.Metadata
		fmt.Fprintf(&b, "ID: %s\n", r.ID)
		fmt.Fprintf(&b, "Content: %s\n", r.Document)
		fmt.Fprintf(&b, "Metadata: role=%s model=%s timestamp=%d seq=%d", m.Role, m.Model, m.Timestamp, m.Seq)
		if m.Source != "" {
			fmt.Fprintf(&b, " source=%s", m.Source)
		}
		if m.Session != "" {
			fmt.Fprintf(&b, " session=%s", m.Session)
		}
		b.WriteString("\n---\n")
	}
	return b.String()
}
