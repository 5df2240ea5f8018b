// Package mapper turns natural-language questions into structured query
// drafts using a text-generation capability. The capability is opaque:
// prompts go in, JSON comes out, and the JSON is decoded into a tagged
// result at this boundary.
package mapper

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary maps business vocabulary to schema field names. It is loaded
// from a YAML file and rendered into the mapping prompt so the capability
// sees the organization's own terms.
type Dictionary struct {
	Synonyms map[string][]string `yaml:"synonyms"`
}

// LoadDictionary reads a synonym dictionary from a YAML file. A missing
// path yields an empty dictionary rather than an error.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return &Dictionary{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Dictionary{}, nil
		}
		return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
	}

	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dictionary %s: %w", path, err)
	}
	return &d, nil
}

// Render formats the dictionary for inclusion in a prompt. Fields are
// sorted so the output is stable.
func (d *Dictionary) Render() string {
	if len(d.Synonyms) == 0 {
		return ""
	}

	fields := make([]string, 0, len(d.Synonyms))
	for field := range d.Synonyms {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("BUSINESS VOCABULARY:\n")
	for _, field := range fields {
		b.WriteString(fmt.Sprintf("- %s: also known as %s\n", field, strings.Join(d.Synonyms[field], ", ")))
	}
	return b.String()
}
