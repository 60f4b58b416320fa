package dictionary

import (
	"errors"
	"fmt"
	"io"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"gopkg.in/yaml.v3"
)

type yamlVocabulary struct {
	Terms []suggest.Entry `yaml:"terms"`
}

// ReadYAML parses a document of the form:
//
//	terms:
//	  - term: cat
//	    score: 5
func ReadYAML(r io.Reader) (*Vocabulary, error) {
	var doc yamlVocabulary
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Vocabulary{}, nil
		}
		return nil, fmt.Errorf("decoding yaml dictionary: %w", err)
	}
	return &Vocabulary{Entries: doc.Terms}, nil
}

// WriteYAML writes entries in the layout ReadYAML accepts.
func WriteYAML(w io.Writer, entries []suggest.Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlVocabulary{Terms: entries}); err != nil {
		return fmt.Errorf("encoding yaml dictionary: %w", err)
	}
	return enc.Close()
}
