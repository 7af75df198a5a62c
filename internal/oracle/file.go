package oracle

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

type quoteFile struct {
	Quotes []Quote            `yaml:"quotes"`
	Rates  map[string]float64 `yaml:"rates"`
}

// LoadStaticSource reads quotes and exchange rates from a YAML file
// into a StaticSource. It backs offline runs where no live market-data
// adapter is wired.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read quote file", err)
	}

	var file quoteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse quote file", err)
	}

	quotes := make(map[string]Quote, len(file.Quotes))
	for _, quote := range file.Quotes {
		quotes[quote.Symbol] = quote
	}

	return NewStaticSource(quotes, file.Rates), nil
}
