package parsers

import (
	"fmt"
	"strings"

	"github.com/username/lotfolio/src/parsers/ibkr"
	"github.com/username/lotfolio/src/parsers/normalized"
)

// DefaultSource is used when an upload does not name its format.
const DefaultSource = "csv"

func GetParser(source string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "csv":
		return normalized.NewParser(), nil
	case "ibkr":
		return ibkr.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
