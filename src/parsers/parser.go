package parsers

import (
	"io"

	"github.com/username/lotfolio/src/models"
)

// Parser turns an uploaded file into raw transaction rows.
type Parser interface {
	Parse(file io.Reader) ([]models.RawTransaction, error)
}
