package processors

import (
	"github.com/username/lotfolio/src/models"
)

// LegSelection is the input of one FIFO pass: ordered opens and closes plus the lot direction.
type LegSelection struct {
	Direction models.Direction
	Opens     []*models.Transaction
	Closes    []*models.Transaction
}

// LegSelector picks the opening and closing transactions of one position key.
// ok is false when the key cannot be matched (no opens, or no direction).
type LegSelector interface {
	Kind() models.InstrumentKind
	SelectLegs(txns []*models.Transaction) (sel LegSelection, ok bool)
}

// Matcher runs lot matching over a transaction snapshot.
type Matcher interface {
	Match(key models.PositionKey, txns []*models.Transaction, linked map[int64]bool) MatchOutcome
	MatchTransactions(txns []*models.Transaction, accountID *int64, linked map[int64]bool) BatchOutcome
}
