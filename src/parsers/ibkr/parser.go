package ibkr

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/models"
)

// FlexQueryResponse is the root element of an IBKR Flex Query report.
type FlexQueryResponse struct {
	XMLName        xml.Name        `xml:"FlexQueryResponse"`
	FlexStatements []FlexStatement `xml:"FlexStatements>FlexStatement"`
}

// FlexStatement holds the activity of one account.
type FlexStatement struct {
	XMLName          xml.Name          `xml:"FlexStatement"`
	AccountId        string            `xml:"accountId,attr"`
	Trades           []Trade           `xml:"Trades>Trade"`
	CashTransactions []CashTransaction `xml:"CashTransactions>CashTransaction"`
}

// Trade is a stock or option execution. Numbers are kept as text and read
// into decimals.
type Trade struct {
	AssetCategory      string `xml:"assetCategory,attr"`
	Symbol             string `xml:"symbol,attr"`
	UnderlyingSymbol   string `xml:"underlyingSymbol,attr"`
	Description        string `xml:"description,attr"`
	Multiplier         string `xml:"multiplier,attr"`
	Strike             string `xml:"strike,attr"`
	Expiry             string `xml:"expiry,attr"`
	PutCall            string `xml:"putCall,attr"`
	DateTime           string `xml:"dateTime,attr"`
	TradeDate          string `xml:"tradeDate,attr"`
	Quantity           string `xml:"quantity,attr"`
	TradePrice         string `xml:"tradePrice,attr"`
	TradeMoney         string `xml:"tradeMoney,attr"`
	Currency           string `xml:"currency,attr"`
	Exchange           string `xml:"exchange,attr"`
	IBCommission       string `xml:"ibCommission,attr"`
	BuySell            string `xml:"buySell,attr"`
	OpenCloseIndicator string `xml:"openCloseIndicator,attr"`
	TradeID            string `xml:"tradeID,attr"`
	IBOrderID          string `xml:"ibOrderID,attr"`
}

// CashTransaction covers dividends, deposits and withdrawals.
type CashTransaction struct {
	Type          string `xml:"type,attr"`
	Description   string `xml:"description,attr"`
	DateTime      string `xml:"dateTime,attr"`
	Amount        string `xml:"amount,attr"`
	Currency      string `xml:"currency,attr"`
	LevelOfDetail string `xml:"levelOfDetail,attr"`
	Symbol        string `xml:"symbol,attr"`
	TransactionID string `xml:"transactionID,attr"`
}

// IBKRParser reads IBKR Flex Query XML reports.
type IBKRParser struct{}

func NewParser() *IBKRParser {
	return &IBKRParser{}
}

// Parse converts trades and cash rows of every statement into raw transactions.
// Rows that cannot be read are logged and skipped.
func (p *IBKRParser) Parse(file io.Reader) ([]models.RawTransaction, error) {
	var response FlexQueryResponse
	decoder := xml.NewDecoder(file)
	if err := decoder.Decode(&response); err != nil {
		return nil, fmt.Errorf("ibkr parser: failed to decode XML: %w", err)
	}

	var rows []models.RawTransaction
	for _, stmt := range response.FlexStatements {
		for _, trade := range stmt.Trades {
			// Currency conversions are not positions.
			if trade.Exchange == "IDEALFX" || trade.AssetCategory == "CASH" {
				continue
			}
			row, err := p.processTrade(stmt.AccountId, trade)
			if err != nil {
				logger.L.Warn("IBKR Parser: Skipping trade due to processing error", "tradeID", trade.TradeID, "error", err)
				continue
			}
			rows = append(rows, row)
		}

		for _, cashTx := range stmt.CashTransactions {
			// Summary rows duplicate the detail rows.
			if cashTx.LevelOfDetail != "" && cashTx.LevelOfDetail != "DETAIL" {
				continue
			}
			row, ok, err := p.processCash(stmt.AccountId, cashTx)
			if err != nil {
				logger.L.Warn("IBKR Parser: Skipping cash transaction due to processing error", "description", cashTx.Description, "error", err)
				continue
			}
			if ok {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func (p *IBKRParser) processTrade(accountID string, trade Trade) (models.RawTransaction, error) {
	date, err := parseIBKRDateTime(firstNonEmpty(trade.DateTime, trade.TradeDate))
	if err != nil {
		return models.RawTransaction{}, err
	}
	money, err := parseDecimal(trade.TradeMoney)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("tradeMoney: %w", err)
	}
	commission, err := parseDecimal(trade.IBCommission)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("ibCommission: %w", err)
	}
	quantity, err := parseDecimal(trade.Quantity)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("quantity: %w", err)
	}

	side := strings.ToUpper(strings.TrimSpace(trade.BuySell))
	if side != models.TypeBuy && side != models.TypeSell {
		return models.RawTransaction{}, fmt.Errorf("unknown buySell %q", trade.BuySell)
	}

	// tradeMoney is positive for buys; commissions are reported negative.
	amount := money.Neg().Sub(commission.Abs())

	row := models.RawTransaction{
		ExternalID:  externalID(trade),
		AccountID:   accountID,
		Institution: "Interactive Brokers",
		TradeDate:   date.Format("2006-01-02"),
		Symbol:      trade.Symbol,
		Type:        side,
		Quantity:    quantity.Abs().String(),
		Price:       trade.TradePrice,
		Amount:      amount.String(),
		Currency:    trade.Currency,
		Description: trade.Description,
	}

	if trade.AssetCategory != "OPT" {
		return row, nil
	}

	expiry, err := parseIBKRDateTime(trade.Expiry)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("expiry: %w", err)
	}
	action, err := optionAction(side, trade.OpenCloseIndicator)
	if err != nil {
		return models.RawTransaction{}, err
	}
	row.IsOption = "true"
	row.OptionAction = action
	row.StrikePrice = trade.Strike
	row.ExpirationDate = expiry.Format("2006-01-02")
	row.UnderlyingSymbol = firstNonEmpty(trade.UnderlyingSymbol, trade.Symbol)
	switch strings.ToUpper(trade.PutCall) {
	case "C":
		row.OptionType = models.OptionTypeCall
	case "P":
		row.OptionType = models.OptionTypePut
	default:
		return models.RawTransaction{}, fmt.Errorf("unknown putCall %q", trade.PutCall)
	}
	return row, nil
}

// optionAction combines the trade side with IBKR's open/close indicator.
// Partial indicators such as "C;O" count by their first code.
func optionAction(side, indicator string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(indicator))
	if i := strings.Index(code, ";"); i >= 0 {
		code = code[:i]
	}
	switch {
	case side == models.TypeBuy && code == "O":
		return models.ActionBuyToOpen, nil
	case side == models.TypeSell && code == "O":
		return models.ActionSellToOpen, nil
	case side == models.TypeBuy && code == "C":
		return models.ActionBuyToClose, nil
	case side == models.TypeSell && code == "C":
		return models.ActionSellToClose, nil
	}
	return "", fmt.Errorf("unknown openCloseIndicator %q", indicator)
}

func (p *IBKRParser) processCash(accountID string, cashTx CashTransaction) (models.RawTransaction, bool, error) {
	var txType string
	switch cashTx.Type {
	case "Dividends", "Payment In Lieu Of Dividends":
		txType = "DIVIDEND"
	case "Withholding Tax":
		txType = "TAX"
	case "Deposits/Withdrawals", "Deposits & Withdrawals":
		txType = "DEPOSIT"
		if strings.HasPrefix(strings.TrimSpace(cashTx.Amount), "-") {
			txType = "WITHDRAWAL"
		}
	default:
		return models.RawTransaction{}, false, nil
	}

	date, err := parseIBKRDateTime(cashTx.DateTime)
	if err != nil {
		return models.RawTransaction{}, false, err
	}
	amount, err := parseDecimal(cashTx.Amount)
	if err != nil {
		return models.RawTransaction{}, false, fmt.Errorf("amount: %w", err)
	}

	row := models.RawTransaction{
		AccountID:   accountID,
		Institution: "Interactive Brokers",
		TradeDate:   date.Format("2006-01-02"),
		Symbol:      cashTx.Symbol,
		Type:        txType,
		Amount:      amount.String(),
		Currency:    cashTx.Currency,
		Description: cashTx.Description,
	}
	if cashTx.TransactionID != "" {
		row.ExternalID = "ibkr-cash-" + cashTx.TransactionID
	}
	return row, true, nil
}

func externalID(trade Trade) string {
	if trade.TradeID != "" {
		return "ibkr-" + trade.TradeID
	}
	if trade.IBOrderID != "" {
		return "ibkr-order-" + trade.IBOrderID
	}
	return ""
}

// parseIBKRDateTime reads "YYYYMMDD;HHMMSS", "YYYYMMDD" or ISO dates.
func parseIBKRDateTime(datetime string) (time.Time, error) {
	datetime = strings.TrimSpace(datetime)
	layout := "20060102"
	switch {
	case strings.Contains(datetime, ";"):
		layout = "20060102;150405"
	case strings.Contains(datetime, "-"):
		layout = "2006-01-02"
		if len(datetime) > len(layout) {
			datetime = datetime[:len(layout)]
		}
	}
	t, err := time.Parse(layout, datetime)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse ibkr datetime '%s': %w", datetime, err)
	}
	return t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
