package normalized

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/lotfolio/src/models"
)

// columnAliases maps accepted header names to RawTransaction fields.
var columnAliases = map[string]string{
	"external_id":       "external_id",
	"id":                "external_id",
	"transaction_id":    "external_id",
	"account_id":        "account_id",
	"account":           "account_id",
	"account_name":      "account_name",
	"institution":       "institution",
	"institution_name":  "institution",
	"trade_date":        "trade_date",
	"date":              "trade_date",
	"symbol":            "symbol",
	"type":              "type",
	"quantity":          "quantity",
	"qty":               "quantity",
	"price":             "price",
	"amount":            "amount",
	"currency":          "currency",
	"description":       "description",
	"is_option":         "is_option",
	"option_type":       "option_type",
	"put_call":          "option_type",
	"strike_price":      "strike_price",
	"strike":            "strike_price",
	"expiration_date":   "expiration_date",
	"expiration":        "expiration_date",
	"underlying_symbol": "underlying_symbol",
	"underlying":        "underlying_symbol",
	"option_action":     "option_action",
	"action":            "option_action",
}

var requiredColumns = []string{"account_id", "trade_date", "symbol"}

// NormalizedParser reads CSV files whose header names the transaction fields.
// Column order is free; unknown columns are ignored.
type NormalizedParser struct{}

func NewParser() *NormalizedParser {
	return &NormalizedParser{}
}

func (p *NormalizedParser) Parse(file io.Reader) ([]models.RawTransaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV file")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int)
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		normalized = strings.ReplaceAll(normalized, " ", "_")
		if field, ok := columnAliases[normalized]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var rows []models.RawTransaction
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		get := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, models.RawTransaction{
			ExternalID:       get("external_id"),
			AccountID:        get("account_id"),
			AccountName:      get("account_name"),
			Institution:      get("institution"),
			TradeDate:        get("trade_date"),
			Symbol:           get("symbol"),
			Type:             get("type"),
			Quantity:         get("quantity"),
			Price:            get("price"),
			Amount:           get("amount"),
			Currency:         get("currency"),
			Description:      get("description"),
			IsOption:         get("is_option"),
			OptionType:       get("option_type"),
			StrikePrice:      get("strike_price"),
			ExpirationDate:   get("expiration_date"),
			UnderlyingSymbol: get("underlying_symbol"),
			OptionAction:     get("option_action"),
		})
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
