package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts strings, numbers, booleans and null for every field, so
// `"quantity": 10` and `"quantity": "10"` decode the same. Numbers keep their
// literal text; no float conversion happens. Unknown fields are ignored.
func (r *RawTransaction) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	for name, value := range fields {
		dst := r.fieldByJSONName(name)
		if dst == nil {
			continue
		}
		s, err := scalarString(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		*dst = s
	}
	return nil
}

func (r *RawTransaction) fieldByJSONName(name string) *string {
	switch name {
	case "external_id":
		return &r.ExternalID
	case "account_id":
		return &r.AccountID
	case "account_name":
		return &r.AccountName
	case "institution":
		return &r.Institution
	case "trade_date":
		return &r.TradeDate
	case "symbol":
		return &r.Symbol
	case "type":
		return &r.Type
	case "quantity":
		return &r.Quantity
	case "price":
		return &r.Price
	case "amount":
		return &r.Amount
	case "currency":
		return &r.Currency
	case "description":
		return &r.Description
	case "is_option":
		return &r.IsOption
	case "option_type":
		return &r.OptionType
	case "strike_price":
		return &r.StrikePrice
	case "expiration_date":
		return &r.ExpirationDate
	case "underlying_symbol":
		return &r.UnderlyingSymbol
	case "option_action":
		return &r.OptionAction
	default:
		return nil
	}
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("expected a string, number or boolean, got %T", v)
	}
}
