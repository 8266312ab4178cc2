// Package legacy imports data exported from the browser-based predecessor
// of MTMS, which kept its tables as JSON in localStorage under the keys
// sql_users and sql_transfers.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Dump is the decoded content of an export.
type Dump struct {
	Users     []User
	Transfers []Transfer
}

// User is a legacy account row. Passwords were stored in clear text.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
}

// Transfer is a legacy transfer row. Status holds the display label.
type Transfer struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customerName"`
	BankAccount  string          `json:"bankAccount"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    string          `json:"createdAt"`
	CreatedBy    string          `json:"createdBy"`
	CreatorName  string          `json:"creatorName"`
	Status       string          `json:"status"`
	UpdatedAt    *string         `json:"updatedAt"`
}

type export struct {
	Users     json.RawMessage `json:"sql_users"`
	Transfers json.RawMessage `json:"sql_transfers"`
}

// Parse reads an export object. Each table may be given either as a JSON
// array or, as localStorage holds it, as a string containing that array.
func Parse(r io.Reader) (*Dump, error) {
	var e export
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	d := &Dump{}
	if err := decodeTable(e.Users, &d.Users); err != nil {
		return nil, fmt.Errorf("sql_users: %w", err)
	}
	if err := decodeTable(e.Transfers, &d.Transfers); err != nil {
		return nil, fmt.Errorf("sql_transfers: %w", err)
	}
	return d, nil
}

func decodeTable(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		if inner == "" {
			return nil
		}
		raw = []byte(inner)
	}
	return json.Unmarshal(raw, dst)
}
