package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

// importRow is one parsed CSV row, normalized across source layouts.
// Transaction fields are empty for sources that export contacts only.
type importRow struct {
	ExternalID     string
	FirstName      string
	LastName       string
	AdditionalName string
	Email          string
	Phone          string

	BillingStreet     string
	BillingCity       string
	BillingState      string
	BillingPostalCode string
	BillingCountry    string

	TxExternalID string
	TxAmount     decimal.Decimal
	TxOccurredAt time.Time
}

// hasTransaction reports whether the row carries a financial event.
func (r *importRow) hasTransaction() bool {
	return r.TxExternalID != ""
}

// rowMapper turns one CSV row into an importRow. get returns the trimmed
// cell under the given header, or "" when the column is absent.
type rowMapper func(get func(column string) string) (*importRow, error)

// mapperFor returns the column mapping for a source system, or
// an error for unknown sources.
func mapperFor(source string) (rowMapper, error) {
	switch source {
	case models.SourceKajabi:
		return mapKajabiRow, nil
	case models.SourcePayPal:
		return mapPayPalRow, nil
	case models.SourceZoho:
		return mapZohoRow, nil
	case models.SourceTicketTailor:
		return mapTicketTailorRow, nil
	case models.SourceQuickBooks:
		return mapQuickBooksRow, nil
	case models.SourceGoogleContacts:
		return mapGoogleContactsRow, nil
	}
	return nil, fmt.Errorf("source %q", source)
}

func mapKajabiRow(get func(string) string) (*importRow, error) {
	return &importRow{
		ExternalID:        get("ID"),
		FirstName:         get("First Name"),
		LastName:          get("Last Name"),
		Email:             get("Email"),
		Phone:             get("Phone Number"),
		BillingStreet:     get("Address Line 1"),
		BillingCity:       get("City"),
		BillingState:      get("State"),
		BillingPostalCode: get("Zip Code"),
		BillingCountry:    get("Country"),
	}, nil
}

func mapPayPalRow(get func(string) string) (*importRow, error) {
	row := &importRow{
		ExternalID:        get("Payer ID"),
		Email:             get("From Email Address"),
		BillingStreet:     get("Address Line 1"),
		BillingCity:       get("Town/City"),
		BillingState:      get("State/Province"),
		BillingPostalCode: get("Zip/Postal Code"),
		BillingCountry:    get("Country"),
	}
	row.FirstName, row.LastName = splitFullName(get("Name"))

	if txID := get("Transaction ID"); txID != "" {
		amount, err := parseAmount(get("Gross"))
		if err != nil {
			return nil, fmt.Errorf("gross: %w", err)
		}
		occurred, err := parseDate(get("Date"), "01/02/2006")
		if err != nil {
			return nil, fmt.Errorf("date: %w", err)
		}
		row.TxExternalID = txID
		row.TxAmount = amount
		row.TxOccurredAt = occurred
	}
	return row, nil
}

func mapZohoRow(get func(string) string) (*importRow, error) {
	return &importRow{
		ExternalID:        get("Contact Id"),
		FirstName:         get("First Name"),
		LastName:          get("Last Name"),
		AdditionalName:    get("Account Name"),
		Email:             get("Email"),
		Phone:             get("Phone"),
		BillingStreet:     get("Mailing Street"),
		BillingCity:       get("Mailing City"),
		BillingState:      get("Mailing State"),
		BillingPostalCode: get("Mailing Zip"),
		BillingCountry:    get("Mailing Country"),
	}, nil
}

func mapTicketTailorRow(get func(string) string) (*importRow, error) {
	row := &importRow{
		ExternalID: get("Buyer ID"),
		FirstName:  get("Buyer first name"),
		LastName:   get("Buyer last name"),
		Email:      get("Buyer email"),
		Phone:      get("Buyer phone"),
	}

	if orderID := get("Order ID"); orderID != "" {
		amount, err := parseAmount(get("Order total"))
		if err != nil {
			return nil, fmt.Errorf("order total: %w", err)
		}
		occurred, err := parseDate(get("Order date"), "2006-01-02 15:04:05")
		if err != nil {
			return nil, fmt.Errorf("order date: %w", err)
		}
		row.TxExternalID = orderID
		row.TxAmount = amount
		row.TxOccurredAt = occurred
	}
	return row, nil
}

func mapQuickBooksRow(get func(string) string) (*importRow, error) {
	row := &importRow{
		ExternalID:        get("Customer ID"),
		AdditionalName:    get("Company"),
		Email:             get("Email"),
		Phone:             get("Phone"),
		BillingStreet:     get("Billing Street"),
		BillingCity:       get("Billing City"),
		BillingState:      get("Billing State"),
		BillingPostalCode: get("Billing ZIP"),
		BillingCountry:    get("Billing Country"),
	}
	row.FirstName, row.LastName = splitFullName(get("Full Name"))

	if invNo := get("Invoice No"); invNo != "" {
		amount, err := parseAmount(get("Amount"))
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		occurred, err := parseDate(get("Invoice Date"), "2006-01-02")
		if err != nil {
			return nil, fmt.Errorf("invoice date: %w", err)
		}
		row.TxExternalID = invNo
		row.TxAmount = amount
		row.TxOccurredAt = occurred
	}
	return row, nil
}

func mapGoogleContactsRow(get func(string) string) (*importRow, error) {
	row := &importRow{
		FirstName:         get("Given Name"),
		LastName:          get("Family Name"),
		Email:             get("E-mail 1 - Value"),
		Phone:             get("Phone 1 - Value"),
		BillingStreet:     get("Address 1 - Street"),
		BillingCity:       get("Address 1 - City"),
		BillingState:      get("Address 1 - Region"),
		BillingPostalCode: get("Address 1 - Postal Code"),
		BillingCountry:    get("Address 1 - Country"),
	}
	// Google exports carry no stable contact ID; rows reconcile by email.
	if row.FirstName == "" && row.LastName == "" {
		row.FirstName, row.LastName = splitFullName(get("Name"))
	}
	return row, nil
}

// splitFullName splits "First Middle Last" at the final space. Single-token
// names land in the first name.
func splitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	i := strings.LastIndex(full, " ")
	if i < 0 {
		return full, ""
	}
	return strings.TrimSpace(full[:i]), strings.TrimSpace(full[i+1:])
}

// parseAmount parses a money cell, tolerating currency symbols and
// thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(cleaned)
}

func parseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(layout, s); err == nil {
		return t, nil
	}
	// Fall back to RFC 3339, which some exports switch to.
	return time.Parse(time.RFC3339, s)
}
