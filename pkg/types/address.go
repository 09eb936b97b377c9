package types

import (
	"errors"
	"strings"

	"go.uber.org/multierr"
)

// Address is the immutable shipping snapshot stored on an order. It is
// persisted as jsonb and never updated after the order is placed.
type Address struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate reports every missing required field at once.
func (a Address) Validate() error {
	var err error
	if strings.TrimSpace(a.Name) == "" {
		err = multierr.Append(err, errors.New("address: missing name"))
	}
	if strings.TrimSpace(a.Phone) == "" {
		err = multierr.Append(err, errors.New("address: missing phone"))
	}
	if strings.TrimSpace(a.Line1) == "" {
		err = multierr.Append(err, errors.New("address: missing line1"))
	}
	if strings.TrimSpace(a.City) == "" {
		err = multierr.Append(err, errors.New("address: missing city"))
	}
	if strings.TrimSpace(a.State) == "" {
		err = multierr.Append(err, errors.New("address: missing state"))
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		err = multierr.Append(err, errors.New("address: missing postal_code"))
	}
	return err
}

// CountryOrDefault returns the country code, defaulting to India.
func (a Address) CountryOrDefault() string {
	if c := strings.TrimSpace(a.Country); c != "" {
		return c
	}
	return "IN"
}
