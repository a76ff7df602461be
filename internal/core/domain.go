package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

type (
	// Period is the granularity a receipt date is truncated to when
	// bucketing aggregations.
	Period string

	Date struct {
		time.Time
	}

	// Money is an amount in whole Korean won.
	Money struct {
		Won int64
	}

	// Item is a single receipt line with its classified category pair.
	// Category and Subcategory hold names; identifier resolution happens
	// at persistence time.
	Item struct {
		Name        string
		Category    string
		Subcategory string
		Amount      Money
	}

	// Draft is the structured result of parsing a model response, before
	// taxonomy re-validation at persistence time.
	Draft struct {
		StoreName string
		Date      Date
		Items     []Item
		Total     Money
	}

	// Receipt is a persisted receipt with its items.
	Receipt struct {
		ID        int64
		StoreName string
		Date      Date
		Total     Money
		Items     []Item
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyStoreName = errors.New("empty store name")
	ErrEmptyItemName  = errors.New("empty item name")
	ErrNoItems        = errors.New("no items")
)

func (p Period) IsValid() bool {
	switch p {
	case Daily, Monthly, Yearly:
		return true
	}
	return false
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Won <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyItemName
	}
	if strings.TrimSpace(i.Category) == "" || strings.TrimSpace(i.Subcategory) == "" {
		return &ValidationError{Category: i.Category, Subcategory: i.Subcategory}
	}
	return i.Amount.Validate()
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.StoreName) == "" {
		return ErrEmptyStoreName
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if len(d.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range d.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return d.Total.Validate()
}
