package booking

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"glamora/internal/apperrors"
)

// phoneRegions are tried in order for numbers without a country prefix.
var phoneRegions = []string{"SK", "CZ"}

// NormalizePhone returns phone in E.164 form. An empty input stays empty.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	for _, region := range phoneRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err == nil {
			return phonenumbers.Format(parsed, phonenumbers.E164), nil
		}
	}
	return "", apperrors.Validation("invalid phone number %q", phone)
}

func normalizeCustomer(c Customer) (Customer, error) {
	phone, err := NormalizePhone(c.Phone)
	if err != nil {
		return Customer{}, err
	}
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: phone,
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
	}, nil
}
