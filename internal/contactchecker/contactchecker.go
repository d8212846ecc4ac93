// Package contactchecker offers utility functions for validating
// delivery destinations.
package contactchecker

import (
	"net/mail"

	"github.com/nyaruka/phonenumbers"
)

// Channel is an out of band delivery channel for one time codes.
type Channel string

const (
	// SMS delivers to a phone number.
	SMS Channel = "sms"
	// Email delivers to an email address.
	Email Channel = "email"
)

// IsPhoneValid checks if a phone string is a valid format.
func IsPhoneValid(phone string) bool {
	// We expect phone numbers to be supplied with valid country
	// codes. Due to this, we leave country ISO values blank.
	countryISO := ""
	meta, err := phonenumbers.Parse(phone, countryISO)
	if err != nil {
		return false
	}

	return phonenumbers.IsValidNumber(meta)
}

// IsEmailValid checks if an email string is a valid format.
func IsEmailValid(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// Validator returns a destination validator for a delivery channel.
func Validator(channel Channel) func(s string) bool {
	if channel == SMS {
		return IsPhoneValid
	}

	if channel == Email {
		return IsEmailValid
	}

	return func(s string) bool {
		return false
	}
}
