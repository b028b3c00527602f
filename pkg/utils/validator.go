package utils

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var roomIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var genders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

const (
	maxNameLength     = 80
	maxLocationLength = 120
	MaxMessageLength  = 1000
)

// ValidateName validates a participant, witness or wali name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return errors.New("name must be at most 80 characters")
	}
	return nil
}

// ValidateGender validates the gender selection
func ValidateGender(gender string) error {
	if strings.TrimSpace(gender) == "" {
		return errors.New("gender is required")
	}
	if !genders[strings.ToLower(strings.TrimSpace(gender))] {
		return errors.New("gender must be male, female or other")
	}
	return nil
}

// ValidateMehr validates the dower amount
func ValidateMehr(mehr *float64) error {
	if mehr == nil {
		return nil
	}
	if math.IsNaN(*mehr) || math.IsInf(*mehr, 0) {
		return errors.New("mehr must be a number")
	}
	if *mehr < 0 {
		return errors.New("mehr must not be negative")
	}
	return nil
}

// ValidateLocation validates the optional ceremony location
func ValidateLocation(location string) error {
	if utf8.RuneCountInString(strings.TrimSpace(location)) > maxLocationLength {
		return errors.New("location must be at most 120 characters")
	}
	return nil
}

// ValidateRoomID validates a room code shared between participants
func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return errors.New("room id is required")
	}
	if !roomIDRegex.MatchString(roomID) {
		return errors.New("room id can only contain letters, numbers, dashes and underscores")
	}
	return nil
}

// ValidateMessage validates trimmed chat text
func ValidateMessage(text string) error {
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return errors.New("message must be at most 1000 characters")
	}
	return nil
}
