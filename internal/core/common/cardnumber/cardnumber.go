// Package cardnumber validates primary account numbers and classifies them by brand.
package cardnumber

import (
	"strings"
	"unicode"
)

type Brand string

const (
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandElo        Brand = "elo"
	BrandUnknown    Brand = "unknown"
)

const maskGlyphs = "••••••••••"

// eloBINs is checked before the Visa/Mastercard prefixes because several Elo ranges start with 4 or 5.
var eloBINs = []string{
	"401178", "401179", "431274", "438935", "451416", "457393", "457631", "457632",
	"504175", "506699", "5067", "509", "627780", "636297", "636368",
	"650", "6516", "6550",
}

// Normalize strips spaces and dashes. Any other non-digit is kept so Valid rejects it.
func Normalize(pan string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(pan))
}

// Valid reports whether pan is 12-19 digits and passes the Luhn checksum.
func Valid(pan string) bool {
	pan = Normalize(pan)
	if len(pan) < 12 || len(pan) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(pan) - 1; i >= 0; i-- {
		r := rune(pan[i])
		if !unicode.IsDigit(r) {
			return false
		}
		d := int(r - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func Classify(pan string) Brand {
	pan = Normalize(pan)
	if pan == "" {
		return BrandUnknown
	}

	for _, bin := range eloBINs {
		if strings.HasPrefix(pan, bin) {
			return BrandElo
		}
	}

	if strings.HasPrefix(pan, "34") || strings.HasPrefix(pan, "37") {
		return BrandAmex
	}

	if len(pan) >= 2 {
		two := pan[:2]
		if two >= "51" && two <= "55" {
			return BrandMastercard
		}
		if two >= "22" && two <= "27" {
			return BrandMastercard
		}
	}

	if pan[0] == '4' {
		return BrandVisa
	}

	return BrandUnknown
}

func LastFour(pan string) string {
	pan = Normalize(pan)
	if len(pan) <= 4 {
		return pan
	}
	return pan[len(pan)-4:]
}

// Mask renders a PAN for display, keeping only the last four digits.
func Mask(pan string) string {
	return maskGlyphs + LastFour(pan)
}
