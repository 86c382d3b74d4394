package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	qrImageSize      = 256
	pixGUI           = "br.gov.bcb.pix"
	maxMerchantName  = 25
	maxMerchantCity  = 15
	maxReferenceSize = 25
	maxFieldSize     = 99
	// the merchant account template must fit in 99 bytes alongside the GUI subfield
	maxPixKey = maxFieldSize - len(pixGUI) - 8
)

var currencyCodes = map[string]string{
	"BRL": "986",
	"USD": "840",
	"EUR": "978",
}

type pixPayload struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	Currency     string
	Reference    string
}

// encode renders a BR Code style TLV string terminated by its CRC16 field.
// The result only looks like a PIX payload; no bank would accept it.
func (p pixPayload) encode() string {
	var b strings.Builder
	b.WriteString(tlv("00", "01"))
	b.WriteString(tlv("01", "12"))
	b.WriteString(tlv("26", tlv("00", pixGUI)+tlv("01", truncate(p.Key, maxPixKey))))
	b.WriteString(tlv("52", "0000"))

	code, ok := currencyCodes[p.Currency]
	if !ok {
		code = currencyCodes["BRL"]
	}
	b.WriteString(tlv("53", code))
	b.WriteString(tlv("54", p.Amount.StringFixed(2)))
	b.WriteString(tlv("58", "BR"))
	b.WriteString(tlv("59", truncate(p.MerchantName, maxMerchantName)))
	b.WriteString(tlv("60", truncate(p.MerchantCity, maxMerchantCity)))
	b.WriteString(tlv("62", tlv("05", truncate(alnum(p.Reference), maxReferenceSize))))

	// the checksum covers its own id and length
	b.WriteString("6304")
	return b.String() + fmt.Sprintf("%04X", crc16(b.String()))
}

// tlv lengths count bytes and are capped at two digits.
func tlv(id, value string) string {
	value = truncate(value, maxFieldSize)
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "***"
	}
	return b.String()
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// qrDataURI renders code as a PNG QR code wrapped in a data URI.
func qrDataURI(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
