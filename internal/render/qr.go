package render

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 512

// QR encodes text into a PNG QR code.
func QR(text string) ([]byte, error) {
	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
