// Package share builds conversation deep links and renders them as QR codes.
package share

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Link returns the web deep link that opens the conversation with peer.
func Link(baseURL, peer string) (string, error) {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return "", fmt.Errorf("peer is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", baseURL)
	}
	return u.JoinPath("messages", peer).String(), nil
}

// RenderText converts content to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func RenderText(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("generate qr: %w", err)
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}

// WritePNG writes content as a PNG QR code of size pixels to path.
func WritePNG(content, path string, size int) error {
	if size <= 0 {
		size = 256
	}
	if err := qrcode.WriteFile(content, qrcode.Medium, size, path); err != nil {
		return fmt.Errorf("write qr png: %w", err)
	}
	return nil
}
