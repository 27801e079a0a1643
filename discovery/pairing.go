package discovery

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PairingScheme prefixes the URI a phone scans to connect.
const PairingScheme = "airsync://"

// PairingURI encodes identity for the phone's scanner. The phone app expects
// both parameters introduced by '?', so the query is not standard form.
func PairingURI(identity Identity, plus bool) (string, error) {
	if strings.TrimSpace(identity.IPAddress) == "" {
		return "", ErrNoLocalAddress
	}
	if identity.Port <= 0 {
		return "", ErrInvalidPort
	}
	return fmt.Sprintf("%s%s:%d?name=%s?plus=%s",
		PairingScheme,
		identity.IPAddress,
		identity.Port,
		url.QueryEscape(identity.Name),
		strconv.FormatBool(plus),
	), nil
}

// PairingQR renders uri for terminals. Pass a path to also write a PNG.
func PairingQR(uri, pngPath string) (string, error) {
	code, err := qrcode.New(uri, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode pairing code: %w", err)
	}
	if pngPath != "" {
		if err := code.WriteFile(256, pngPath); err != nil {
			return "", fmt.Errorf("write pairing code: %w", err)
		}
	}
	return code.ToSmallString(false), nil
}
