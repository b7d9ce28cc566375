// Package useragent classifies visitors by device, browser and OS using uap-go.
package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

const unknown = "unknown"

// Parser wraps uap-go with coarse device type detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo is the parsed view of a User-Agent string.
type DeviceInfo struct {
	DeviceType string // mobile, desktop, tablet, bot, unknown
	Browser    string
	OS         string
}

// NewParser loads regexes from regexFilePath. When the file is absent the
// definitions compiled into uap-go are used instead.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if regexFilePath == "" {
		log.Info("User-Agent parser using built-in regexes")
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}

	regexBytes, err := os.ReadFile(regexFilePath)
	if os.IsNotExist(err) {
		log.Warn("regexes file not found, using built-in regexes", zap.String("regexes_file", regexFilePath))
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file: %w", err)
	}

	parser, err := uaparser.NewFromBytes(regexBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))
	return &Parser{parser: parser, log: log}, nil
}

// Parse classifies userAgent. An empty string yields "unknown" everywhere.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{DeviceType: unknown, Browser: unknown, OS: unknown}
	}

	client := p.parser.Parse(userAgent)
	info := DeviceInfo{
		DeviceType: deviceType(client, userAgent),
		Browser:    family(client.UserAgent.Family),
		OS:         family(client.Os.Family),
	}

	p.log.Debug("parsed User-Agent",
		zap.String("device_type", info.DeviceType),
		zap.String("browser", info.Browser),
		zap.String("os", info.OS),
	)
	return info
}

var (
	botMarkers = []string{
		"Googlebot", "Bingbot", "Slurp", "DuckDuckBot", "Baiduspider",
		"YandexBot", "facebookexternalhit", "Twitterbot", "LinkedInBot",
		"WhatsApp", "TelegramBot", "SkypeUriPreview", "bot", "crawler", "spider",
	}
	tabletDevices = []string{"iPad", "Tablet", "Kindle"}
	mobileDevices = []string{"iPhone", "Android", "BlackBerry", "Windows Phone", "Mobile", "Phone"}
	mobileOS      = []string{"iOS", "Android", "Windows Phone", "BlackBerry OS", "Firefox OS", "Sailfish OS"}
	desktopOS     = []string{"Windows", "Mac OS X", "macOS", "Linux", "Ubuntu", "Chrome OS", "FreeBSD", "OpenBSD"}
)

func deviceType(client *uaparser.Client, userAgent string) string {
	if client.Device.Family == "Spider" || containsAny(client.UserAgent.Family, botMarkers) || containsAny(userAgent, botMarkers) {
		return "bot"
	}

	if d := client.Device.Family; d != "" && d != "Other" {
		switch {
		case containsAny(d, tabletDevices):
			return "tablet"
		case containsAny(d, mobileDevices):
			return "mobile"
		}
	}

	osFamily := client.Os.Family
	switch {
	case containsAny(osFamily, mobileOS):
		// iPadOS reports iOS; Android tablets omit "Mobile"
		if strings.Contains(userAgent, "iPad") ||
			(strings.Contains(osFamily, "Android") && !strings.Contains(userAgent, "Mobile")) {
			return "tablet"
		}
		return "mobile"
	case containsAny(osFamily, desktopOS):
		return "desktop"
	}
	return unknown
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func family(s string) string {
	if s == "" || s == "Other" {
		return unknown
	}
	return s
}
