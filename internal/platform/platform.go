// Package platform names the visitor's platform from a User-Agent header.
package platform

import "strings"

const (
	IOS     = "iOS"
	Android = "Android"
	MacOS   = "macOS"
	Windows = "Windows"
	Linux   = "Linux"
	Web     = "Web"
)

// Detect checks mobile platforms before desktop ones: iPad and Android
// agents also mention "mac" and "linux".
func Detect(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return IOS
	case strings.Contains(ua, "android"):
		return Android
	case strings.Contains(ua, "mac"):
		return MacOS
	case strings.Contains(ua, "win"):
		return Windows
	case strings.Contains(ua, "linux"):
		return Linux
	default:
		return Web
	}
}
