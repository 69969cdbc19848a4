package browser

import (
	"runtime"
	"strings"

	"github.com/chromedp/cdproto/emulation"
)

// userAgentOverride builds a UA override whose client hints agree with the
// UA string, so pages that read navigator.userAgentData see the same browser.
// Returns nil when no user agent is configured.
func userAgentOverride(userAgent, chromeVersion string) *emulation.SetUserAgentOverrideParams {
	if userAgent == "" {
		return nil
	}

	major := chromeVersion
	if i := strings.Index(chromeVersion, "."); i > 0 {
		major = chromeVersion[:i]
	}
	h := hostPlatform()

	return emulation.SetUserAgentOverride(userAgent).
		WithAcceptLanguage("en-US,en").
		WithPlatform(h.navigator).
		WithUserAgentMetadata(&emulation.UserAgentMetadata{
			Platform:        h.name,
			PlatformVersion: h.version,
			Architecture:    h.arch,
			Bitness:         "64",
			Brands: []*emulation.UserAgentBrandVersion{
				{Brand: "Not(A:Brand", Version: "99"},
				{Brand: "Google Chrome", Version: major},
				{Brand: "Chromium", Version: major},
			},
			FullVersionList: []*emulation.UserAgentBrandVersion{
				{Brand: "Not(A:Brand", Version: "99.0.0.0"},
				{Brand: "Google Chrome", Version: chromeVersion},
				{Brand: "Chromium", Version: chromeVersion},
			},
		})
}

type platform struct {
	navigator string
	name      string
	version   string
	arch      string
}

func hostPlatform() platform {
	arch := "x86"
	if runtime.GOARCH == "arm64" {
		arch = "arm"
	}
	switch runtime.GOOS {
	case "darwin":
		return platform{navigator: "MacIntel", name: "macOS", version: "14.0.0", arch: arch}
	case "windows":
		return platform{navigator: "Win32", name: "Windows", version: "15.0.0", arch: arch}
	default:
		return platform{navigator: "Linux x86_64", name: "Linux", version: "6.5.0", arch: arch}
	}
}
