package tools

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// normalizeURL turns a spoken address into an absolute URL.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", raw)
	}
	return u.String(), nil
}

// ExecOpener shells out to the platform's URL handler.
type ExecOpener struct{}

// Open launches the default browser for the URL.
func (ExecOpener) Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}

// knownApps maps spoken app names to a launch scheme and the vendor site
// used as a fallback when the scheme launch fails.
var knownApps = map[string]struct{ scheme, site string }{
	"spotify":   {"spotify:", "https://open.spotify.com"},
	"youtube":   {"youtube:", "https://www.youtube.com"},
	"whatsapp":  {"whatsapp:", "https://web.whatsapp.com"},
	"telegram":  {"tg:", "https://web.telegram.org"},
	"gmail":     {"googlegmail:", "https://mail.google.com"},
	"maps":      {"geo:", "https://maps.google.com"},
	"instagram": {"instagram:", "https://www.instagram.com"},
}

// ExecLauncher starts apps via their URL scheme through the platform opener.
type ExecLauncher struct {
	Opener URLOpener
}

// Supported reports native launch capability for this platform.
func (l ExecLauncher) Supported() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	}
	return false
}

// Launch attempts a scheme launch and falls back to the vendor's website.
func (l ExecLauncher) Launch(app string) error {
	key := strings.ToLower(strings.TrimSpace(app))
	entry, known := knownApps[key]
	opener := l.Opener
	if opener == nil {
		opener = ExecOpener{}
	}
	if known {
		if err := opener.Open(entry.scheme); err == nil {
			return nil
		}
		return opener.Open(entry.site)
	}
	// Unknown app: best effort via the vendor's likely site.
	return opener.Open("https://www." + strings.ReplaceAll(key, " ", "") + ".com")
}
