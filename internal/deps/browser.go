package deps

// browserCandidates are the Chrome builds looked up on PATH when no binary is
// configured, in the order chromedp's allocator tries them.
var browserCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
}

// ResolveBrowser returns the browser executable for configured, or the first
// known Chrome build on PATH. The empty string means none was found.
func ResolveBrowser(configured string) string {
	return CheckBrowser(configured).Path
}

// CheckBrowser reports the browser used for page navigation.
func CheckBrowser(configured string) Status {
	return lookup(Requirement{
		Name:        "Browser",
		Command:     configured,
		Description: "Required to resolve broadcast pages",
	}, browserCandidates...)
}
