package filler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// captchaIframeHosts are the widget origins the major captcha providers
// embed from.
var captchaIframeHosts = []string{
	"google.com/recaptcha",
	"recaptcha.net",
	"hcaptcha.com",
	"challenges.cloudflare.com",
}

// captchaContainerSelectors match the mount points the provider scripts
// render into.
var captchaContainerSelectors = []string{
	".g-recaptcha",
	".h-captcha",
	".cf-turnstile",
	"#recaptcha",
	"[data-sitekey]",
}

// DetectCaptcha reports whether the document carries a visible captcha
// widget. It is advisory only; the caller surfaces it so a human can solve
// the challenge before submitting.
func DetectCaptcha(doc *html.Node) bool {
	if doc == nil {
		return false
	}
	q := goquery.NewDocumentFromNode(doc)

	found := false
	q.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		src = strings.ToLower(src)
		for _, host := range captchaIframeHosts {
			if strings.Contains(src, host) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}

	for _, sel := range captchaContainerSelectors {
		if q.Find(sel).Length() > 0 {
			return true
		}
	}

	return q.Find("script[src*='recaptcha'], script[src*='hcaptcha'], script[src*='turnstile']").Length() > 0
}
