package hcaptcha

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var versionPattern = regexp.MustCompile(`/captcha/v1/([a-f0-9]+)/static`)

// ExtractVersion returns the hex release id embedded in the bootstrap script.
func ExtractVersion(body string) (string, error) {
	m := versionPattern.FindStringSubmatch(body)
	if m == nil {
		return "", &StageError{Stage: StageExtract, Kind: KindNotFound, Err: ErrVersionNotFound}
	}
	return m[1], nil
}

// ExtractVersionFromHTML looks for the release id inside an HTML page that
// embeds the widget. Script src attributes are entity-decoded by the parser,
// so paths written as &#x2F;captcha&#x2F;v1... still match.
func ExtractVersionFromHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", &StageError{Stage: StageExtract, Kind: KindParse, Err: err}
	}

	var version string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok {
			if v, err := ExtractVersion(src); err == nil {
				version = v
				return false
			}
		}
		if v, err := ExtractVersion(s.Text()); err == nil {
			version = v
			return false
		}
		return true
	})
	if version == "" {
		return "", &StageError{Stage: StageExtract, Kind: KindNotFound, Err: ErrVersionNotFound}
	}
	return version, nil
}

// looksLikeHTML is a cheap sniff used to decide whether the HTML fallback is
// worth trying.
func looksLikeHTML(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html") || strings.Contains(head, "<script")
}
