package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ImageURL picks the entry image: the first media:content that is an
// image, then the first media:thumbnail. Both are also looked up inside
// media:group. Returns "" when the entry has neither.
func ImageURL(it *gofeed.Item) string {
	if it == nil {
		return ""
	}
	media := it.Extensions["media"]
	if len(media) == 0 {
		return ""
	}
	groups := media["group"]

	if u := firstContentImage(media["content"]); u != "" {
		return u
	}
	for _, g := range groups {
		if u := firstContentImage(g.Children["content"]); u != "" {
			return u
		}
	}
	if u := firstURL(media["thumbnail"]); u != "" {
		return u
	}
	for _, g := range groups {
		if u := firstURL(g.Children["thumbnail"]); u != "" {
			return u
		}
	}
	return ""
}

func firstContentImage(list []ext.Extension) string {
	for _, c := range list {
		u := strings.TrimSpace(c.Attrs["url"])
		if u == "" {
			continue
		}
		typ := strings.ToLower(c.Attrs["type"])
		medium := strings.ToLower(c.Attrs["medium"])
		if medium == "image" || strings.HasPrefix(typ, "image/") {
			return u
		}
		if typ == "" && medium == "" && looksLikeImage(u) {
			return u
		}
	}
	return ""
}

func firstURL(list []ext.Extension) string {
	for _, c := range list {
		if u := strings.TrimSpace(c.Attrs["url"]); u != "" {
			return u
		}
	}
	return ""
}

func looksLikeImage(u string) bool {
	p := strings.ToLower(u)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, sfx := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(p, sfx) {
			return true
		}
	}
	return false
}
