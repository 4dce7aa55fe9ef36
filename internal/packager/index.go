package packager

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/url"
	"regexp"
	"strings"
	"testing/fstest"

	"github.com/tomster/embuild/internal/tree"
)

var contentForRE = regexp.MustCompile(`\{\{\s*content-for\s+['"]([^'"]+)['"]\s*\}\}`)

// processHTML copies src to dest, replacing {{rootURL}} and the
// {{content-for "..."}} blocks. A missing src yields an empty tree.
func (p *Packager) processHTML(full fs.FS, src, dest string) (fs.FS, error) {
	return tree.Lazy(func() (fs.FS, error) {
		bs, err := fs.ReadFile(full, src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return tree.Empty(), nil
			}
			return nil, fmt.Errorf("process %s: %w", src, err)
		}

		head, err := p.configMeta()
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", src, err)
		}

		out := contentForRE.ReplaceAllStringFunc(string(bs), func(m string) string {
			if contentForRE.FindStringSubmatch(m)[1] == "head" {
				return head
			}
			return ""
		})
		out = strings.ReplaceAll(out, "{{rootURL}}", p.rootURL())

		return fstest.MapFS{dest: &fstest.MapFile{Data: []byte(out), Mode: 0o644}}, nil
	}), nil
}

func (p *Packager) rootURL() string {
	if s, ok := p.appConfig()["rootURL"].(string); ok {
		return s
	}
	return "/"
}

// configMeta is the meta tag carrying the application configuration, when
// it is stored in the page.
func (p *Packager) configMeta() (string, error) {
	if !p.opts.StoreConfigInMeta {
		return "", nil
	}

	bs, err := json.Marshal(p.appConfig())
	if err != nil {
		return "", err
	}

	prefix := p.opts.Name
	if s, ok := p.appConfig()["modulePrefix"].(string); ok && s != "" {
		prefix = s
	}

	return fmt.Sprintf(`<meta name="%s/config/environment" content="%s" />`,
		html.EscapeString(prefix), encodeURIComponent(string(bs))), nil
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
