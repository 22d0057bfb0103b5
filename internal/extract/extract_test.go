package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>  Widgets Inc  </title>
<meta charset="utf-8">
<meta property="og:url" content="https://social.example.org/widgets">
<meta name="description" content="We sell widgets">
<link rel="stylesheet" href="/css/main.css">
<link rel="icon" href="https://example.com/favicon.ico">
<script src="/js/app.js"></script>
<script>console.log("inline")</script>
</head>
<body>
<img src="/img/logo.png">
<img src="/img/logo.png" alt="dup">
<img srcset="/img/hero-small.png 480w, /img/hero-large.png 1080w">
<img src="">
<a href="/about">About</a>
<a href="https://example.com/about">About again</a>
<a href="https://other.example.net/partner">Partner</a>
<a href="/files/report.pdf">Report</a>
<a href="mailto:sales@example.com">Mail</a>
<a href="javascript:void(0)">Noop</a>
</body>
</html>`

func mustParse(t *testing.T) *Page {
	t.Helper()
	page, err := Parse(samplePage, "https://example.com/")
	require.NoError(t, err)
	return page
}

func TestPage_Title(t *testing.T) {
	t.Parallel()

	title, ok := mustParse(t).Title()
	require.True(t, ok)
	assert.Equal(t, "Widgets Inc", title)
}

func TestPage_Title_Missing(t *testing.T) {
	t.Parallel()

	page, err := Parse("<html><body>no title</body></html>", "https://example.com/")
	require.NoError(t, err)
	_, ok := page.Title()
	assert.False(t, ok)
}

func TestPage_ImageSources(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"https://example.com/img/logo.png",
		"https://example.com/img/hero-small.png",
		"https://example.com/img/hero-large.png",
	}, mustParse(t).ImageSources())
}

func TestPage_MetaContents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"https://social.example.org/widgets",
		"We sell widgets",
	}, mustParse(t).MetaContents())
}

func TestPage_StylesheetLinks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"https://example.com/css/main.css",
		"https://example.com/favicon.ico",
	}, mustParse(t).StylesheetLinks())
}

func TestPage_ScriptSources(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"https://example.com/js/app.js"}, mustParse(t).ScriptSources())
}

func TestPage_AnchorLinks(t *testing.T) {
	t.Parallel()

	// mailto: and javascript: links are dropped, duplicates collapse after
	// resolution against the base URL.
	assert.Equal(t, []string{
		"https://example.com/about",
		"https://other.example.net/partner",
		"https://example.com/files/report.pdf",
	}, mustParse(t).AnchorLinks())
}

func TestParse_BadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := Parse("<html></html>", "http://exa mple.com/%zz")
	require.Error(t, err)
}
