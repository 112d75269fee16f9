package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Sample Shop </title><style>.x{}</style></head>
<body>
  <div>
    <button id="foo">Buy now</button>
    <button aria-label="Submit">   Send
        it </button>
  </div>
  <div>
    <p>First paragraph</p>
    <a href="/one">One</a>
    <a href="/two">Two</a>
    <span role="button" title="Help">?</span>
  </div>
  <form>
    <input name="q" placeholder="Search">
    <input type="hidden" value="secret">
    <input disabled name="off">
  </form>
  <div style="display: none"><button>Invisible</button></div>
  <div hidden><a href="/gone">Gone</a></div>
  <section aria-hidden="true"><button>Decorative</button></section>
  <div contenteditable="true">Editable</div>
  <script>var ignored = true;</script>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestXPath(t *testing.T) {
	doc, err := Parse(samplePage)
	require.NoError(t, err)

	tests := []struct {
		name     string
		selector string
		expected string
	}{
		{name: "id wins", selector: "#foo", expected: `//*[@id="foo"]`},
		{name: "aria label", selector: `button[aria-label]`, expected: `//button[@aria-label="Submit"]`},
		{name: "name before placeholder", selector: `input[name="q"]`, expected: `//input[@name="q"]`},
		{name: "role before title", selector: `span`, expected: `//span[@role="button"]`},
		{name: "structural with sibling index", selector: `a[href="/two"]`, expected: `/html/body/div[2]/a[2]`},
		{name: "structural single child", selector: `p`, expected: `/html/body/div[2]/p`},
		{name: "structural form", selector: `form`, expected: `/html/body/form`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := doc.Find(tt.selector).First()
			require.Equal(t, 1, sel.Length())
			assert.Equal(t, tt.expected, XPath(sel.Get(0)))
		})
	}
}

func TestXPathSkipsEmptyAttributes(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected string
	}{
		{name: "empty name", markup: `<input name="" placeholder="Search">`, expected: `//input[@placeholder="Search"]`},
		{name: "empty type", markup: `<input type="" title="Email">`, expected: `//input[@title="Email"]`},
		{name: "empty id", markup: `<input id="" name="q">`, expected: `//input[@name="q"]`},
		{name: "all empty", markup: `<input name="" value="">`, expected: `/html/body/input`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(`<html><body>` + tt.markup + `</body></html>`)
			require.NoError(t, err)
			sel := doc.Find("input")
			require.Equal(t, 1, sel.Length())
			assert.Equal(t, tt.expected, XPath(sel.Get(0)))
		})
	}
}

func TestXPathResolvesToSameNode(t *testing.T) {
	doc, err := Parse(samplePage)
	require.NoError(t, err)

	for _, el := range InteractiveElements(doc) {
		n, err := Find(doc, el.XPath)
		require.NoError(t, err, el.XPath)
		require.NotNil(t, n, el.XPath)
		assert.Equal(t, el.Tag, n.Data)
		assert.Equal(t, el.XPath, XPath(n))
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, quote("plain"))
	assert.Equal(t, `'say "hi"'`, quote(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "x", '"')`, quote(`it's "x"`))
}

func TestInteractiveElements(t *testing.T) {
	doc, err := Parse(samplePage)
	require.NoError(t, err)

	elements := InteractiveElements(doc)

	var tags, texts []string
	for _, el := range elements {
		tags = append(tags, el.Tag)
		texts = append(texts, el.Text)
	}
	assert.Equal(t, []string{"button", "button", "a", "a", "span", "form", "input", "div"}, tags)
	assert.Equal(t, "Send\n        it", texts[1], "text is trimmed, not collapsed")
	assert.NotContains(t, texts, "Invisible")
	assert.NotContains(t, texts, "Gone")
	assert.NotContains(t, texts, "Decorative")
}

func TestInteractiveElementsTruncatesText(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	doc, err := Parse(`<html><body><button>` + long + `</button></body></html>`)
	require.NoError(t, err)

	elements := InteractiveElements(doc)
	require.Len(t, elements, 1)
	assert.Len(t, []rune(elements[0].Text), MaxElementText)
	assert.Equal(t, strings.Repeat("word ", 20), elements[0].Text)
}

func TestHiddenByStyle(t *testing.T) {
	tests := []struct {
		style  string
		hidden bool
	}{
		{"display:none", true},
		{"color: red; DISPLAY : None", true},
		{"visibility: hidden !important", true},
		{"display: block", false},
		{"visibility: visible", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.hidden, hiddenByStyle(tt.style), tt.style)
	}
}

func TestContent(t *testing.T) {
	doc, err := Parse(samplePage)
	require.NoError(t, err)

	text, err := Content(doc, FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph")
	assert.Contains(t, text, "Buy now")
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "Enable JavaScript")
	assert.NotContains(t, text, "\n\n")

	markdown, err := Content(doc, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, markdown, "[One](/one)")
	assert.NotContains(t, markdown, "ignored")

	_, err = Content(doc, Format("pdf"))
	assert.Error(t, err)

	// the source document keeps its scripts
	assert.Equal(t, 1, doc.Find("script").Length())
	assert.Equal(t, "Sample Shop", Title(doc))
}

func TestFind(t *testing.T) {
	doc, err := Parse(samplePage)
	require.NoError(t, err)

	n, err := Find(doc, `//*[@id="foo"]`)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "button", n.Data)

	n, err = Find(doc, `//*[@id="missing"]`)
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = Find(doc, `//*[`)
	assert.Error(t, err)

	input, err := Find(doc, `//input[@name="q"]`)
	require.NoError(t, err)
	form := Closest(input, "form")
	require.NotNil(t, form)
	assert.Equal(t, "/html/body/form", XPath(form))
}
