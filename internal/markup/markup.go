// Package markup turns raw LLM output (markdown with stray HTML) into the
// small HTML subset Telegram accepts.
package markup

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AllowedTags is the transport's formatting allow-list. Spoilers use
// Telegram's <span class="tg-spoiler"> form.
var AllowedTags = []string{"b", "i", "u", "s", "a", "code", "pre", "blockquote", "span"}

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	policy = newPolicy()

	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "u", "s", "code", "pre", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto", "tg")
	p.RequireParseableURLs(true)
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#-]+$`)).OnElements("code")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
	return p
}

// ToTelegramHTML renders markdown and rewrites every tag into the allow-list.
// Unknown tags are unwrapped; their text survives.
func ToTelegramHTML(raw string) string {
	raw = strings.ToValidUTF8(raw, "\uFFFD")
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var rendered bytes.Buffer
	if err := md.Convert([]byte(raw), &rendered); err != nil {
		// goldmark only fails on writer errors; fall back to escaped text
		return policy.Sanitize(html.EscapeString(raw))
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(&rendered, body)
	if err != nil {
		return policy.Sanitize(html.EscapeString(raw))
	}

	w := &writer{}
	for _, n := range nodes {
		w.node(n)
	}

	out := manyNewlines.ReplaceAllString(w.String(), "\n\n")
	return strings.TrimSpace(policy.Sanitize(out))
}

type writer struct {
	strings.Builder
	lists []int // item counters, -1 for bullets
	inPre bool
}

func (w *writer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title:
		return
	case atom.B, atom.Strong:
		w.wrap("b", n)
	case atom.I, atom.Em, atom.Cite, atom.Var:
		w.wrap("i", n)
	case atom.U, atom.Ins:
		w.wrap("u", n)
	case atom.S, atom.Strike, atom.Del:
		w.wrap("s", n)
	case atom.Blockquote:
		w.wrap("blockquote", n)
		w.WriteString("\n")
	case atom.Code:
		class := attr(n, "class")
		if w.inPre && strings.HasPrefix(class, "language-") {
			w.WriteString(`<code class="` + html.EscapeString(class) + `">`)
			w.children(n)
			w.WriteString("</code>")
			return
		}
		w.wrap("code", n)
	case atom.Pre:
		w.inPre = true
		w.wrap("pre", n)
		w.inPre = false
		w.WriteString("\n\n")
	case atom.A:
		href := attr(n, "href")
		if href == "" {
			w.children(n)
			return
		}
		w.WriteString(`<a href="` + html.EscapeString(href) + `">`)
		w.children(n)
		w.WriteString("</a>")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.wrap("b", n)
		w.WriteString("\n\n")
	case atom.P, atom.Div:
		w.children(n)
		w.WriteString("\n\n")
	case atom.Br:
		// goldmark emits "<br>\n" for hard breaks
		if next := n.NextSibling; next == nil || next.Type != html.TextNode || !strings.HasPrefix(next.Data, "\n") {
			w.WriteString("\n")
		}
	case atom.Hr:
		w.WriteString("\n")
	case atom.Ul:
		w.list(n, -1)
	case atom.Ol:
		start := 1
		if s, err := strconv.Atoi(attr(n, "start")); err == nil {
			start = s
		}
		w.list(n, start)
	case atom.Li:
		w.item(n)
	case atom.Img:
		w.WriteString(html.EscapeString(attr(n, "alt")))
	case atom.Tr:
		w.children(n)
		w.WriteString("\n")
	case atom.Td, atom.Th:
		w.children(n)
		w.WriteString(" ")
	default:
		if n.Data == "tg-spoiler" || (n.DataAtom == atom.Span && attr(n, "class") == "tg-spoiler") {
			w.WriteString(`<span class="tg-spoiler">`)
			w.children(n)
			w.WriteString("</span>")
			return
		}
		w.children(n)
	}
}

func (w *writer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *writer) wrap(tag string, n *html.Node) {
	w.WriteString("<" + tag + ">")
	w.children(n)
	w.WriteString("</" + tag + ">")
}

func (w *writer) list(n *html.Node, counter int) {
	if s := w.String(); s != "" && !strings.HasSuffix(s, "\n") {
		w.WriteString("\n")
	}
	w.lists = append(w.lists, counter)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		w.node(c)
	}
	w.lists = w.lists[:len(w.lists)-1]
	w.WriteString("\n")
}

func (w *writer) item(n *html.Node) {
	depth := len(w.lists)
	if depth > 1 {
		w.WriteString(strings.Repeat("  ", depth-1))
	}
	if depth == 0 || w.lists[depth-1] < 0 {
		w.WriteString("• ")
	} else {
		w.WriteString(strconv.Itoa(w.lists[depth-1]) + ". ")
		w.lists[depth-1]++
	}

	var inner writer
	inner.lists = w.lists
	inner.inPre = w.inPre
	inner.children(n)
	w.WriteString(strings.TrimRight(inner.String(), "\n"))
	w.WriteString("\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
