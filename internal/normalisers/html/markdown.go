package html

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Pre-compiled expressions used when tidying converter output.
var (
	whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	innerBlanks   = regexp.MustCompile(`\n{2,}`)
	listMarker    = regexp.MustCompile(`^(- |\d+\. )`)
)

// ToMarkdown converts an HTML fragment into markdown.
// Empty input yields an empty string. Input without markup is returned
// trimmed. If the parser rejects the input the raw string is returned.
func ToMarkdown(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	c := &converter{}
	return tidy(c.node(root))
}

type converter struct {
	inPre     bool
	listDepth int
}

func (c *converter) children(n *html.Node) string {
	var sb strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		sb.WriteString(c.node(ch))
	}
	return sb.String()
}

func (c *converter) node(n *html.Node) string {
	switch n.Type {
	case html.DocumentNode:
		return c.children(n)
	case html.TextNode:
		if c.inPre {
			return n.Data
		}
		return whitespaceRun.ReplaceAllString(n.Data, " ")
	case html.ElementNode:
		return c.element(n)
	default:
		return ""
	}
}

func (c *converter) element(n *html.Node) string {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Iframe:
		return ""
	case atom.Br:
		return "\n"
	case atom.Hr:
		return block("---")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := strings.TrimSpace(innerBlanks.ReplaceAllString(c.children(n), " "))
		if text == "" {
			return ""
		}
		return block(strings.Repeat("#", level) + " " + text)
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
		atom.Main, atom.Aside, atom.Figure, atom.Table, atom.Thead, atom.Tbody, atom.Form:
		return block(c.children(n))
	case atom.Tr:
		return c.row(n)
	case atom.Strong, atom.B:
		return wrap("**", c.children(n))
	case atom.Em, atom.I:
		return wrap("_", c.children(n))
	case atom.Del, atom.S, atom.Strike:
		return wrap("~~", c.children(n))
	case atom.Code:
		if c.inPre {
			return c.children(n)
		}
		return wrap("`", c.children(n))
	case atom.Pre:
		c.inPre = true
		text := c.children(n)
		c.inPre = false
		return block("```\n" + strings.Trim(text, "\n") + "\n```")
	case atom.Blockquote:
		return c.quote(n)
	case atom.Ul:
		return c.list(n, false)
	case atom.Ol:
		return c.list(n, true)
	case atom.Li:
		// Stray list item without a list parent.
		return block("- " + strings.TrimSpace(c.children(n)))
	case atom.A:
		return c.link(n)
	case atom.Img:
		return image(n)
	default:
		return c.children(n)
	}
}

func (c *converter) link(n *html.Node) string {
	text := strings.TrimSpace(c.children(n))
	href := attr(n, "href")
	switch {
	case href == "":
		return text
	case text == "":
		return href
	case text == href:
		return "<" + href + ">"
	default:
		return fmt.Sprintf("[%s](%s)", text, href)
	}
}

func image(n *html.Node) string {
	src := attr(n, "src")
	if src == "" {
		return ""
	}
	return fmt.Sprintf("![%s](%s)", attr(n, "alt"), src)
}

func (c *converter) list(n *html.Node, ordered bool) string {
	c.listDepth++
	defer func() { c.listDepth-- }()

	indent := strings.Repeat("  ", c.listDepth-1)
	var items []string
	index := 1
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		body := strings.TrimSpace(innerBlanks.ReplaceAllString(c.children(li), "\n"))
		items = append(items, indent+marker+body)
	}
	if len(items) == 0 {
		return ""
	}

	out := strings.Join(items, "\n")
	if c.listDepth > 1 {
		return "\n" + out + "\n"
	}
	return block(out)
}

func (c *converter) quote(n *html.Node) string {
	inner := tidy(c.children(n))
	if inner == "" {
		return ""
	}
	lines := strings.Split(inner, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + line
	}
	return block(strings.Join(lines, "\n"))
}

func (c *converter) row(n *html.Node) string {
	var cells []string
	for cell := n.FirstChild; cell != nil; cell = cell.NextSibling {
		if cell.Type != html.ElementNode {
			continue
		}
		if cell.DataAtom == atom.Td || cell.DataAtom == atom.Th {
			cells = append(cells, strings.TrimSpace(innerBlanks.ReplaceAllString(c.children(cell), " ")))
		}
	}
	if len(cells) == 0 {
		return ""
	}
	return strings.Join(cells, " | ") + "\n"
}

// block surrounds s with blank lines, or drops it when it is empty.
func block(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "\n\n" + s + "\n\n"
}

// wrap puts marker around the non-space part of s, keeping the outer
// whitespace so adjacent words stay separated.
func wrap(marker, s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	lead := s[:len(s)-len(strings.TrimLeft(s, " \n"))]
	trail := s[len(strings.TrimRight(s, " \n")):]
	return lead + marker + trimmed + marker + trail
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// tidy strips stray indentation outside code fences, removes trailing
// spaces and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	fenced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = !fenced
			lines[i] = strings.TrimSpace(line)
			continue
		}
		if fenced {
			lines[i] = strings.TrimRight(line, " \t")
			continue
		}
		trimmed := strings.TrimSpace(line)
		if listMarker.MatchString(trimmed) {
			lines[i] = strings.TrimRight(line, " \t")
			continue
		}
		lines[i] = trimmed
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
