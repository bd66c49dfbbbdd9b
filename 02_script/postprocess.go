package script

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// allowedNonASCII survives normalisation so Turkish names keep their letters.
const allowedNonASCII = "çğıöşüÇĞİÖŞÜ"

var (
	titleLine      = regexp.MustCompile(`(?im)^[ \t]*title[ \t]*:.*$`)
	sectionLabel   = regexp.MustCompile(`(?im)^[ \t]*(?:hook|intro|introduction|storytelling|story|tension|personal voice|rhythm|climax|conclusion|outro|call to action|cta|narrator|host|voiceover|body|scene \d+|part \d+)[ \t]*:[ \t]*`)
	capsLabel      = regexp.MustCompile(`(?m)^[ \t]*[A-Z][A-Z ]{2,30}:[ \t]*`)
	bracketed      = regexp.MustCompile(`\[[^\]\n]*\]`)
	stageDirection = regexp.MustCompile(`(?i)\((?:pause|beat|music|intro music|outro music|soft music|sfx|sound|dramatic|upbeat|laughs|sighs)[^)\n]*\)`)
	multiSpace     = regexp.MustCompile(`[ \t]{2,}`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

var punctuation = strings.NewReplacer(
	"\u2013", "-", // en dash
	"\u2014", "--", // em dash
	"\u2018", "'", "\u2019", "'",
	"\u201c", `"`, "\u201d", `"`,
	"\u2026", "...",
	"\u00a0", " ",
	"\t", " ",
	"\r", "",
)

// PostProcess turns raw model output into speakable narration: markdown and
// section labels are stripped, blank lines collapsed, punctuation reduced to
// ASCII plus allowedNonASCII, and cta appended when missing.
func PostProcess(raw, cta string) string {
	s := stripMarkdown([]byte(raw))
	s = normalize(s)
	s = titleLine.ReplaceAllString(s, "")
	s = sectionLabel.ReplaceAllString(s, "")
	s = capsLabel.ReplaceAllString(s, "")
	s = bracketed.ReplaceAllString(s, "")
	s = stageDirection.ReplaceAllString(s, "")
	s = collapse(s)

	cta = cleanCTA(cta)
	if cta != "" && !strings.Contains(strings.ToLower(s), strings.ToLower(cta)) {
		if s == "" {
			return cta
		}
		s += "\n\n" + cta
	}
	return s
}

func cleanCTA(cta string) string {
	return collapse(normalize(cta))
}

// stripMarkdown renders the markdown AST back to plain text, one paragraph
// per block.
func stripMarkdown(src []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(src))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func normalize(s string) string {
	s = punctuation.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || (r >= 0x20 && r < 0x7f):
			b.WriteRune(r)
		case strings.ContainsRune(allowedNonASCII, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Fit truncates text to budget characters. The body is cut at a word
// boundary and the call-to-action tail is kept.
func Fit(s, cta string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	tail := ""
	if cta != "" {
		tail = "\n\n" + cta
	}
	room := budget - utf8.RuneCountInString(tail)
	if room <= 0 {
		return truncateRunes(cta, budget)
	}

	body := strings.TrimSpace(s)
	if cta != "" {
		body = strings.TrimSpace(strings.TrimSuffix(body, cta))
	}
	return truncateAtWord(body, room) + tail
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func truncateAtWord(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := []rune(s)[:n]
	if i := lastSpace(cut); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(string(cut), " \n,;:-")
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' || rs[i] == '\n' {
			return i
		}
	}
	return -1
}
