// Package control recognises the in-band markers a job can print to drive
// the monitor display.
package control

import "strings"

// Marker prefixes recognised at the start of a log line.
const (
	PrefixStart    = "__START__"
	PrefixStop     = "__STOP__"
	PrefixSplit    = "__SPLIT__"
	PrefixMarkdown = "__MARKDOWN__"
)

// Kind is the type of a Directive.
type Kind int

const (
	// Plain is ordinary log text.
	Plain Kind = iota
	// BannerStart shows a busy indicator with a label.
	BannerStart
	// BannerStop clears the busy indicator.
	BannerStop
	// SectionBreak is a heading between parts of the log.
	SectionBreak
	// RichBlock is a markdown body.
	RichBlock
)

var kindNames = map[Kind]string{
	Plain:        "plain",
	BannerStart:  "banner_start",
	BannerStop:   "banner_stop",
	SectionBreak: "section_break",
	RichBlock:    "rich_block",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Directive is one classified log line. Text holds the label, title, body
// or plain text depending on Kind, and is empty for BannerStop.
type Directive struct {
	Kind Kind
	Text string
}

// Classify maps a raw log line to a Directive. The first matching prefix
// wins; anything unrecognised is Plain.
func Classify(line string) Directive {
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(line, PrefixStart):
		return Directive{Kind: BannerStart, Text: strings.TrimPrefix(line, PrefixStart)}
	case strings.HasPrefix(line, PrefixStop):
		return Directive{Kind: BannerStop}
	case strings.HasPrefix(line, PrefixSplit):
		return Directive{Kind: SectionBreak, Text: strings.TrimSpace(strings.TrimPrefix(line, PrefixSplit))}
	case strings.HasPrefix(line, PrefixMarkdown):
		return Directive{Kind: RichBlock, Text: Unescape(strings.TrimPrefix(line, PrefixMarkdown))}
	default:
		return Directive{Kind: Plain, Text: line}
	}
}

// Unescape expands \n, \t and \\ in a single-line markdown body. Other
// backslash sequences are kept as written.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(c)
			continue
		}
		i++
	}
	return b.String()
}
