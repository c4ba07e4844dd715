// Package annotate segments chat text into plain and linkable spans.
//
// The widget renders assistant replies line by line; URLs, email
// addresses and US-style phone numbers become links. Matching priority
// is URL, then email, then phone; on overlap the earliest-starting
// match wins and later overlapping matches are discarded.
package annotate

import (
	"regexp"
	"sort"
	"strings"
)

// Kind 标识一个片段的类型。
type Kind string

const (
	KindPlain Kind = "plain"
	KindURL   Kind = "url"
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// Segment 是一段按原文切分出来的文本。
// 非链接片段 Href 为空；所有片段按原文顺序拼接等于输入。
type Segment struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
	Href string `json:"href,omitempty"`
}

var (
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\d{3}[-.]?\d{3}[-.]?\d{4}`)

	phoneSepRe = regexp.MustCompile(`[-.]`)
)

type match struct {
	start, end int
	kind       Kind
	priority   int
}

// Annotate 将一行文本切分为 plain/link 片段序列。
// 纯函数：相同输入恒产生相同切分。
func Annotate(line string) []Segment {
	var matches []match
	for i, mk := range []struct {
		re   *regexp.Regexp
		kind Kind
	}{
		{urlRe, KindURL},
		{emailRe, KindEmail},
		{phoneRe, KindPhone},
	} {
		for _, loc := range mk.re.FindAllStringIndex(line, -1) {
			matches = append(matches, match{start: loc[0], end: loc[1], kind: mk.kind, priority: i})
		}
	}

	// 起始位置优先，起始相同时按 URL > email > phone
	sort.Slice(matches, func(a, b int) bool {
		if matches[a].start != matches[b].start {
			return matches[a].start < matches[b].start
		}
		return matches[a].priority < matches[b].priority
	})

	// 丢弃与已接受片段重叠的后续匹配
	var kept []match
	for _, m := range matches {
		if len(kept) == 0 || m.start >= kept[len(kept)-1].end {
			kept = append(kept, m)
		}
	}

	var segs []Segment
	last := 0
	for _, m := range kept {
		if m.start > last {
			segs = append(segs, Segment{Text: line[last:m.start], Kind: KindPlain})
		}
		text := line[m.start:m.end]
		segs = append(segs, Segment{Text: text, Kind: m.kind, Href: hrefFor(m.kind, text)})
		last = m.end
	}
	if last < len(line) {
		segs = append(segs, Segment{Text: line[last:], Kind: KindPlain})
	}
	return segs
}

func hrefFor(kind Kind, text string) string {
	switch kind {
	case KindURL:
		return text
	case KindEmail:
		return "mailto:" + text
	case KindPhone:
		return "tel:" + phoneSepRe.ReplaceAllString(text, "")
	}
	return ""
}

// Join 将片段序列还原为原始文本，主要用于测试校验。
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}
