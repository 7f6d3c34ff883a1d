package translation

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize 默认分块大小（字符数）
const DefaultChunkSize = 1500

// defaultSeparators 按优先级排列：段落、行、句子、词
var defaultSeparators = [][]string{
	{"\n\n"},
	{"\n"},
	{"。", "！", "？", ". ", "! ", "? "},
	{" "},
}

// Splitter 递归按边界切分文本，无重叠。
// 分隔符保留在前一块末尾，strings.Join(chunks, "") 与原文一致。
type Splitter struct {
	size       int
	separators [][]string
}

func NewSplitter(size int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Splitter{size: size, separators: defaultSeparators}
}

// Size 分块大小
func (s *Splitter) Size() int {
	return s.size
}

// Split 切分文本，空文本返回 nil
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, 0)
}

func (s *Splitter) split(text string, level int) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}
	if level >= len(s.separators) {
		return hardSplit(text, s.size)
	}

	pieces := splitAfter(text, s.separators[level])
	if len(pieces) <= 1 {
		return s.split(text, level+1)
	}

	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if n > s.size {
			flush()
			out = append(out, s.split(p, level+1)...)
			continue
		}
		if curLen+n > s.size {
			flush()
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return out
}

// splitAfter 在每个分隔符之后切开，分隔符留在前一段
func splitAfter(text string, seps []string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(text); {
		matched := 0
		for _, sep := range seps {
			if strings.HasPrefix(text[i:], sep) {
				matched = len(sep)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		i += matched
		pieces = append(pieces, text[start:i])
		start = i
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

// hardSplit 按字符数切分，按字节偏移截取，非法 UTF-8 字节原样保留
func hardSplit(text string, size int) []string {
	var out []string
	start, count := 0, 0
	for i := 0; i < len(text); {
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
		count++
		if count == size {
			out = append(out, text[start:i])
			start, count = i, 0
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
