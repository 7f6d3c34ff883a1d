package translation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitter_PrefersNaturalBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		size int
		text string
		want []string
	}{
		{"single chars", 1, "ABCDE", []string{"A", "B", "C", "D", "E"}},
		{"fits", 10, "short", []string{"short"}},
		{"paragraph", 5, "aaa\n\nbbb", []string{"aaa\n\n", "bbb"}},
		{"line", 6, "abc\ndef\nghi", []string{"abc\n", "def\n", "ghi"}},
		{"sentence", 13, "Hello world. Bye now.", []string{"Hello world. ", "Bye now."}},
		{"cjk sentence", 3, "你好。再见。", []string{"你好。", "再见。"}},
		{"word", 6, "alpha beta gamma", []string{"alpha ", "beta ", "gamma"}},
		{"hard split", 4, "abcdefghij", []string{"abcd", "efgh", "ij"}},
		{"merges small pieces", 8, "a. b. c. d.", []string{"a. b. ", "c. d."}},
		{"invalid utf-8 kept", 2, "abc\xffdef\xfeghi", []string{"ab", "c\xff", "de", "f\xfe", "gh", "i"}},
		{"hard split runes", 2, "中文汉字x", []string{"中文", "汉字", "x"}},
	}
	for _, tc := range cases {
		got := NewSplitter(tc.size).Split(tc.text)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestSplitter_JoinRestoresText(t *testing.T) {
	t.Parallel()

	texts := []string{
		strings.Repeat("第一段的内容很长。还有第二句！", 20) + "\n\n" + strings.Repeat("word ", 300),
		strings.Repeat("x", 3001),
		"line one\nline two\n\n\nline three? yes! ok. " + strings.Repeat("长", 50),
		strings.Repeat("bad\xff\xfe bytes 中\xe4 ", 40),
	}
	for _, size := range []int{1, 7, 50, 1500} {
		s := NewSplitter(size)
		for _, text := range texts {
			chunks := s.Split(text)
			if got := strings.Join(chunks, ""); got != text {
				t.Fatalf("size %d: Join(Split()) does not restore text", size)
			}
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c); n > size || n == 0 {
					t.Fatalf("size %d: chunk %d has %d runes", size, i, n)
				}
			}
		}
	}
}

func TestSplitter_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSplitter(0)
	assert.Equal(t, DefaultChunkSize, s.Size())
	assert.Nil(t, s.Split(""))
}
