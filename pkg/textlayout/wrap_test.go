package textlayout

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monospace measures every rune as 1 unit, bold runes as 1.25
var monospace = MeasureFunc(func(text string, bold bool) float64 {
	w := float64(utf8.RuneCountInString(text))
	if bold {
		return w * 1.25
	}
	return w
})

func TestWrap_Greedy(t *testing.T) {
	lines := Wrap("the quick brown fox jumps over the lazy dog", 10, monospace)

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text()
	}
	assert.Equal(t, []string{"the quick", "brown fox", "jumps over", "the lazy", "dog"}, texts)
}

func TestWrap_Empty(t *testing.T) {
	assert.Empty(t, Wrap("", 10, monospace))
	assert.Empty(t, Wrap("   \n\t ", 10, monospace))
}

func TestWrap_HardBreaksLongWord(t *testing.T) {
	lines := Wrap("a supercalifragilistic b", 6, monospace)

	var texts []string
	for _, l := range lines {
		assert.LessOrEqual(t, l.Width, 6.0)
		texts = append(texts, l.Text())
	}
	assert.Equal(t, []string{"a", "superc", "alifra", "gilist", "ic b"}, texts)
}

func TestWrapSpans_KeepsStyle(t *testing.T) {
	lines := WrapSpans([]Span{
		{Text: "Plain start "},
		{Text: "bold words", Bold: true},
		{Text: " tail"},
	}, 100, monospace)

	require.Len(t, lines, 1)
	words := lines[0].Words
	require.Len(t, words, 5)
	assert.False(t, words[1].Bold)
	assert.True(t, words[2].Bold)
	assert.True(t, words[3].Bold)
	assert.False(t, words[4].Bold)
	assert.InDelta(t, 5+1+5+1+5+1+6.25+1+4, lines[0].Width, 0.001)
}

func TestWrap_NeverExceedsWidth(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghij KLMNOP  qrstu\tvwxyz")

	for i := 0; i < 500; i++ {
		n := rng.Intn(300)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		width := float64(2 + rng.Intn(40))
		spans := []Span{{Text: sb.String(), Bold: rng.Intn(2) == 0}}

		for _, l := range WrapSpans(spans, width, monospace) {
			assert.LessOrEqual(t, l.Width, width, "line %q exceeds %v", l.Text(), width)
			var sum float64
			for k, w := range l.Words {
				sum += w.Width
				if k > 0 {
					sum += monospace.Measure(" ", false)
				}
			}
			assert.InDelta(t, sum, l.Width, 0.0001)
		}
	}
}

func TestWrap_PreservesWords(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"
	var got []string
	for _, l := range Wrap(text, 12, monospace) {
		got = append(got, l.Text())
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(got, " ")))
}

func TestCursor_Reserve(t *testing.T) {
	pages := 1
	c := NewCursor(10, 100, func() { pages++ })

	assert.False(t, c.Reserve(50))
	c.Advance(50)
	assert.Equal(t, 60.0, c.Y)

	assert.False(t, c.Reserve(40))
	c.Advance(40)

	// 100 + 5 crosses the bottom margin
	assert.True(t, c.Reserve(5))
	assert.Equal(t, 10.0, c.Y)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 1, c.PagesAdded())
}

func TestCursor_OversizedBlockAtTopDoesNotLoop(t *testing.T) {
	pages := 1
	c := NewCursor(0, 10, func() { pages++ })

	assert.False(t, c.Reserve(50))
	assert.Equal(t, 1, pages)
}
