package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotate_PhoneAndEmail(t *testing.T) {
	segs := Annotate("call 555-123-4567 or a@b.com")

	require.Len(t, segs, 4)
	assert.Equal(t, Segment{Text: "call ", Kind: KindPlain}, segs[0])
	assert.Equal(t, Segment{Text: "555-123-4567", Kind: KindPhone, Href: "tel:5551234567"}, segs[1])
	assert.Equal(t, Segment{Text: " or ", Kind: KindPlain}, segs[2])
	assert.Equal(t, Segment{Text: "a@b.com", Kind: KindEmail, Href: "mailto:a@b.com"}, segs[3])
}

func TestAnnotate_URL(t *testing.T) {
	segs := Annotate("track it at https://t.17track.net/en#nums=123 anytime")

	require.Len(t, segs, 3)
	assert.Equal(t, KindPlain, segs[0].Kind)
	assert.Equal(t, KindURL, segs[1].Kind)
	assert.Equal(t, "https://t.17track.net/en#nums=123", segs[1].Href)
	assert.Equal(t, " anytime", segs[2].Text)
}

func TestAnnotate_URLWinsOverOverlappingEmail(t *testing.T) {
	// URL 内嵌邮箱形态的片段不应再被切出 email 链接
	segs := Annotate("see https://example.com/u/a@b.com now")

	require.Len(t, segs, 3)
	assert.Equal(t, KindURL, segs[1].Kind)
	for _, s := range segs {
		assert.NotEqual(t, KindEmail, s.Kind)
	}
}

func TestAnnotate_NoOverlappingSpans(t *testing.T) {
	inputs := []string{
		"call 555-123-4567 or a@b.com",
		"mail admin@organicskincare.com or 516.322.9380",
		"https://www.ups.com/track?tracknum=1Z999 and ups@ups.com",
		"nothing to link here",
		"",
	}
	for _, in := range inputs {
		segs := Annotate(in)
		assert.Equal(t, in, Join(segs), "input %q must round-trip exactly", in)
		for i := 1; i < len(segs); i++ {
			if segs[i-1].Kind == KindPlain {
				assert.NotEqual(t, KindPlain, segs[i].Kind, "adjacent plain segments in %q", in)
			}
		}
	}
}

func TestAnnotate_Deterministic(t *testing.T) {
	in := "call 555-123-4567 or visit https://example.com or a@b.com"
	first := Annotate(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Annotate(in))
	}
}

func TestAnnotate_PhoneVariants(t *testing.T) {
	cases := map[string]string{
		"5551234567":   "tel:5551234567",
		"555.123.4567": "tel:5551234567",
		"555-123-4567": "tel:5551234567",
	}
	for in, href := range cases {
		segs := Annotate(in)
		require.Len(t, segs, 1)
		assert.Equal(t, KindPhone, segs[0].Kind)
		assert.Equal(t, href, segs[0].Href)
	}
}
