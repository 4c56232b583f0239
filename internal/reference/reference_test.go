package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSections_Medical(t *testing.T) {
	sections, err := Sections(Medical)
	require.NoError(t, err)

	var titles []string
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		"Medical reference information",
		"Officially recognised causes",
		"Warning signs recognised by dermatologists",
		"Official diagnosis",
		"Recognised treatments",
		"Prevention (official recommendations)",
	}, titles)

	abcde := sections[2]
	require.GreaterOrEqual(t, len(abcde.Blocks), 6)
	first := abcde.Blocks[1]
	assert.Equal(t, Bullet, first.Kind)
	assert.Equal(t, Span{Text: "A", Bold: true}, first.Spans[0])
	assert.Equal(t, "A: Asymmetry", first.Text())
}

func TestSections_SourcesCarryLinks(t *testing.T) {
	sections, err := Sections(Sources)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	var hrefs []string
	for _, b := range sections[0].Blocks {
		for _, s := range b.Spans {
			if s.Href != "" {
				hrefs = append(hrefs, s.Href)
			}
		}
	}
	assert.Len(t, hrefs, 2)
	assert.Equal(t, "https://www.cdc.gov/skin-cancer/about/index.html", hrefs[1])
	assert.Equal(t, "Disclaimer", sections[1].Title)
}

func TestParse_LeadingParagraph(t *testing.T) {
	sections := Parse([]byte("intro text\n\n# Title\n\nbody"))
	require.Len(t, sections, 2)
	assert.Equal(t, "", sections[0].Title)
	assert.Equal(t, "intro text", sections[0].Blocks[0].Text())
	assert.Equal(t, 1, sections[1].Level)
}

func TestHTML(t *testing.T) {
	out, err := HTML(Sources)
	require.NoError(t, err)
	html := string(out)
	assert.True(t, strings.Contains(html, `target="_blank"`))
	assert.Contains(t, html, "<strong>CDC</strong>")

	_, err = HTML("missing")
	assert.Error(t, err)
}
