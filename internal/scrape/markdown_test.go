package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/gap-analysis/internal/model"
)

func TestMarkdownHeadings(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want []model.Heading
	}{
		{
			name: "atx levels",
			md:   "# Title\n\ntext\n\n## Section ##\n\n###### Deep",
			want: []model.Heading{{Level: 1, Text: "Title"}, {Level: 2, Text: "Section"}, {Level: 6, Text: "Deep"}},
		},
		{
			name: "setext",
			md:   "Main Title\n==========\n\nSub\n---\n",
			want: []model.Heading{{Level: 1, Text: "Main Title"}, {Level: 2, Text: "Sub"}},
		},
		{
			name: "horizontal rule after blank line",
			md:   "para\n\n---\n\nmore",
			want: nil,
		},
		{
			name: "code fence skipped",
			md:   "```\n# not a heading\n```\n## Real",
			want: []model.Heading{{Level: 2, Text: "Real"}},
		},
		{
			name: "hashtag is not a heading",
			md:   "#hashtag\n",
			want: nil,
		},
		{
			name: "links and emphasis stripped",
			md:   "## [**Roof** Repair](https://acme.com/roof)",
			want: []model.Heading{{Level: 2, Text: "Roof Repair"}},
		},
		{
			name: "seven hashes is text",
			md:   "####### nope",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarkdownHeadings(tt.md))
		})
	}
}
