package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"rentroll/pkg/textextract"
)

func TestSelectTextPrioritizesTablePages(t *testing.T) {
	pages := []textextract.Page{
		{Number: 1, Text: "cover letter", TableLike: false, KeywordHits: 0},
		{Number: 2, Text: "unit table", TableLike: true, KeywordHits: 4},
		{Number: 3, Text: "lease summary", TableLike: false, KeywordHits: 2},
	}
	out := SelectText(pages, 0)
	idxTable := strings.Index(out, "unit table")
	idxSummary := strings.Index(out, "lease summary")
	idxCover := strings.Index(out, "cover letter")
	assert.True(t, idxTable < idxSummary, "table page first")
	assert.True(t, idxSummary < idxCover, "keyword page before prose")
}

func TestSelectTextHonorsBudget(t *testing.T) {
	pages := []textextract.Page{
		{Number: 1, Text: strings.Repeat("a", 100), TableLike: true},
		{Number: 2, Text: strings.Repeat("b", 100), TableLike: true},
	}
	out := SelectText(pages, 150)
	assert.LessOrEqual(t, len(out), 152) // budget plus separator
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, strings.Repeat("b", 100), "second page truncated")
}

func TestSelectTextSkipsEmptyPages(t *testing.T) {
	pages := []textextract.Page{
		{Number: 1, Text: "   "},
		{Number: 2, Text: "content"},
	}
	assert.Equal(t, "content", SelectText(pages, 0))
}
