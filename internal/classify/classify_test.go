package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodocs/harvest-cli/internal/config"
)

func newDefault(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(nil, nil)
	require.NoError(t, err)
	return c
}

func TestClassify_UserManualAnchor(t *testing.T) {
	c := newDefault(t)

	category, ok := c.Classify("User Manual")

	require.True(t, ok)
	assert.Equal(t, "manual", category)
}

func TestClassify_CaseInsensitiveSubstring(t *testing.T) {
	c := newDefault(t)

	category, ok := c.Classify("Download the OWNER'S MANUAL here")
	require.True(t, ok)
	assert.Equal(t, "manual", category)

	category, ok = c.Classify("product data sheet (PDF)")
	require.True(t, ok)
	assert.Equal(t, "specification", category)

	category, ok = c.Classify("Mounting and assembly")
	require.True(t, ok)
	assert.Equal(t, "installation", category)
}

func TestClassify_NoMatch(t *testing.T) {
	c := newDefault(t)

	_, ok := c.Classify("Contact our sales team")

	assert.False(t, ok)
}

func TestClassify_DeclarationOrderBreaksTies(t *testing.T) {
	// "installation guide" matches both manual ("guide") and installation
	// patterns; manual is declared first and must win.
	c := newDefault(t)

	category, ok := c.Classify("Installation Guide")

	require.True(t, ok)
	assert.Equal(t, "manual", category)
}

func TestClassify_IsPure(t *testing.T) {
	c := newDefault(t)

	first, okFirst := c.Classify("quick start guide")
	for range 50 {
		got, ok := c.Classify("quick start guide")
		assert.Equal(t, first, got)
		assert.Equal(t, okFirst, ok)
	}
}

func TestClassify_CustomRules(t *testing.T) {
	c, err := New([]config.CategoryRule{
		{Name: "warranty", Patterns: []string{`warranty`, `guarantee`}},
		{Name: "manual", Patterns: []string{`manual`}},
	}, nil)
	require.NoError(t, err)

	category, ok := c.Classify("Limited Warranty Manual")
	require.True(t, ok)
	assert.Equal(t, "warranty", category, "first declared category wins")

	assert.Equal(t, []string{"warranty", "manual"}, c.Categories())
}

func TestClassify_BadPattern(t *testing.T) {
	_, err := New([]config.CategoryRule{
		{Name: "broken", Patterns: []string{`[unclosed`}},
	}, nil)

	assert.Error(t, err)
}

func TestAllowedURL(t *testing.T) {
	c := newDefault(t)

	assert.True(t, c.AllowedURL("https://a.example/docs/manual.pdf"))
	assert.True(t, c.AllowedURL("https://a.example/docs/MANUAL.PDF"))
	assert.True(t, c.AllowedURL("https://a.example/file.docx?v=2"))
	assert.False(t, c.AllowedURL("https://a.example/archive.zip"))
	assert.False(t, c.AllowedURL("https://a.example/page.html"))
	assert.False(t, c.AllowedURL("https://a.example/manual"))
	assert.False(t, c.AllowedURL("://bad url"))
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "user's_manual_v2", CleanFilename(`User's   Manual <v2>`))
	assert.Equal(t, "ab", CleanFilename(`a/\:*?"<>|b`))
	assert.Equal(t, "spec_sheet", CleanFilename("  Spec Sheet  "))
}

func TestStoredFilename_StableAndDistinct(t *testing.T) {
	a := StoredFilename("User Manual", "https://a.example/docs/m1.pdf")
	b := StoredFilename("User Manual", "https://a.example/docs/m2.pdf")

	assert.Equal(t, a, StoredFilename("User Manual", "https://a.example/docs/m1.pdf"))
	assert.NotEqual(t, a, b, "same title, different URL must not collide")
	assert.Contains(t, a, "user_manual_")
	assert.Contains(t, a, ".pdf")
}

func TestStoredFilename_EmptyTitleAndExtension(t *testing.T) {
	name := StoredFilename("", "https://a.example/download?id=7")

	assert.Contains(t, name, "document_")
	assert.Contains(t, name, ".pdf")
}

func TestImageFilename(t *testing.T) {
	assert.Contains(t, ImageFilename("https://a.example/pic.png"), ".png")
	assert.Contains(t, ImageFilename("https://a.example/pic"), ".jpg")

	a := ImageFilename("https://a.example/1.png")
	assert.Equal(t, a, ImageFilename("https://a.example/1.png"))
}

func TestSiteHash_PerHost(t *testing.T) {
	a := SiteHash("https://a.example/page1")
	b := SiteHash("https://a.example/page2")
	c := SiteHash("https://b.example/page1")

	assert.Equal(t, a, b, "same host hashes identically")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 8)
}
