package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

func TestEveryLabelHasInfo(t *testing.T) {
	t.Parallel()

	kb := New()
	for _, label := range pestnet.Labels {
		info := kb.PestInfo(label)
		assert.NotEqual(t, "Unknown", info.Severity, label)
		assert.NotEmpty(t, info.Symptoms, label)
	}
	assert.Equal(t, "Caterpillars", kb.PestInfo("caterpillar").Name)
	assert.Equal(t, "Beneficial", kb.PestInfo("earthworms").Severity)
}

func TestPestInfoDefault(t *testing.T) {
	t.Parallel()

	info := New().PestInfo("aphid")
	assert.Equal(t, PestInfo{
		Name:        "aphid",
		Description: "Detailed information not available",
		Symptoms:    []string{"Symptoms not listed"},
		Causes:      "Various factors",
		Severity:    "Unknown",
	}, info)
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	kb := New()
	ants := kb.Recommendations("ants")
	assert.Equal(t, []string{"Diatomaceous earth", "Cinnamon or cayenne pepper barriers", "Vinegar spray"}, ants.OrganicSolutions)
	assert.Contains(t, kb.Recommendations("beetle").Treatment, "Bacillus thuringiensis (Bt)")

	// Pests without specific advice get the generic recommendations.
	slug := kb.Recommendations("slug")
	assert.Equal(t, []string{"Maintain plant health", "Regular monitoring"}, slug.Prevention)
	assert.Equal(t, []string{"Consult with pest management specialist"}, slug.Treatment)
	assert.Equal(t, []string{"Research organic methods for this specific pest"}, slug.OrganicSolutions)
	assert.False(t, kb.HasTreatment("slug"))
	assert.True(t, kb.HasTreatment("beetle"))
}

func TestLookupsReturnCopies(t *testing.T) {
	t.Parallel()

	kb := New()
	info := kb.PestInfo("ants")
	info.Symptoms[0] = "changed"
	rec := kb.Recommendations("ants")
	rec.Prevention[0] = "changed"

	assert.Equal(t, "Presence of ant colonies near plants", kb.PestInfo("ants").Symptoms[0])
	assert.Equal(t, "Maintain clean garden areas", kb.Recommendations("ants").Prevention[0])
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pests:
  slug:
    severity: High
treatments:
  slug:
    prevention:
      - Copper tape barriers
  ants:
    organic_solutions:
      - Mint planting
`), 0o600))

	base := New()
	kb, err := base.LoadOverrides(path)
	require.NoError(t, err)

	slug := kb.PestInfo("slug")
	assert.Equal(t, "High", slug.Severity)
	assert.Equal(t, "Slugs", slug.Name, "unset fields keep built-in values")

	rec := kb.Recommendations("slug")
	assert.Equal(t, []string{"Copper tape barriers"}, rec.Prevention)
	assert.Equal(t, []string{"Consult with pest management specialist"}, rec.Treatment)

	assert.Equal(t, []string{"Mint planting"}, kb.Recommendations("ants").OrganicSolutions)
	assert.Equal(t, "Natural ant baits", kb.Recommendations("ants").Treatment[0])

	// The receiver is left unchanged.
	assert.Equal(t, "Medium to High", base.PestInfo("slug").Severity)
	assert.False(t, base.HasTreatment("slug"))
}

func TestLoadOverridesErrors(t *testing.T) {
	t.Parallel()

	_, err := New().LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pests: [unclosed"), 0o600))
	_, err = New().LoadOverrides(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}
