package audience

import (
	"strings"
	"testing"

	"github.com/audiencer/audiencer/internal/criteria"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleRendersBooleanExpression(t *testing.T) {
	s := Structure{
		Fields: criteria.Fields{Gender: "Women", Geolocation: "France", Age: "All"},
		Themes: []Theme{
			{Name: "Theme 1 – Sports cars", Sections: []Section{
				{Name: criteria.SectionBroad, Interests: []Interest{
					{Name: "Ferrari", ID: "1", Score: 1},
					{Name: "Lamborghini", ID: "2", Score: 0.9},
				}},
				{Name: "NarrowFurther1", Interests: []Interest{
					{Name: "Car collecting", ID: "3", Score: 0.8},
				}},
			}},
			{Name: "Theme 2 – Luxury", Sections: []Section{
				{Name: criteria.SectionBroad, Interests: []Interest{
					{Name: "Luxury goods", ID: "4", Score: 0.9},
				}},
			}},
		},
	}

	a := Assemble(s)
	require.NotNil(t, a)

	lines := strings.Split(a.Text, "\n")
	assert.Equal(t, "INCLUDE people who match ALL of the following criteria:", lines[0])
	assert.Equal(t, "Gender: Women | Geolocation: France | Age: All", lines[2])
	assert.Contains(t, a.Text, "Theme 1 – Sports cars :")
	assert.Contains(t, a.Text, `  - TargetingClusters : "Ferrari" OR "Lamborghini"`)
	assert.Contains(t, a.Text, `  - NarrowFurther1 : "Car collecting"`)
	assert.Contains(t, a.Text, "Theme 2 – Luxury :")

	assert.Equal(t, s.Themes, a.Structure.Themes)
}

func TestAssembleEmptyAudience(t *testing.T) {
	a := Assemble(Structure{Fields: criteria.AllFields()})

	assert.Equal(t, EmptyAudienceText, a.Text)
	require.NotNil(t, a.Structure.Themes)
	assert.Empty(t, a.Structure.Themes)
}
