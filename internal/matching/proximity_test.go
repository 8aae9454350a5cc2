package matching_test

import (
	"meetinclick/backend/internal/matching"
	"meetinclick/backend/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	kyivCentre = models.Location{Latitude: 50.4501, Longitude: 30.5234}
	kyivPodil  = models.Location{Latitude: 50.4650, Longitude: 30.5170}
	lviv       = models.Location{Latitude: 49.8397, Longitude: 24.0297}
)

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, matching.DistanceKm(kyivCentre, kyivCentre), 1e-9)
	assert.InDelta(t, 1.7, matching.DistanceKm(kyivCentre, kyivPodil), 0.2)
	assert.InDelta(t, 469, matching.DistanceKm(kyivCentre, lviv), 5)
	assert.InDelta(t, matching.DistanceKm(lviv, kyivCentre), matching.DistanceKm(kyivCentre, lviv), 1e-9)
}

func TestWithinRadius(t *testing.T) {
	within, known := matching.WithinRadius(&kyivCentre, &kyivPodil, 10)
	assert.True(t, known)
	assert.True(t, within)

	within, known = matching.WithinRadius(&kyivCentre, &lviv, 10)
	assert.True(t, known)
	assert.False(t, within)

	_, known = matching.WithinRadius(&kyivCentre, nil, 10)
	assert.False(t, known)
}

func located(id string, loc *models.Location) models.User {
	u := newUser(id, models.CategoryConversation, "Music")
	u.SetLocation(loc)
	return u
}

func TestProximityFilter_Policies(t *testing.T) {
	viewer := located("u", &kyivCentre)
	near := located("near", &kyivPodil)
	far := located("far", &lviv)
	unknown := located("unknown", nil)
	all := []models.User{near, far, unknown}

	tests := []struct {
		name   string
		filter matching.ProximityFilter
		want   []string
	}{
		{"disabled", matching.ProximityFilter{Enabled: false, RadiusKm: 10}, []string{"near", "far", "unknown"}},
		{"skip unknown", matching.ProximityFilter{Enabled: true, RadiusKm: 10, Unknown: matching.UnknownSkip}, []string{"near", "unknown"}},
		{"exclude unknown", matching.ProximityFilter{Enabled: true, RadiusKm: 10, Unknown: matching.UnknownExclude}, []string{"near"}},
		{"wide radius", matching.ProximityFilter{Enabled: true, RadiusKm: 500, Unknown: matching.UnknownExclude}, []string{"near", "far"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(&viewer, all)))
		})
	}
}

func TestProximityFilter_ViewerWithoutLocation(t *testing.T) {
	viewer := located("u", nil)
	near := located("near", &kyivPodil)

	skip := matching.ProximityFilter{Enabled: true, RadiusKm: 10, Unknown: matching.UnknownSkip}
	exclude := matching.ProximityFilter{Enabled: true, RadiusKm: 10, Unknown: matching.UnknownExclude}

	assert.True(t, skip.Allow(&viewer, &near))
	assert.False(t, exclude.Allow(&viewer, &near))
}
