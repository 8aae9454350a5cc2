package matching

import (
	"math"
	"meetinclick/backend/internal/models"
)

const earthRadiusKm = 6371.0

// UnknownPolicy decides what happens when a location is missing.
type UnknownPolicy string

const (
	UnknownSkip    UnknownPolicy = "skip"
	UnknownExclude UnknownPolicy = "exclude"
)

// DistanceKm is the haversine great-circle distance between a and b.
func DistanceKm(a, b models.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether a and b are at most radiusKm apart. known is
// false when either location is absent, and within is then meaningless.
func WithinRadius(a, b *models.Location, radiusKm float64) (within, known bool) {
	if a == nil || b == nil {
		return false, false
	}
	return DistanceKm(*a, *b) <= radiusKm, true
}

// ProximityFilter restricts candidates to a radius around the viewer.
type ProximityFilter struct {
	Enabled  bool
	RadiusKm float64
	Unknown  UnknownPolicy
}

// Allow reports whether v passes the distance check relative to u.
func (f ProximityFilter) Allow(u, v *models.User) bool {
	if !f.Enabled {
		return true
	}
	within, known := WithinRadius(u.Location(), v.Location(), f.RadiusKm)
	if !known {
		return f.Unknown != UnknownExclude
	}
	return within
}

// Apply keeps the users allowed for u, in order.
func (f ProximityFilter) Apply(u *models.User, users []models.User) []models.User {
	if !f.Enabled {
		return users
	}
	out := make([]models.User, 0, len(users))
	for i := range users {
		if f.Allow(u, &users[i]) {
			out = append(out, users[i])
		}
	}
	return out
}
