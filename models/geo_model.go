package models

// Location is a GeoJSON point, coordinates [longitude, latitude], annotated
// for display on a tour page.
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty"`
}

func (l *Location) prepare() {
	if l.Type == "" {
		l.Type = "Point"
	}
}

func (l Location) valid() bool {
	if l.Type != "Point" {
		return false
	}
	if len(l.Coordinates) == 0 {
		return true
	}
	if len(l.Coordinates) != 2 {
		return false
	}
	lng, lat := l.Coordinates[0], l.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
