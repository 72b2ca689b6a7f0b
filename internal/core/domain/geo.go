package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is the axis-aligned extent of a polygon's vertices.
// CenterLat/CenterLng are the midpoint of the bounds, not the vertex centroid.
type BoundingBox struct {
	MinLat    float64 `json:"min_lat"`
	MaxLat    float64 `json:"max_lat"`
	MinLng    float64 `json:"min_lng"`
	MaxLng    float64 `json:"max_lng"`
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
}

// SamplePoint is one lattice location retained inside the ROI.
// IDs are dense from 1 in generation order and are the join key for statistics.
type SamplePoint struct {
	ID  int     `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PointStatistic holds the per-point vegetation index means returned by the
// remote statistics service. Lat/Lng are echoed back and informational only.
type PointStatistic struct {
	ID       int     `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	NDVIMean float64 `json:"ndvi_mean"`
	EVIMean  float64 `json:"evi_mean"`
}

// GridEstimate compares the area-based point estimate with the actual lattice size.
type GridEstimate struct {
	SpacingMeters float64 `json:"spacing_m"`
	AreaHectares  float64 `json:"area_ha"`
	Estimated     int     `json:"estimated"`
	Actual        int     `json:"actual"`
}

// PointMatch is the sample point closest to a map location, with its
// statistics when they have been attached.
type PointMatch struct {
	Point          SamplePoint     `json:"point"`
	DistanceMeters float64         `json:"distance_m"`
	Stat           *PointStatistic `json:"stat,omitempty"`
}
