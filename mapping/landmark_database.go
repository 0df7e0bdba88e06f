package mapping

import (
	"sort"

	"go.viam.com/lar/spatial"
)

// LandmarkDatabase owns every landmark of a map and indexes them by ground plane position.
// A landmark's ID is its index, assigned on insertion and never reused.
type LandmarkDatabase struct {
	landmarks []*Landmark
	rtree     *spatial.RegionTree[int]
}

// NewLandmarkDatabase returns an empty database.
func NewLandmarkDatabase() *LandmarkDatabase {
	return &LandmarkDatabase{rtree: spatial.NewRegionTree[int]()}
}

// Len returns the number of landmarks.
func (db *LandmarkDatabase) Len() int {
	return len(db.landmarks)
}

// At returns the landmark with the given id, or nil if there is none.
func (db *LandmarkDatabase) At(id int) *Landmark {
	if id < 0 || id >= len(db.landmarks) {
		return nil
	}
	return db.landmarks[id]
}

// All returns every landmark ordered by id. The slice is shared; do not append to it.
func (db *LandmarkDatabase) All() []*Landmark {
	return db.landmarks
}

// Insert appends the landmarks, assigning sequential ids, and indexes each at its ground plane
// position.
func (db *LandmarkDatabase) Insert(landmarks []*Landmark) {
	for _, l := range landmarks {
		l.ID = len(db.landmarks)
		db.landmarks = append(db.landmarks, l)
		db.rtree.Insert(l.ID, spatial.NewPointRegion(groundPlane(l.Position)), l.ID)
	}
}

// Find returns the landmarks indexed inside query, ordered by id.
func (db *LandmarkDatabase) Find(query spatial.Region) []*Landmark {
	ids := db.rtree.Find(query)
	sort.Ints(ids)
	out := make([]*Landmark, len(ids))
	for i, id := range ids {
		out[i] = db.landmarks[id]
	}
	return out
}

// Usable returns the landmarks with at least threshold sightings, ordered by id.
func (db *LandmarkDatabase) Usable(threshold int) []*Landmark {
	var out []*Landmark
	for _, l := range db.landmarks {
		if l.IsUsableAt(threshold) {
			out = append(out, l)
		}
	}
	return out
}

// Index exposes the spatial index for diagnostics.
func (db *LandmarkDatabase) Index() *spatial.RegionTree[int] {
	return db.rtree
}
