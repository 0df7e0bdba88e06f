package mapping

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/lar/spatial"
)

func TestLandmarkDatabase(t *testing.T) {
	db := NewLandmarkDatabase()
	test.That(t, db.Find(spatial.NewRegion(r2.Point{}, 1000, 1000)), test.ShouldBeEmpty)

	db.Insert([]*Landmark{
		NewLandmark(r3.Vector{X: 1, Y: 50, Z: 1}, nil, 99),
		NewLandmark(r3.Vector{X: 30, Y: 0, Z: 0}, nil, 99),
	})
	db.Insert([]*Landmark{NewLandmark(r3.Vector{X: -1, Y: -50, Z: -1}, nil, 99)})

	test.That(t, db.Len(), test.ShouldEqual, 3)
	test.That(t, db.Index().Len(), test.ShouldEqual, 3)
	for i, l := range db.All() {
		test.That(t, l.ID, test.ShouldEqual, i)
		test.That(t, db.At(i), test.ShouldEqual, l)
	}
	test.That(t, db.At(3), test.ShouldBeNil)
	test.That(t, db.At(-1), test.ShouldBeNil)

	// height does not matter, only the ground plane (x, z)
	near := db.Find(spatial.NewRegion(r2.Point{}, 4, 4))
	test.That(t, len(near), test.ShouldEqual, 2)
	test.That(t, near[0].ID, test.ShouldEqual, 0)
	test.That(t, near[1].ID, test.ShouldEqual, 2)

	far := db.Find(spatial.NewRegion(r2.Point{X: 30}, 1, 1))
	test.That(t, len(far), test.ShouldEqual, 1)
	test.That(t, far[0].ID, test.ShouldEqual, 1)

	for i := 0; i < 3; i++ {
		db.At(1).RecordObservation(Observation{FrameID: i})
	}
	usable := db.Usable(UsableThreshold)
	test.That(t, len(usable), test.ShouldEqual, 1)
	test.That(t, usable[0].ID, test.ShouldEqual, 1)
}

func TestMap(t *testing.T) {
	m := NewMap()
	test.That(t, m.Landmarks, test.ShouldNotBeNil)
	test.That(t, m.Landmarks.Len(), test.ShouldEqual, 0)
}
