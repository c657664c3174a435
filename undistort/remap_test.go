package undistort

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/reconstruction"
)

func TestUndistortReconstruction(t *testing.T) {
	distortedCam := newRadialCamera(t)

	rec := reconstruction.New()
	rec.AddCamera(1, distortedCam.Clone())
	rec.AddImage(1, &reconstruction.Image{
		Name:     "a.png",
		CameraID: 1,
		Qvec:     quat.Number{Real: 1},
		Points2D: []reconstruction.Point2D{
			{XY: r2.Point{X: 100, Y: 120}, Point3DID: 5},
			{XY: r2.Point{X: 500, Y: 400}, Point3DID: reconstruction.InvalidPoint3DID},
		},
	})
	rec.AddPoint3D(5, &reconstruction.Point3D{
		XYZ:   r3.Vector{X: 1, Y: 1, Z: 10},
		Track: []reconstruction.TrackElement{{ImageID: 1, Point2DIdx: 0}},
	})

	opts := DefaultCameraOptions()
	err := UndistortReconstruction(opts, rec)
	test.That(t, err, test.ShouldBeNil)

	undistortedCam := rec.Cameras[1]
	test.That(t, undistortedCam.Model, test.ShouldEqual, camera.Pinhole)

	// Every observation is reprojected through the new camera.
	for i, orig := range []r2.Point{{X: 100, Y: 120}, {X: 500, Y: 400}} {
		want := undistortedCam.WorldToImage(distortedCam.ImageToWorld(orig))
		got := rec.Images[1].Points2D[i].XY
		test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-9)
		test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-9)
	}

	// 3D points and track structure are untouched.
	test.That(t, rec.Points3D[5].XYZ, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 10})
	test.That(t, rec.Images[1].Points2D[0].Point3DID, test.ShouldEqual, reconstruction.Point3DID(5))
	test.That(t, rec.Validate(), test.ShouldBeNil)
}

func TestUndistortReconstructionInvalidCamera(t *testing.T) {
	rec := reconstruction.New()
	rec.AddCamera(1, &camera.Camera{
		Model: camera.SimpleRadial, Params: []float64{500, 320}, Width: 640, Height: 480,
	})

	err := UndistortReconstruction(DefaultCameraOptions(), rec)
	test.That(t, err, test.ShouldNotBeNil)
}
