package undistort

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
)

// stubWarper fills the destination canvas with a flat color, standing in for
// a real resampling implementation.
type stubWarper struct{}

func (stubWarper) Warp(src image.Image, srcCam, dstCam *camera.Camera) (image.Image, error) {
	return flatImage(dstCam.Width, dstCam.Height), nil
}

func (stubWarper) WarpWithHomography(
	h *mat.Dense, src image.Image, srcCam, dstCam *camera.Camera,
) (image.Image, error) {
	return flatImage(dstCam.Width, dstCam.Height), nil
}

func flatImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestUndistortImage(t *testing.T) {
	cam := newRadialCamera(t)
	src := flatImage(cam.Width, cam.Height)

	und, undCam, err := UndistortImage(DefaultCameraOptions(), src, cam, stubWarper{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, undCam.Model, test.ShouldEqual, camera.Pinhole)
	test.That(t, und.Bounds().Dx(), test.ShouldEqual, undCam.Width)
	test.That(t, und.Bounds().Dy(), test.ShouldEqual, undCam.Height)
}

func TestUndistortImageDimsMismatch(t *testing.T) {
	cam := newRadialCamera(t)
	src := flatImage(cam.Width/2, cam.Height)
	_, _, err := UndistortImage(DefaultCameraOptions(), src, cam, stubWarper{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRectifyAndUndistortStereoImages(t *testing.T) {
	cam, err := camera.NewCamera(camera.Pinhole, []float64{50, 50, 32, 24}, 64, 48)
	test.That(t, err, test.ShouldBeNil)
	img1 := flatImage(64, 48)
	img2 := flatImage(64, 48)

	rect1, rect2, undCam, q, err := RectifyAndUndistortStereoImages(
		DefaultCameraOptions(), img1, img2, cam, cam,
		quat.Number{Real: 1}, r3.Vector{X: 1}, stubWarper{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, undCam.Model, test.ShouldEqual, camera.Pinhole)
	test.That(t, rect1.Bounds().Dx(), test.ShouldEqual, undCam.Width)
	test.That(t, rect2.Bounds().Dx(), test.ShouldEqual, undCam.Width)
	rows, cols := q.Dims()
	test.That(t, rows, test.ShouldEqual, 4)
	test.That(t, cols, test.ShouldEqual, 4)

	// Mismatched image dimensions abort before any work happens.
	_, _, _, _, err = RectifyAndUndistortStereoImages(
		DefaultCameraOptions(), flatImage(10, 10), img2, cam, cam,
		quat.Number{Real: 1}, r3.Vector{X: 1}, stubWarper{})
	test.That(t, err, test.ShouldNotBeNil)
}
