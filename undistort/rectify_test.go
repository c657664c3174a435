package undistort

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/spatialmath"
)

func newStereoPinhole(t *testing.T, params []float64) *camera.Camera {
	t.Helper()
	cam, err := camera.NewCamera(camera.Pinhole, params, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	return cam
}

func TestRectifyStereoCamerasIdentity(t *testing.T) {
	cam := newStereoPinhole(t, []float64{500, 500, 320, 240})

	// No relative rotation and a baseline already along x: rectification
	// should not touch either image.
	h1, h2, q, err := RectifyStereoCameras(cam, cam,
		quat.Number{Real: 1}, r3.Vector{X: 1})
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, h1.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
			test.That(t, h2.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}

	test.That(t, q.At(3, 0), test.ShouldAlmostEqual, -240)
	test.That(t, q.At(3, 1), test.ShouldAlmostEqual, -320)
	test.That(t, q.At(3, 2), test.ShouldAlmostEqual, 500)
	test.That(t, q.At(2, 3), test.ShouldAlmostEqual, -1)
	test.That(t, q.At(3, 3), test.ShouldAlmostEqual, 0)
}

// projectHomog applies a 3x3 homography to a pixel and dehomogenizes.
func projectHomog(h *mat.Dense, x, y float64) (float64, float64) {
	v := mat.NewVecDense(3, []float64{x, y, 1})
	var res mat.VecDense
	res.MulVec(h, v)
	return res.AtVec(0) / res.AtVec(2), res.AtVec(1) / res.AtVec(2)
}

func TestRectifyStereoCamerasAlignsRows(t *testing.T) {
	cam1 := newStereoPinhole(t, []float64{500, 500, 320, 240})
	cam2 := newStereoPinhole(t, []float64{480, 480, 300, 230})

	aa := spatialmath.R4AA{Theta: 0.2, RX: 0.3, RY: 1, RZ: 0.1}
	relQvec := aa.ToQuat()
	relTvec := r3.Vector{X: 2, Y: 0.3, Z: -0.1}

	h1, h2, q, err := RectifyStereoCameras(cam1, cam2, relQvec, relTvec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q, test.ShouldNotBeNil)

	rot12 := spatialmath.QuatToRotationMatrix(relQvec)

	// Project 3D points seen by both cameras and verify their rectified
	// pixels land on the same scanline.
	points := []r3.Vector{
		{X: 0.5, Y: 0.4, Z: 5},
		{X: -1, Y: 0.2, Z: 8},
		{X: 2, Y: -1.5, Z: 12},
	}
	for _, pt := range points {
		x1 := pt
		x2 := mulMatVec(rot12, pt).Add(relTvec)

		p1x := cam1.FocalLengthX()*x1.X/x1.Z + cam1.PrincipalPointX()
		p1y := cam1.FocalLengthY()*x1.Y/x1.Z + cam1.PrincipalPointY()
		p2x := cam2.FocalLengthX()*x2.X/x2.Z + cam2.PrincipalPointX()
		p2y := cam2.FocalLengthY()*x2.Y/x2.Z + cam2.PrincipalPointY()

		_, y1 := projectHomog(h1, p1x, p1y)
		_, y2 := projectHomog(h2, p2x, p2y)
		test.That(t, y1, test.ShouldAlmostEqual, y2, 1e-6)
	}
}

func TestRectifyStereoCamerasZeroDisparityAtInfinity(t *testing.T) {
	cam := newStereoPinhole(t, []float64{500, 500, 320, 240})
	aa := spatialmath.R4AA{Theta: 0.1, RX: 0, RY: 1, RZ: 0}
	_, _, q, err := RectifyStereoCameras(cam, cam, aa.ToQuat(), r3.Vector{X: 1.5, Y: 0.1, Z: 0.05})
	test.That(t, err, test.ShouldBeNil)

	// A rectified pixel with zero disparity maps to a point at infinity:
	// the homogeneous weight of [x, y, 0, 1] * Q vanishes.
	row := mat.NewDense(1, 4, []float64{123, 456, 0, 1})
	var res mat.Dense
	res.Mul(row, q)
	test.That(t, res.At(0, 3), test.ShouldAlmostEqual, 0)

	// With nonzero disparity the weight is finite and nonzero.
	row = mat.NewDense(1, 4, []float64{123, 456, 10, 1})
	res.Reset()
	res.Mul(row, q)
	test.That(t, math.Abs(res.At(0, 3)), test.ShouldBeGreaterThan, 0.0)
}

func TestRectifyStereoCamerasRejectsDistorted(t *testing.T) {
	pin := newStereoPinhole(t, []float64{500, 500, 320, 240})
	rad, err := camera.NewCamera(camera.SimpleRadial, []float64{500, 320, 240, -0.05}, 640, 480)
	test.That(t, err, test.ShouldBeNil)

	_, _, _, err = RectifyStereoCameras(pin, rad, quat.Number{Real: 1}, r3.Vector{X: 1})
	test.That(t, err, test.ShouldNotBeNil)
	_, _, _, err = RectifyStereoCameras(rad, pin, quat.Number{Real: 1}, r3.Vector{X: 1})
	test.That(t, err, test.ShouldNotBeNil)
}
