package undistort

import (
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/spatialmath"
)

func mulMatVec(m *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// RectifyStereoCameras computes the two homographies that bring a pinhole
// stereo pair with the given relative pose onto a shared rectified canvas
// where corresponding epipolar lines are horizontal scanlines, plus the 4x4
// disparity-to-depth matrix Q satisfying [x, y, disparity, 1] * Q = w * [X, Y, Z, 1].
func RectifyStereoCameras(
	cam1, cam2 *camera.Camera,
	relQvec quat.Number,
	relTvec r3.Vector,
) (h1, h2, q *mat.Dense, err error) {
	if !cam1.IsPinhole() || !cam2.IsPinhole() {
		return nil, nil, nil, errors.Errorf(
			"stereo rectification requires pinhole cameras, got %q and %q", cam1.Model, cam2.Model)
	}

	// Split the relative rotation symmetrically so each camera rotates toward
	// a common mid-orientation.
	halfRotation := spatialmath.QuatToR4AA(spatialmath.NormalizeQuat(relQvec))
	halfRotation.Theta *= -0.5
	rot2 := spatialmath.QuatToRotationMatrix(halfRotation.ToQuat())
	rot1 := mat.DenseCopyOf(rot2.T())

	// Rotate the translation and align it with the x-axis so the baseline
	// becomes horizontal.
	t := mulMatVec(rot2, relTvec)

	xAxis := r3.Vector{X: 1, Y: 0, Z: 0}
	if t.Dot(xAxis) < 0 {
		xAxis = xAxis.Mul(-1)
	}

	// Machine epsilon for float64.
	epsilon := math.Nextafter(1, 2) - 1

	rotationAxis := t.Cross(xAxis)
	var rotX *mat.Dense
	if rotationAxis.Norm() < epsilon {
		// Baseline already aligned or degenerate.
		rotX = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	} else {
		angle := math.Acos(math.Abs(t.Dot(xAxis)) / (t.Norm() * xAxis.Norm()))
		rotX = spatialmath.AxisAngleToRotationMatrix(rotationAxis.Normalize(), angle)
	}

	var rot1Final, rot2Final mat.Dense
	rot1Final.Mul(rotX, rot1)
	rot2Final.Mul(rotX, rot2)
	t = mulMatVec(rotX, t)

	// Shared intrinsic calibration for both rectified images.
	k := mat.NewDense(3, 3, nil)
	k.Set(0, 0, math.Min(cam1.MeanFocalLength(), cam2.MeanFocalLength()))
	k.Set(1, 1, k.At(0, 0))
	k.Set(0, 2, cam1.PrincipalPointX())
	k.Set(1, 2, (cam1.PrincipalPointY()+cam2.PrincipalPointY())/2)
	k.Set(2, 2, 1)

	var k1Inv, k2Inv mat.Dense
	if err := k1Inv.Inverse(cam1.CalibrationMatrix()); err != nil {
		return nil, nil, nil, errors.Wrap(err, "cannot invert first calibration matrix")
	}
	if err := k2Inv.Inverse(cam2.CalibrationMatrix()); err != nil {
		return nil, nil, nil, errors.Wrap(err, "cannot invert second calibration matrix")
	}

	h1 = mat.NewDense(3, 3, nil)
	h1.Product(k, &rot1Final, &k1Inv)
	h2 = mat.NewDense(3, 3, nil)
	h2.Product(k, &rot2Final, &k2Inv)

	q = mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	q.Set(3, 0, -k.At(1, 2))
	q.Set(3, 1, -k.At(0, 2))
	q.Set(3, 2, k.At(0, 0))
	q.Set(2, 3, -1/t.X)
	q.Set(3, 3, 0)

	return h1, h2, q, nil
}

// RectifyAndUndistortStereoImages rectifies and undistorts a stereo pair onto
// a shared canvas. The pinhole camera is derived from the first camera's
// intrinsics only; both images land on its canvas so that rectified rows
// correspond.
func RectifyAndUndistortStereoImages(
	opts CameraOptions,
	distorted1, distorted2 image.Image,
	distortedCam1, distortedCam2 *camera.Camera,
	relQvec quat.Number,
	relTvec r3.Vector,
	warper Warper,
) (rectified1, rectified2 image.Image, undistortedCam *camera.Camera, q *mat.Dense, err error) {
	if err := checkImageCameraDims(distorted1, distortedCam1); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := checkImageCameraDims(distorted2, distortedCam2); err != nil {
		return nil, nil, nil, nil, err
	}

	undistortedCam, err = UndistortCamera(opts, distortedCam1)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	h1, h2, q, err := RectifyStereoCameras(undistortedCam, undistortedCam, relQvec, relTvec)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var h1Inv, h2Inv mat.Dense
	if err := h1Inv.Inverse(h1); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "cannot invert first homography")
	}
	if err := h2Inv.Inverse(h2); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "cannot invert second homography")
	}

	rectified1, err = warper.WarpWithHomography(&h1Inv, distorted1, distortedCam1, undistortedCam)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rectified2, err = warper.WarpWithHomography(&h2Inv, distorted2, distortedCam2, undistortedCam)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return rectified1, rectified2, undistortedCam, q, nil
}
