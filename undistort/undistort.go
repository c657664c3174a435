package undistort

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mvs/camera"
)

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// selectPointOnRay finds, on the segment from origin toward target clipped to
// maxLength, the farthest point whose world ray satisfies all three angle
// bounds, assuming these angles grow monotonically along the segment. 32
// bisection iterations give sub-pixel convergence for any practical image
// resolution.
func selectPointOnRay(cam *camera.Camera, origin, target r2.Point,
	maxLength, maxAngle, maxHorizontalAngle, maxVerticalAngle float64,
) r2.Point {
	diff := target.Sub(origin)
	dir := diff.Normalize()

	left, right := 0.0, math.Min(maxLength, diff.Norm())
	for i := 0; i < 32; i++ {
		mid := (left + right) / 2.0
		world := cam.ImageToWorld(origin.Add(dir.Mul(mid)))
		valid := math.Atan(world.Y) < maxVerticalAngle &&
			math.Atan(world.X) < maxHorizontalAngle &&
			math.Atan(world.Norm()) < maxAngle
		if valid {
			left = mid
		} else {
			right = mid
		}
	}
	return origin.Add(dir.Mul(left))
}

// maxValidExtent estimates the maximal radius around the principal point
// within which the ray angle grows strictly with the radius and stays below
// the FOV bound, by walking outward in whole-pixel steps toward the farthest
// image corner. Outside this region the distortion model is no longer a
// bijection and sampling through it cannot be trusted. The returned half
// angle is the angle observed at the last valid radius, and maxFOV/2 when the
// walk could not take a single step.
func maxValidExtent(cam *camera.Camera, maxFOV float64) (maxValidRadius, maxValidFOVHalf float64) {
	width := float64(cam.Width)
	height := float64(cam.Height)
	maxValidRadius = math.Hypot(width, height)
	maxValidFOVHalf = maxFOV / 2.0
	if len(cam.PrincipalPointIdxs()) != 2 {
		return maxValidRadius, maxValidFOVHalf
	}

	principalPoint := r2.Point{X: cam.PrincipalPointX(), Y: cam.PrincipalPointY()}
	corners := [4]r2.Point{{X: 0, Y: 0}, {X: width, Y: 0}, {X: width, Y: height}, {X: 0, Y: height}}

	maxRadius := 0.0
	var cornerDir r2.Point
	for _, corner := range corners {
		diff := corner.Sub(principalPoint)
		if diff.Norm() > maxRadius {
			maxRadius = diff.Norm()
			cornerDir = diff.Normalize()
		}
	}

	lastFOVHalf := 0.0
	for i := 1; float64(i) < maxRadius; i++ {
		world := cam.ImageToWorld(principalPoint.Add(cornerDir.Mul(float64(i))))
		phi := math.Atan(world.Norm())
		if phi <= lastFOVHalf || 2.0*phi > maxFOV {
			break
		}
		lastFOVHalf = phi
		maxValidRadius = float64(i)
	}
	if lastFOVHalf > 0 {
		maxValidFOVHalf = lastFOVHalf
	}
	return maxValidRadius, maxValidFOVHalf
}

// UndistortCamera derives a pinhole camera that approximates the given
// camera, preserving as much of the field of view and pixel content as the
// options allow.
func UndistortCamera(opts CameraOptions, cam *camera.Camera) (*camera.Camera, error) {
	if err := opts.CheckValid(); err != nil {
		return nil, err
	}
	if err := cam.CheckValid(); err != nil {
		return nil, err
	}

	if opts.CameraModelOverride != "" {
		override, err := camera.NewCameraFromString(
			opts.CameraModelOverride, opts.CameraModelOverrideParams, cam.Width, cam.Height)
		if err != nil {
			return nil, errors.Wrap(err, "invalid camera model override")
		}
		return override, nil
	}

	und := &camera.Camera{
		Model:  camera.Pinhole,
		Params: make([]float64, 4),
		Width:  cam.Width,
		Height: cam.Height,
	}

	maxFOV := degToRad(opts.MaxFOV)
	maxHorizontalFOV := degToRad(opts.MaxHorizontalFOV)
	maxVerticalFOV := degToRad(opts.MaxVerticalFOV)

	width := float64(cam.Width)
	height := float64(cam.Height)
	imageDiagonal := math.Hypot(width, height)

	principalPoint := r2.Point{}
	if len(cam.PrincipalPointIdxs()) == 2 {
		principalPoint = r2.Point{X: cam.PrincipalPointX(), Y: cam.PrincipalPointY()}
	}
	corners := [4]r2.Point{{X: 0, Y: 0}, {X: width, Y: 0}, {X: width, Y: height}, {X: 0, Y: height}}
	maxValidRadius, maxValidFOVHalf := maxValidExtent(cam, maxFOV)

	if opts.EstimateFocalLengthFromFOV {
		// Estimate a focal length preserving the diagonal, horizontal and
		// vertical fields of view, and keep the largest.
		focal := imageDiagonal / 2.0 / math.Tan(maxValidFOVHalf)
		for i := 0; i < 2; i++ {
			cornerA := selectPointOnRay(cam, principalPoint, corners[i],
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			cornerB := selectPointOnRay(cam, principalPoint, corners[i+2],
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			fov := math.Atan(cam.ImageToWorld(cornerA).Norm()) +
				math.Atan(cam.ImageToWorld(cornerB).Norm())
			focal = math.Max(focal, imageDiagonal/2.0/math.Tan(fov/2.0))
		}

		left := r2.Point{X: math.Max(0, principalPoint.X-maxValidRadius), Y: principalPoint.Y}
		right := r2.Point{X: math.Min(width, principalPoint.X+maxValidRadius), Y: principalPoint.Y}
		horizontalFOV := math.Atan(math.Abs(cam.ImageToWorld(left).X)) +
			math.Atan(math.Abs(cam.ImageToWorld(right).X))
		focalHorizontal := width / 2.0 / math.Tan(math.Min(maxHorizontalFOV, horizontalFOV)/2.0)

		top := r2.Point{X: principalPoint.X, Y: math.Max(0, principalPoint.Y-maxValidRadius)}
		bottom := r2.Point{X: principalPoint.X, Y: math.Min(height, principalPoint.Y+maxValidRadius)}
		verticalFOV := math.Atan(math.Abs(cam.ImageToWorld(top).Y)) +
			math.Atan(math.Abs(cam.ImageToWorld(bottom).Y))
		focalVertical := height / 2.0 / math.Tan(math.Min(maxVerticalFOV, verticalFOV)/2.0)

		focal = math.Max(focal, math.Max(focalHorizontal, focalVertical))
		und.SetFocalLengthX(focal)
		und.SetFocalLengthY(focal)
	} else {
		focalIdxs := cam.FocalLengthIdxs()
		switch len(focalIdxs) {
		case 1:
			und.SetFocalLengthX(cam.FocalLengthX())
			und.SetFocalLengthY(cam.FocalLengthX())
		case 2:
			und.SetFocalLengthX(cam.FocalLengthX())
			und.SetFocalLengthY(cam.FocalLengthY())
		default:
			return nil, errors.Errorf(
				"camera model %q has %d focal length parameters, at most two supported",
				cam.Model, len(focalIdxs))
		}
	}

	und.SetPrincipalPointX(cam.PrincipalPointX())
	und.SetPrincipalPointY(cam.PrincipalPointY())

	if !cam.IsPinhole() {
		// Project every border pixel (clamped to the valid radius) into the
		// undistorted canvas and track the extent it lands on.
		leftMinX, leftMaxX := math.Inf(1), math.Inf(-1)
		rightMinX, rightMaxX := math.Inf(1), math.Inf(-1)
		for y := 0; y < cam.Height; y++ {
			borderLeft := selectPointOnRay(cam, principalPoint,
				r2.Point{X: 0.5, Y: float64(y) + 0.5},
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			undistortedLeft := und.WorldToImage(cam.ImageToWorld(borderLeft))
			leftMinX = math.Min(leftMinX, undistortedLeft.X)
			leftMaxX = math.Max(leftMaxX, undistortedLeft.X)

			borderRight := selectPointOnRay(cam, principalPoint,
				r2.Point{X: width - 0.5, Y: float64(y) + 0.5},
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			undistortedRight := und.WorldToImage(cam.ImageToWorld(borderRight))
			rightMinX = math.Min(rightMinX, undistortedRight.X)
			rightMaxX = math.Max(rightMaxX, undistortedRight.X)
		}

		topMinY, topMaxY := math.Inf(1), math.Inf(-1)
		bottomMinY, bottomMaxY := math.Inf(1), math.Inf(-1)
		for x := 0; x < cam.Width; x++ {
			borderTop := selectPointOnRay(cam, principalPoint,
				r2.Point{X: float64(x) + 0.5, Y: 0.5},
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			undistortedTop := und.WorldToImage(cam.ImageToWorld(borderTop))
			topMinY = math.Min(topMinY, undistortedTop.Y)
			topMaxY = math.Max(topMaxY, undistortedTop.Y)

			borderBottom := selectPointOnRay(cam, principalPoint,
				r2.Point{X: float64(x) + 0.5, Y: height - 0.5},
				maxValidRadius, maxValidFOVHalf, maxHorizontalFOV/2.0, maxVerticalFOV/2.0)
			undistortedBottom := und.WorldToImage(cam.ImageToWorld(borderBottom))
			bottomMinY = math.Min(bottomMinY, undistortedBottom.Y)
			bottomMaxY = math.Max(bottomMaxY, undistortedBottom.Y)
		}

		cx := und.PrincipalPointX()
		cy := und.PrincipalPointY()

		// Scale such that the undistorted canvas contains every pixel of the
		// distorted image.
		minScaleX := math.Min(cx/(cx-leftMinX), (width-0.5-cx)/(rightMaxX-cx))
		minScaleY := math.Min(cy/(cy-topMinY), (height-0.5-cy)/(bottomMaxY-cy))

		// Scale such that the undistorted canvas has no blank pixels.
		maxScaleX := math.Max(cx/(cx-leftMaxX), (width-0.5-cx)/(rightMinX-cx))
		maxScaleY := math.Max(cy/(cy-topMaxY), (height-0.5-cy)/(bottomMinY-cy))

		// Interpolate between the two according to BlankPixels, then clip.
		scaleX := 1.0 / (minScaleX*opts.BlankPixels + maxScaleX*(1.0-opts.BlankPixels))
		scaleY := 1.0 / (minScaleY*opts.BlankPixels + maxScaleY*(1.0-opts.BlankPixels))
		scaleX = math.Min(math.Max(scaleX, opts.MinScale), opts.MaxScale)
		scaleY = math.Min(math.Max(scaleY, opts.MinScale), opts.MaxScale)

		und.Width = int(math.Max(1.0, scaleX*width))
		und.Height = int(math.Max(1.0, scaleY*height))

		// Move the principal point proportionally to the new dimensions.
		und.SetPrincipalPointX(cx * float64(und.Width) / width)
		und.SetPrincipalPointY(cy * float64(und.Height) / height)
	}

	if opts.MaxImageSize > 0 {
		maxScale := math.Min(
			float64(opts.MaxImageSize)/float64(und.Width),
			float64(opts.MaxImageSize)/float64(und.Height))
		if maxScale < 1.0 {
			und.Rescale(maxScale)
		}
	}

	return und, nil
}
