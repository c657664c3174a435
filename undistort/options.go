// Package undistort derives distortion-free pinhole cameras from arbitrary
// camera models, remaps reconstructions accordingly, rectifies stereo pairs,
// and runs these transforms over whole image sets in parallel.
package undistort

import (
	"github.com/pkg/errors"

	"go.viam.com/mvs/camera"
)

// CameraOptions controls how a pinhole camera is derived from a distorted
// one. Violating any range below is a caller error and aborts the whole
// operation.
type CameraOptions struct {
	// BlankPixels blends the undistorted canvas between no blank border
	// pixels (0) and no cropped content (1).
	BlankPixels float64
	// MinScale and MaxScale clip the per-axis canvas scaling.
	MinScale float64
	MaxScale float64
	// MaxImageSize uniformly downscales the result so neither dimension
	// exceeds it. Zero or negative disables downscaling.
	MaxImageSize int
	// MaxFOV bounds the full diagonal field of view, in degrees.
	MaxFOV float64
	// MaxHorizontalFOV and MaxVerticalFOV bound the per-axis fields of view,
	// in degrees.
	MaxHorizontalFOV float64
	MaxVerticalFOV   float64
	// EstimateFocalLengthFromFOV derives the focal length from the visible
	// field of view instead of copying the source focal length.
	EstimateFocalLengthFromFOV bool
	// CameraModelOverride, when set, constructs the result directly from this
	// model and CameraModelOverrideParams, skipping the estimation entirely.
	CameraModelOverride       camera.ModelName
	CameraModelOverrideParams string
}

// DefaultCameraOptions returns the options used when the caller has no
// special requirements.
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{
		BlankPixels:      0,
		MinScale:         0.2,
		MaxScale:         2.0,
		MaxImageSize:     0,
		MaxFOV:           170,
		MaxHorizontalFOV: 180,
		MaxVerticalFOV:   180,
	}
}

// CheckValid checks the option range invariants.
func (o *CameraOptions) CheckValid() error {
	if o.BlankPixels < 0 || o.BlankPixels > 1 {
		return errors.Errorf("blank pixels fraction %v not in [0, 1]", o.BlankPixels)
	}
	if o.MinScale <= 0 {
		return errors.Errorf("min scale %v must be positive", o.MinScale)
	}
	if o.MinScale > o.MaxScale {
		return errors.Errorf("min scale %v exceeds max scale %v", o.MinScale, o.MaxScale)
	}
	if o.MaxFOV <= 0 || o.MaxFOV >= 180 {
		return errors.Errorf("max field of view %v not in (0, 180)", o.MaxFOV)
	}
	if o.MaxHorizontalFOV <= 0 || o.MaxHorizontalFOV > 180 {
		return errors.Errorf("max horizontal field of view %v not in (0, 180]", o.MaxHorizontalFOV)
	}
	if o.MaxVerticalFOV <= 0 || o.MaxVerticalFOV > 180 {
		return errors.Errorf("max vertical field of view %v not in (0, 180]", o.MaxVerticalFOV)
	}
	return nil
}
