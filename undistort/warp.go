package undistort

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/mvs/camera"
)

// Warper resamples source pixels onto a destination camera's canvas. The
// implementation fills every destination pixel by inverse-mapping through the
// supplied camera models and, for the homography variant, the given 3x3
// transform.
type Warper interface {
	Warp(src image.Image, srcCam, dstCam *camera.Camera) (image.Image, error)
	WarpWithHomography(h *mat.Dense, src image.Image, srcCam, dstCam *camera.Camera) (image.Image, error)
}

func checkImageCameraDims(img image.Image, cam *camera.Camera) error {
	bounds := img.Bounds()
	if bounds.Dx() != cam.Width || bounds.Dy() != cam.Height {
		return errors.Errorf("image dimensions (%d, %d) do not match camera dimensions (%d, %d)",
			bounds.Dx(), bounds.Dy(), cam.Width, cam.Height)
	}
	return nil
}

// UndistortImage derives the pinhole camera for the given distorted camera
// and warps the image onto its canvas.
func UndistortImage(
	opts CameraOptions,
	distorted image.Image,
	distortedCam *camera.Camera,
	warper Warper,
) (image.Image, *camera.Camera, error) {
	if err := checkImageCameraDims(distorted, distortedCam); err != nil {
		return nil, nil, err
	}

	undistortedCam, err := UndistortCamera(opts, distortedCam)
	if err != nil {
		return nil, nil, err
	}

	undistorted, err := warper.Warp(distorted, distortedCam, undistortedCam)
	if err != nil {
		return nil, nil, err
	}
	return undistorted, undistortedCam, nil
}
