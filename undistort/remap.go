package undistort

import (
	"github.com/pkg/errors"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/reconstruction"
)

// UndistortReconstruction replaces every camera in the reconstruction by its
// undistorted pinhole counterpart and reprojects every 2D observation
// accordingly. Track and 3D point structure is untouched. The reconstruction
// is mutated in place; callers that keep the distorted original must pass a
// clone.
func UndistortReconstruction(opts CameraOptions, rec *reconstruction.Reconstruction) error {
	distortedCams := make(map[reconstruction.CameraID]*camera.Camera, len(rec.Cameras))
	for id, cam := range rec.Cameras {
		distortedCams[id] = cam
		undistorted, err := UndistortCamera(opts, cam)
		if err != nil {
			return errors.Wrapf(err, "cannot undistort camera %d", id)
		}
		rec.Cameras[id] = undistorted
	}

	for _, im := range rec.Images {
		distortedCam := distortedCams[im.CameraID]
		undistortedCam := rec.Cameras[im.CameraID]
		for i := range im.Points2D {
			im.Points2D[i].XY = undistortedCam.WorldToImage(
				distortedCam.ImageToWorld(im.Points2D[i].XY))
		}
	}
	return nil
}
