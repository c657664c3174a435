package undistort

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/reconstruction"
	"go.viam.com/mvs/spatialmath"
	"go.viam.com/mvs/utils"
)

// RunnerConfig is shared by all batch runners.
type RunnerConfig struct {
	Options CameraOptions
	// ImagePath is the base path raw input images are read from, addressed by
	// image name.
	ImagePath string
	// OutputPath is the base path results are written under.
	OutputPath string
	Warper     Warper
	// NumWorkers sizes the worker pool; non-positive means one worker per CPU.
	NumWorkers int
}

// drainHandles consumes completion handles in submission order so progress
// output stays deterministic, polling the context once before blocking on
// each handle. Cancellation is advisory: in-flight jobs are never interrupted.
func drainHandles(ctx context.Context, handles []*utils.TaskHandle,
	progress func(i, n int), onStop func(),
) error {
	for i, handle := range handles {
		if ctx.Err() != nil {
			if onStop != nil {
				onStop()
			}
			return ctx.Err()
		}
		progress(i+1, len(handles))
		if err := handle.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *RunnerConfig) readImage(logger golog.Logger, name string) image.Image {
	path := filepath.Join(cfg.ImagePath, name)
	img, err := imaging.Open(path)
	if err != nil {
		logger.Errorf("cannot read image at path %s: %v", path, err)
		return nil
	}
	return img
}

func saveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create output directory for %s", path)
	}
	return errors.Wrapf(imaging.Save(img, path), "cannot write image at path %s", path)
}

func lookupImage(rec *reconstruction.Reconstruction, id reconstruction.ImageID,
) (*reconstruction.Image, *camera.Camera, error) {
	im, ok := rec.Images[id]
	if !ok {
		return nil, nil, errors.Errorf("no image with ID %d", id)
	}
	cam, ok := rec.Cameras[im.CameraID]
	if !ok {
		return nil, nil, errors.Errorf("image %d references missing camera %d", id, im.CameraID)
	}
	return im, cam, nil
}

// Undistorter undistorts every registered image of a reconstruction and
// produces the matching undistorted reconstruction.
type Undistorter struct {
	cfg    RunnerConfig
	rec    *reconstruction.Reconstruction
	logger golog.Logger
}

// NewUndistorter returns a runner over all registered images of the
// reconstruction.
func NewUndistorter(cfg RunnerConfig, rec *reconstruction.Reconstruction, logger golog.Logger) *Undistorter {
	return &Undistorter{cfg: cfg, rec: rec, logger: logger}
}

// Run undistorts all images in parallel and returns the undistorted
// reconstruction. The input reconstruction is not mutated.
func (u *Undistorter) Run(ctx context.Context) (*reconstruction.Reconstruction, error) {
	u.logger.Info("Image undistortion")

	pool := utils.NewTaskPool(u.cfg.NumWorkers)
	defer pool.Close()

	ids := u.rec.RegImageIDs()
	handles := make([]*utils.TaskHandle, 0, len(ids))
	for _, id := range ids {
		imageID := id
		handles = append(handles, pool.Submit(func() error {
			return u.undistortOne(imageID)
		}))
	}

	if err := drainHandles(ctx, handles, func(i, n int) {
		u.logger.Infof("Undistorting image [%d/%d]", i, n)
	}, nil); err != nil {
		return nil, err
	}

	u.logger.Info("Remapping reconstruction...")
	undistorted := u.rec.Clone()
	if err := UndistortReconstruction(u.cfg.Options, undistorted); err != nil {
		return nil, err
	}
	return undistorted, nil
}

func (u *Undistorter) undistortOne(id reconstruction.ImageID) error {
	im, cam, err := lookupImage(u.rec, id)
	if err != nil {
		return err
	}

	distorted := u.cfg.readImage(u.logger, im.Name)
	if distorted == nil {
		return nil
	}

	undistorted, _, err := UndistortImage(u.cfg.Options, distorted, cam, u.cfg.Warper)
	if err != nil {
		return err
	}
	return saveImage(undistorted, filepath.Join(u.cfg.OutputPath, im.Name))
}

// PMVSExporter undistorts every registered image into numbered outputs with
// per-image projection matrices, for consumers of the CMVS/PMVS layout. On
// cancellation it additionally halts the worker pool so queued-but-unstarted
// jobs are discarded.
type PMVSExporter struct {
	cfg    RunnerConfig
	rec    *reconstruction.Reconstruction
	logger golog.Logger
}

// NewPMVSExporter returns a runner over all registered images of the
// reconstruction.
func NewPMVSExporter(cfg RunnerConfig, rec *reconstruction.Reconstruction, logger golog.Logger) *PMVSExporter {
	return &PMVSExporter{cfg: cfg, rec: rec, logger: logger}
}

// Run undistorts all images in parallel and returns the undistorted
// reconstruction. The input reconstruction is not mutated.
func (e *PMVSExporter) Run(ctx context.Context) (*reconstruction.Reconstruction, error) {
	e.logger.Info("Image undistortion (CMVS/PMVS)")

	pool := utils.NewTaskPool(e.cfg.NumWorkers)
	defer pool.Close()

	ids := e.rec.RegImageIDs()
	handles := make([]*utils.TaskHandle, 0, len(ids))
	for i, id := range ids {
		idx, imageID := i, id
		handles = append(handles, pool.Submit(func() error {
			return e.undistortOne(idx, imageID)
		}))
	}

	if err := drainHandles(ctx, handles, func(i, n int) {
		e.logger.Infof("Undistorting image [%d/%d]", i, n)
	}, func() {
		e.logger.Warn("Stopped the undistortion process. Image point locations and " +
			"camera parameters for not yet processed images will be missing from the output.")
		pool.Stop()
	}); err != nil {
		return nil, err
	}

	e.logger.Info("Remapping reconstruction...")
	undistorted := e.rec.Clone()
	if err := UndistortReconstruction(e.cfg.Options, undistorted); err != nil {
		return nil, err
	}
	return undistorted, nil
}

func (e *PMVSExporter) undistortOne(idx int, id reconstruction.ImageID) error {
	im, cam, err := lookupImage(e.rec, id)
	if err != nil {
		return err
	}

	distorted := e.cfg.readImage(e.logger, im.Name)
	if distorted == nil {
		return nil
	}

	undistorted, undistortedCam, err := UndistortImage(e.cfg.Options, distorted, cam, e.cfg.Warper)
	if err != nil {
		return err
	}
	if err := saveImage(undistorted, filepath.Join(e.cfg.OutputPath, fmt.Sprintf("%08d.jpg", idx))); err != nil {
		return err
	}
	return WriteProjectionMatrix(
		filepath.Join(e.cfg.OutputPath, fmt.Sprintf("%08d.txt", idx)),
		undistortedCam, im, "CONTOUR")
}

// CMPMVSExporter undistorts every registered image into numbered outputs with
// per-image projection matrices, for consumers of the CMP-MVS layout.
type CMPMVSExporter struct {
	cfg    RunnerConfig
	rec    *reconstruction.Reconstruction
	logger golog.Logger
}

// NewCMPMVSExporter returns a runner over all registered images of the
// reconstruction.
func NewCMPMVSExporter(cfg RunnerConfig, rec *reconstruction.Reconstruction, logger golog.Logger) *CMPMVSExporter {
	return &CMPMVSExporter{cfg: cfg, rec: rec, logger: logger}
}

// Run undistorts all images in parallel.
func (e *CMPMVSExporter) Run(ctx context.Context) error {
	e.logger.Info("Image undistortion (CMP-MVS)")

	pool := utils.NewTaskPool(e.cfg.NumWorkers)
	defer pool.Close()

	ids := e.rec.RegImageIDs()
	handles := make([]*utils.TaskHandle, 0, len(ids))
	for i, id := range ids {
		idx, imageID := i, id
		handles = append(handles, pool.Submit(func() error {
			return e.undistortOne(idx, imageID)
		}))
	}

	return drainHandles(ctx, handles, func(i, n int) {
		e.logger.Infof("Undistorting image [%d/%d]", i, n)
	}, nil)
}

func (e *CMPMVSExporter) undistortOne(idx int, id reconstruction.ImageID) error {
	im, cam, err := lookupImage(e.rec, id)
	if err != nil {
		return err
	}

	distorted := e.cfg.readImage(e.logger, im.Name)
	if distorted == nil {
		return nil
	}

	undistorted, undistortedCam, err := UndistortImage(e.cfg.Options, distorted, cam, e.cfg.Warper)
	if err != nil {
		return err
	}
	if err := saveImage(undistorted, filepath.Join(e.cfg.OutputPath, fmt.Sprintf("%05d.jpg", idx+1))); err != nil {
		return err
	}
	return WriteProjectionMatrix(
		filepath.Join(e.cfg.OutputPath, fmt.Sprintf("%05d_P.txt", idx+1)),
		undistortedCam, im, "CONTOUR")
}

// StereoPair is a pair of registered image IDs to rectify against each other.
type StereoPair struct {
	ImageID1 reconstruction.ImageID
	ImageID2 reconstruction.ImageID
}

// StereoRectifier rectifies and undistorts stereo pairs onto shared canvases
// and writes the disparity-to-depth matrix of each pair.
type StereoRectifier struct {
	cfg    RunnerConfig
	rec    *reconstruction.Reconstruction
	pairs  []StereoPair
	logger golog.Logger
}

// NewStereoRectifier returns a runner over the given stereo pairs.
func NewStereoRectifier(
	cfg RunnerConfig,
	rec *reconstruction.Reconstruction,
	pairs []StereoPair,
	logger golog.Logger,
) *StereoRectifier {
	return &StereoRectifier{cfg: cfg, rec: rec, pairs: pairs, logger: logger}
}

// Run rectifies all pairs in parallel.
func (s *StereoRectifier) Run(ctx context.Context) error {
	s.logger.Info("Stereo rectification")

	pool := utils.NewTaskPool(s.cfg.NumWorkers)
	defer pool.Close()

	handles := make([]*utils.TaskHandle, 0, len(s.pairs))
	for _, pair := range s.pairs {
		p := pair
		handles = append(handles, pool.Submit(func() error {
			return s.rectifyOne(p)
		}))
	}

	return drainHandles(ctx, handles, func(i, n int) {
		s.logger.Infof("Rectifying image pair [%d/%d]", i, n)
	}, nil)
}

func (s *StereoRectifier) rectifyOne(pair StereoPair) error {
	im1, cam1, err := lookupImage(s.rec, pair.ImageID1)
	if err != nil {
		return err
	}
	im2, cam2, err := lookupImage(s.rec, pair.ImageID2)
	if err != nil {
		return err
	}

	distorted1 := s.cfg.readImage(s.logger, im1.Name)
	if distorted1 == nil {
		return nil
	}
	distorted2 := s.cfg.readImage(s.logger, im2.Name)
	if distorted2 == nil {
		return nil
	}

	relQvec, relTvec := spatialmath.RelativePose(im1.Qvec, im1.Tvec, im2.Qvec, im2.Tvec)

	rectified1, rectified2, _, q, err := RectifyAndUndistortStereoImages(
		s.cfg.Options, distorted1, distorted2, cam1, cam2, relQvec, relTvec, s.cfg.Warper)
	if err != nil {
		return err
	}

	name1 := strings.ReplaceAll(im1.Name, "/", "-")
	name2 := strings.ReplaceAll(im2.Name, "/", "-")
	pairDir := filepath.Join(s.cfg.OutputPath, name1+"-"+name2)
	if err := saveImage(rectified1, filepath.Join(pairDir, name1)); err != nil {
		return err
	}
	if err := saveImage(rectified2, filepath.Join(pairDir, name2)); err != nil {
		return err
	}
	return WriteMatrixFile(filepath.Join(pairDir, "Q.txt"), q, "")
}
