// Package reconstruction holds the sparse multi-view reconstruction data
// model: cameras, posed images with 2D observations, and 3D points with
// their observation tracks.
package reconstruction

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/spatialmath"
)

// CameraID identifies a camera in a reconstruction.
type CameraID uint32

// ImageID identifies a registered image in a reconstruction.
type ImageID uint32

// Point3DID identifies a 3D point in a reconstruction.
type Point3DID uint64

// InvalidPoint3DID marks a 2D observation with no linked 3D point.
const InvalidPoint3DID = Point3DID(math.MaxUint64)

// Point2D is a single 2D observation in an image, optionally linked to a 3D point.
type Point2D struct {
	XY        r2.Point
	Point3DID Point3DID
}

// HasPoint3D reports whether the observation is linked to a 3D point.
func (p *Point2D) HasPoint3D() bool {
	return p.Point3DID != InvalidPoint3DID
}

// TrackElement references one 2D observation of a 3D point.
type TrackElement struct {
	ImageID    ImageID
	Point2DIdx int
}

// Point3D is a triangulated point together with the track of observations
// that produced it.
type Point3D struct {
	XYZ   r3.Vector
	Track []TrackElement
}

// Image is a registered image: its name, camera, world-to-camera pose and the
// ordered sequence of 2D observations.
type Image struct {
	Name     string
	CameraID CameraID
	Qvec     quat.Number
	Tvec     r3.Vector
	Points2D []Point2D
}

// ProjectionMatrix returns the 3x4 pose matrix [R|t].
func (im *Image) ProjectionMatrix() *mat.Dense {
	r := spatialmath.QuatToRotationMatrix(spatialmath.NormalizeQuat(im.Qvec))
	p := mat.NewDense(3, 4, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			p.Set(row, col, r.At(row, col))
		}
	}
	p.Set(0, 3, im.Tvec.X)
	p.Set(1, 3, im.Tvec.Y)
	p.Set(2, 3, im.Tvec.Z)
	return p
}

// Reconstruction maps camera, image and 3D point IDs to their entities.
// Registered image order is preserved from registration time.
type Reconstruction struct {
	Cameras  map[CameraID]*camera.Camera
	Images   map[ImageID]*Image
	Points3D map[Point3DID]*Point3D

	regImageIDs []ImageID
}

// New creates an empty reconstruction.
func New() *Reconstruction {
	return &Reconstruction{
		Cameras:  map[CameraID]*camera.Camera{},
		Images:   map[ImageID]*Image{},
		Points3D: map[Point3DID]*Point3D{},
	}
}

// AddCamera adds a camera under the given ID.
func (r *Reconstruction) AddCamera(id CameraID, cam *camera.Camera) {
	r.Cameras[id] = cam
}

// AddImage registers an image under the given ID, appending it to the
// registered image order.
func (r *Reconstruction) AddImage(id ImageID, im *Image) {
	r.Images[id] = im
	r.regImageIDs = append(r.regImageIDs, id)
}

// AddPoint3D adds a 3D point under the given ID.
func (r *Reconstruction) AddPoint3D(id Point3DID, pt *Point3D) {
	r.Points3D[id] = pt
}

// RegImageIDs returns the registered image IDs in registration order.
func (r *Reconstruction) RegImageIDs() []ImageID {
	return r.regImageIDs
}

// NumRegImages returns how many images are registered.
func (r *Reconstruction) NumRegImages() int {
	return len(r.regImageIDs)
}

// Clone returns a deep copy of the reconstruction. The remapping operations
// mutate in place, so callers that keep the original work on a clone.
func (r *Reconstruction) Clone() *Reconstruction {
	clone := New()
	for id, cam := range r.Cameras {
		clone.Cameras[id] = cam.Clone()
	}
	for id, im := range r.Images {
		points2D := make([]Point2D, len(im.Points2D))
		copy(points2D, im.Points2D)
		clone.Images[id] = &Image{
			Name:     im.Name,
			CameraID: im.CameraID,
			Qvec:     im.Qvec,
			Tvec:     im.Tvec,
			Points2D: points2D,
		}
	}
	for id, pt := range r.Points3D {
		track := make([]TrackElement, len(pt.Track))
		copy(track, pt.Track)
		clone.Points3D[id] = &Point3D{XYZ: pt.XYZ, Track: track}
	}
	clone.regImageIDs = append([]ImageID(nil), r.regImageIDs...)
	return clone
}

// VisibleImageIDs returns the sorted IDs of all other images that share at
// least one 3D point with the given image.
func (r *Reconstruction) VisibleImageIDs(id ImageID) ([]ImageID, error) {
	im, ok := r.Images[id]
	if !ok {
		return nil, errors.Errorf("no image with ID %d", id)
	}
	seen := map[ImageID]bool{}
	for i := range im.Points2D {
		pt2D := &im.Points2D[i]
		if !pt2D.HasPoint3D() {
			continue
		}
		pt3D, ok := r.Points3D[pt2D.Point3DID]
		if !ok {
			return nil, errors.Errorf("image %d references missing 3D point %d", id, pt2D.Point3DID)
		}
		for _, el := range pt3D.Track {
			if el.ImageID != id {
				seen[el.ImageID] = true
			}
		}
	}
	visible := make([]ImageID, 0, len(seen))
	for otherID := range seen {
		visible = append(visible, otherID)
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i] < visible[j] })
	return visible, nil
}

// Validate checks referential integrity: every image references an existing
// camera, every linked observation's 3D point exists and its track contains
// the reciprocal reference.
func (r *Reconstruction) Validate() error {
	for id, im := range r.Images {
		if _, ok := r.Cameras[im.CameraID]; !ok {
			return errors.Errorf("image %d references missing camera %d", id, im.CameraID)
		}
		for idx := range im.Points2D {
			pt2D := &im.Points2D[idx]
			if !pt2D.HasPoint3D() {
				continue
			}
			pt3D, ok := r.Points3D[pt2D.Point3DID]
			if !ok {
				return errors.Errorf("image %d references missing 3D point %d", id, pt2D.Point3DID)
			}
			found := false
			for _, el := range pt3D.Track {
				if el.ImageID == id && el.Point2DIdx == idx {
					found = true
					break
				}
			}
			if !found {
				return errors.Errorf("3D point %d track is missing observation (%d, %d)",
					pt2D.Point3DID, id, idx)
			}
		}
	}
	return nil
}
