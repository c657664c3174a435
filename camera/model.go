// Package camera implements a closed family of camera projection models that
// map between pixel coordinates and normalized camera rays.
package camera

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ModelName identifies a camera projection model.
type ModelName string

const (
	// SimplePinhole is a distortion-free model with shared focal length (f, cx, cy).
	SimplePinhole = ModelName("simple_pinhole")
	// Pinhole is a distortion-free model with per-axis focal lengths (fx, fy, cx, cy).
	Pinhole = ModelName("pinhole")
	// SimpleRadial has one radial coefficient (f, cx, cy, k).
	SimpleRadial = ModelName("simple_radial")
	// Radial has two radial coefficients (f, cx, cy, k1, k2).
	Radial = ModelName("radial")
	// OpenCV is the Brown-Conrady model with tangential terms (fx, fy, cx, cy, k1, k2, p1, p2).
	OpenCV = ModelName("opencv")
	// OpenCVFisheye is an equidistant fisheye model (fx, fy, cx, cy, k1, k2, k3, k4).
	OpenCVFisheye = ModelName("opencv_fisheye")
)

// model is the capability set every variant provides. Parameter vectors are
// passed in so variants stay stateless.
type model interface {
	name() ModelName
	numParams() int
	focalLengthIdxs() []int
	principalPointIdxs() []int
	imageToWorld(params []float64, pt r2.Point) r2.Point
	worldToImage(params []float64, pt r2.Point) r2.Point
}

// The variant set is fixed and small, so a dispatch table is sufficient.
var models = map[ModelName]model{
	SimplePinhole: &simplePinholeModel{},
	Pinhole:       &pinholeModel{},
	SimpleRadial:  &simpleRadialModel{},
	Radial:        &radialModel{},
	OpenCV:        &openCVModel{},
	OpenCVFisheye: &openCVFisheyeModel{},
}

func modelForName(name ModelName) (model, error) {
	m, ok := models[name]
	if !ok {
		return nil, errors.Errorf("do not know camera model %q", name)
	}
	return m, nil
}
