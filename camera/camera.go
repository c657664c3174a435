package camera

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Camera is a projection model instance: a model name, its parameter vector
// and the pixel dimensions of the canvas it projects onto. A Camera is never
// mutated after construction except through the explicit setters used while
// deriving a new camera, and through Rescale.
type Camera struct {
	Model  ModelName
	Params []float64
	Width  int
	Height int
}

// NewCamera constructs a Camera and validates it against the model's
// expected parameter arity.
func NewCamera(name ModelName, params []float64, width, height int) (*Camera, error) {
	cam := &Camera{Model: name, Params: params, Width: width, Height: height}
	if err := cam.CheckValid(); err != nil {
		return nil, err
	}
	return cam, nil
}

// NewCameraFromString constructs a Camera from a model name and a space or
// comma delimited parameter string, e.g. "500 320 240 -0.1".
func NewCameraFromString(name ModelName, params string, width, height int) (*Camera, error) {
	cleaned := strings.ReplaceAll(params, ",", " ")
	var parsed []float64
	for _, field := range strings.Fields(cleaned) {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot parse camera parameter %q", field)
		}
		parsed = append(parsed, value)
	}
	return NewCamera(name, parsed, width, height)
}

// CheckValid checks the parameter vector arity and the structural constraints
// of the model (positive dimensions and focal lengths).
func (c *Camera) CheckValid() error {
	m, err := modelForName(c.Model)
	if err != nil {
		return err
	}
	if len(c.Params) != m.numParams() {
		return errors.Errorf("camera model %q expects %d parameters, got %d",
			c.Model, m.numParams(), len(c.Params))
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid camera dimensions (%d, %d)", c.Width, c.Height)
	}
	for _, idx := range m.focalLengthIdxs() {
		if c.Params[idx] <= 0 {
			return errors.Errorf("invalid focal length %v for camera model %q", c.Params[idx], c.Model)
		}
	}
	return nil
}

// Clone returns a deep copy of the camera.
func (c *Camera) Clone() *Camera {
	params := make([]float64, len(c.Params))
	copy(params, c.Params)
	return &Camera{Model: c.Model, Params: params, Width: c.Width, Height: c.Height}
}

func (c *Camera) model() model {
	m, err := modelForName(c.Model)
	if err != nil {
		panic(err)
	}
	return m
}

// IsPinhole reports whether the camera carries no distortion parameters.
func (c *Camera) IsPinhole() bool {
	return c.Model == SimplePinhole || c.Model == Pinhole
}

// FocalLengthIdxs returns the indices of the focal-length parameters.
func (c *Camera) FocalLengthIdxs() []int { return c.model().focalLengthIdxs() }

// PrincipalPointIdxs returns the indices of the principal-point parameters.
func (c *Camera) PrincipalPointIdxs() []int { return c.model().principalPointIdxs() }

// FocalLengthX returns the focal length along x.
func (c *Camera) FocalLengthX() float64 {
	return c.Params[c.model().focalLengthIdxs()[0]]
}

// FocalLengthY returns the focal length along y. Models with a single shared
// focal length return that value.
func (c *Camera) FocalLengthY() float64 {
	idxs := c.model().focalLengthIdxs()
	if len(idxs) == 1 {
		return c.Params[idxs[0]]
	}
	return c.Params[idxs[1]]
}

// MeanFocalLength returns the mean of the focal-length parameters.
func (c *Camera) MeanFocalLength() float64 {
	idxs := c.model().focalLengthIdxs()
	sum := 0.0
	for _, idx := range idxs {
		sum += c.Params[idx]
	}
	return sum / float64(len(idxs))
}

// SetFocalLengthX sets the focal length along x.
func (c *Camera) SetFocalLengthX(f float64) {
	c.Params[c.model().focalLengthIdxs()[0]] = f
}

// SetFocalLengthY sets the focal length along y. Models with a single shared
// focal length overwrite that value.
func (c *Camera) SetFocalLengthY(f float64) {
	idxs := c.model().focalLengthIdxs()
	if len(idxs) == 1 {
		c.Params[idxs[0]] = f
		return
	}
	c.Params[idxs[1]] = f
}

// PrincipalPointX returns the x coordinate of the principal point.
func (c *Camera) PrincipalPointX() float64 {
	return c.Params[c.model().principalPointIdxs()[0]]
}

// PrincipalPointY returns the y coordinate of the principal point.
func (c *Camera) PrincipalPointY() float64 {
	return c.Params[c.model().principalPointIdxs()[1]]
}

// SetPrincipalPointX sets the x coordinate of the principal point.
func (c *Camera) SetPrincipalPointX(cx float64) {
	c.Params[c.model().principalPointIdxs()[0]] = cx
}

// SetPrincipalPointY sets the y coordinate of the principal point.
func (c *Camera) SetPrincipalPointY(cy float64) {
	c.Params[c.model().principalPointIdxs()[1]] = cy
}

// ImageToWorld maps a pixel coordinate to the normalized camera ray (x/z, y/z).
func (c *Camera) ImageToWorld(pt r2.Point) r2.Point {
	return c.model().imageToWorld(c.Params, pt)
}

// WorldToImage maps a normalized camera ray (x/z, y/z) to a pixel coordinate.
func (c *Camera) WorldToImage(pt r2.Point) r2.Point {
	return c.model().worldToImage(c.Params, pt)
}

// CalibrationMatrix returns the 3x3 intrinsic matrix
//
//	[[fx 0 cx],
//	 [0 fy cy],
//	 [0  0  1]]
func (c *Camera) CalibrationMatrix() *mat.Dense {
	k := mat.NewDense(3, 3, nil)
	k.Set(0, 0, c.FocalLengthX())
	k.Set(1, 1, c.FocalLengthY())
	k.Set(0, 2, c.PrincipalPointX())
	k.Set(1, 2, c.PrincipalPointY())
	k.Set(2, 2, 1)
	return k
}

// Rescale uniformly scales the canvas dimensions and all focal-length and
// principal-point parameters by the given factor.
func (c *Camera) Rescale(factor float64) {
	c.Width = int(math.Max(1, math.Round(factor*float64(c.Width))))
	c.Height = int(math.Max(1, math.Round(factor*float64(c.Height))))
	m := c.model()
	for _, idx := range m.focalLengthIdxs() {
		c.Params[idx] *= factor
	}
	for _, idx := range m.principalPointIdxs() {
		c.Params[idx] *= factor
	}
}
