package camera

import (
	"math"

	"github.com/golang/geo/r2"
)

type simplePinholeModel struct{}

func (m *simplePinholeModel) name() ModelName { return SimplePinhole }
func (m *simplePinholeModel) numParams() int { return 3 }
func (m *simplePinholeModel) focalLengthIdxs() []int { return []int{0} }
func (m *simplePinholeModel) principalPointIdxs() []int { return []int{1, 2} }

func (m *simplePinholeModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	return r2.Point{X: (pt.X - p[1]) / p[0], Y: (pt.Y - p[2]) / p[0]}
}

func (m *simplePinholeModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	return r2.Point{X: p[0]*pt.X + p[1], Y: p[0]*pt.Y + p[2]}
}

type pinholeModel struct{}

func (m *pinholeModel) name() ModelName { return Pinhole }
func (m *pinholeModel) numParams() int { return 4 }
func (m *pinholeModel) focalLengthIdxs() []int { return []int{0, 1} }
func (m *pinholeModel) principalPointIdxs() []int { return []int{2, 3} }

func (m *pinholeModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	return r2.Point{X: (pt.X - p[2]) / p[0], Y: (pt.Y - p[3]) / p[1]}
}

func (m *pinholeModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	return r2.Point{X: p[0]*pt.X + p[2], Y: p[1]*pt.Y + p[3]}
}

type simpleRadialModel struct{}

func (m *simpleRadialModel) name() ModelName { return SimpleRadial }
func (m *simpleRadialModel) numParams() int { return 4 }
func (m *simpleRadialModel) focalLengthIdxs() []int { return []int{0} }
func (m *simpleRadialModel) principalPointIdxs() []int { return []int{1, 2} }

func (m *simpleRadialModel) distort(p []float64, x, y float64) (float64, float64) {
	r2Sq := x*x + y*y
	factor := 1.0 + p[3]*r2Sq
	return x * factor, y * factor
}

func (m *simpleRadialModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	xd, yd := (pt.X-p[1])/p[0], (pt.Y-p[2])/p[0]
	xu, yu := undistortNormalized(func(x, y float64) (float64, float64) {
		return m.distort(p, x, y)
	}, xd, yd)
	return r2.Point{X: xu, Y: yu}
}

func (m *simpleRadialModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	xd, yd := m.distort(p, pt.X, pt.Y)
	return r2.Point{X: p[0]*xd + p[1], Y: p[0]*yd + p[2]}
}

type radialModel struct{}

func (m *radialModel) name() ModelName { return Radial }
func (m *radialModel) numParams() int { return 5 }
func (m *radialModel) focalLengthIdxs() []int { return []int{0} }
func (m *radialModel) principalPointIdxs() []int { return []int{1, 2} }

func (m *radialModel) distort(p []float64, x, y float64) (float64, float64) {
	r2Sq := x*x + y*y
	factor := 1.0 + p[3]*r2Sq + p[4]*r2Sq*r2Sq
	return x * factor, y * factor
}

func (m *radialModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	xd, yd := (pt.X-p[1])/p[0], (pt.Y-p[2])/p[0]
	xu, yu := undistortNormalized(func(x, y float64) (float64, float64) {
		return m.distort(p, x, y)
	}, xd, yd)
	return r2.Point{X: xu, Y: yu}
}

func (m *radialModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	xd, yd := m.distort(p, pt.X, pt.Y)
	return r2.Point{X: p[0]*xd + p[1], Y: p[0]*yd + p[2]}
}

type openCVModel struct{}

func (m *openCVModel) name() ModelName { return OpenCV }
func (m *openCVModel) numParams() int { return 8 }
func (m *openCVModel) focalLengthIdxs() []int { return []int{0, 1} }
func (m *openCVModel) principalPointIdxs() []int { return []int{2, 3} }

func (m *openCVModel) distort(p []float64, x, y float64) (float64, float64) {
	k1, k2, p1, p2 := p[4], p[5], p[6], p[7]
	r2Sq := x*x + y*y
	radial := 1.0 + k1*r2Sq + k2*r2Sq*r2Sq
	xd := x*radial + 2.0*p1*x*y + p2*(r2Sq+2.0*x*x)
	yd := y*radial + p1*(r2Sq+2.0*y*y) + 2.0*p2*x*y
	return xd, yd
}

func (m *openCVModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	xd, yd := (pt.X-p[2])/p[0], (pt.Y-p[3])/p[1]
	xu, yu := undistortNormalized(func(x, y float64) (float64, float64) {
		return m.distort(p, x, y)
	}, xd, yd)
	return r2.Point{X: xu, Y: yu}
}

func (m *openCVModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	xd, yd := m.distort(p, pt.X, pt.Y)
	return r2.Point{X: p[0]*xd + p[2], Y: p[1]*yd + p[3]}
}

type openCVFisheyeModel struct{}

func (m *openCVFisheyeModel) name() ModelName { return OpenCVFisheye }
func (m *openCVFisheyeModel) numParams() int { return 8 }
func (m *openCVFisheyeModel) focalLengthIdxs() []int { return []int{0, 1} }
func (m *openCVFisheyeModel) principalPointIdxs() []int { return []int{2, 3} }

func (m *openCVFisheyeModel) distort(p []float64, x, y float64) (float64, float64) {
	k1, k2, k3, k4 := p[4], p[5], p[6], p[7]
	r := math.Sqrt(x*x + y*y)
	if r < 1e-8 {
		return x, y
	}
	theta := math.Atan(r)
	theta2 := theta * theta
	thetaD := theta * (1.0 + theta2*(k1+theta2*(k2+theta2*(k3+theta2*k4))))
	return x * thetaD / r, y * thetaD / r
}

func (m *openCVFisheyeModel) imageToWorld(p []float64, pt r2.Point) r2.Point {
	xd, yd := (pt.X-p[2])/p[0], (pt.Y-p[3])/p[1]
	xu, yu := undistortNormalized(func(x, y float64) (float64, float64) {
		return m.distort(p, x, y)
	}, xd, yd)
	return r2.Point{X: xu, Y: yu}
}

func (m *openCVFisheyeModel) worldToImage(p []float64, pt r2.Point) r2.Point {
	xd, yd := m.distort(p, pt.X, pt.Y)
	return r2.Point{X: p[0]*xd + p[2], Y: p[1]*yd + p[3]}
}
