package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RelativePose composes the pose of frame 2 relative to frame 1 from the two
// absolute world-to-camera poses (rotation quaternion plus translation), so
// that x2 = R12*x1 + t12 for any point expressed in both camera frames.
func RelativePose(q1 quat.Number, t1 r3.Vector, q2 quat.Number, t2 r3.Vector) (quat.Number, r3.Vector) {
	q1 = NormalizeQuat(q1)
	q2 = NormalizeQuat(q2)
	q12 := quat.Mul(q2, quat.Conj(q1))
	t12 := t2.Sub(RotateVec(q12, t1))
	return q12, t12
}
