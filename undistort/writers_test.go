package undistort

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/reconstruction"
)

func TestWriteMatrix(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2.5, 3, -4, 0, 1e-3})

	var buf bytes.Buffer
	err := WriteMatrix(&buf, m, "HEADER")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "HEADER\n1 2.5 3\n-4 0 0.001\n")

	buf.Reset()
	err = WriteMatrix(&buf, m, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "1 2.5 3\n-4 0 0.001\n")
}

func TestWriteMatrixFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	m := mat.NewDense(1, 2, []float64{1, 2})
	err := WriteMatrixFile(path, m, "")
	test.That(t, err, test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldEqual, "1 2\n")
}

func TestWriteProjectionMatrix(t *testing.T) {
	cam, err := camera.NewCamera(camera.Pinhole, []float64{500, 500, 320, 240}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	im := &reconstruction.Image{
		Qvec: quat.Number{Real: 1},
		Tvec: r3.Vector{X: 1, Y: 2, Z: 3},
	}

	path := filepath.Join(t.TempDir(), "proj.txt")
	err = WriteProjectionMatrix(path, cam, im, "CONTOUR")
	test.That(t, err, test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	// P = K * [I|t] for an identity rotation.
	test.That(t, string(contents), test.ShouldEqual,
		"CONTOUR\n500 0 320 1460\n0 500 240 1720\n0 0 1 3\n")
}

func TestWriteProjectionMatrixRejectsNonPinhole(t *testing.T) {
	cam, err := camera.NewCamera(camera.SimplePinhole, []float64{500, 320, 240}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	im := &reconstruction.Image{Qvec: quat.Number{Real: 1}}

	path := filepath.Join(t.TempDir(), "proj.txt")
	err = WriteProjectionMatrix(path, cam, im, "CONTOUR")
	test.That(t, err, test.ShouldNotBeNil)
}
