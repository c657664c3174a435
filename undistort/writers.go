package undistort

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/mvs/camera"
	"go.viam.com/mvs/reconstruction"
)

// WriteMatrix serializes a matrix as space-separated row entries, one row per
// line, preceded by the header line when one is given.
func WriteMatrix(w io.Writer, m mat.Matrix, header string) error {
	buf := bufio.NewWriter(w)
	if header != "" {
		if _, err := buf.WriteString(header + "\n"); err != nil {
			return err
		}
	}
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				if err := buf.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := buf.WriteString(strconv.FormatFloat(m.At(r, c), 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := buf.WriteByte('\n'); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// WriteMatrixFile writes a matrix to the given path, truncating any existing
// file.
func WriteMatrixFile(path string, m mat.Matrix, header string) (err error) {
	//nolint:gosec
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", path)
	}
	defer func() {
		err = multierr.Combine(err, file.Close())
	}()
	return WriteMatrix(file, m, header)
}

// WriteProjectionMatrix writes the projection matrix P = K * [R|t] of an
// image taken with the given pinhole camera, prepending the header. Passing a
// non-pinhole camera is a caller error.
func WriteProjectionMatrix(path string, cam *camera.Camera, im *reconstruction.Image, header string) error {
	if cam.Model != camera.Pinhole {
		return errors.Errorf("projection matrix requires a %q camera, got %q", camera.Pinhole, cam.Model)
	}

	var proj mat.Dense
	proj.Mul(cam.CalibrationMatrix(), im.ProjectionMatrix())
	return WriteMatrixFile(path, &proj, header)
}
