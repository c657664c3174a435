package camera

// undistortNormalized inverts a forward distortion function in normalized
// camera coordinates. Given distorted coordinates (xd, yd), it solves for the
// undistorted coordinates that the forward model maps onto them using a
// Newton-Raphson iteration with a central-difference Jacobian. Outside the
// monotonic region of the distortion model the solution is not unique and the
// returned point is only the locally converged root.
func undistortNormalized(distort func(x, y float64) (float64, float64), xd, yd float64) (float64, float64) {
	const (
		maxIterations = 100
		tolerance     = 1e-10
		step          = 1e-7
	)

	// Start with the distorted point as initial guess.
	xu, yu := xd, yd

	for i := 0; i < maxIterations; i++ {
		xdEst, ydEst := distort(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		// Central-difference Jacobian of the forward distortion.
		xpx, ypx := distort(xu+step, yu)
		xmx, ymx := distort(xu-step, yu)
		xpy, ypy := distort(xu, yu+step)
		xmy, ymy := distort(xu, yu-step)
		j00 := (xpx - xmx) / (2.0 * step)
		j01 := (xpy - xmy) / (2.0 * step)
		j10 := (ypx - ymx) / (2.0 * step)
		j11 := (ypy - ymy) / (2.0 * step)

		det := j00*j11 - j01*j10
		if det == 0 {
			break
		}

		// Update: [xu, yu] -= J^-1 * [errX, errY]
		xu -= (j11*errX - j01*errY) / det
		yu -= (-j10*errX + j00*errY) / det
	}

	return xu, yu
}
