package compress

import "github.com/chewxy/math32"

// vec4 is a point in up to four color dimensions.
type vec4 [4]float32

func (a vec4) sub(b vec4) vec4 { return vec4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]} }

func (a vec4) dot(b vec4, dims int) float32 {
	var s float32
	for i := 0; i < dims; i++ {
		s += a[i] * b[i]
	}
	return s
}

func distSq(a, b vec4, dims int) float32 {
	d := a.sub(b)
	return d.dot(d, dims)
}

// principalEndpoints fits a line through the points along their principal
// axis (power iteration on the covariance matrix) and returns the two
// extreme projections. The first endpoint is the one further along the axis.
func principalEndpoints(points []vec4, dims int) (vec4, vec4) {
	var mean vec4
	for _, p := range points {
		for i := 0; i < dims; i++ {
			mean[i] += p[i]
		}
	}
	n := float32(len(points))
	for i := 0; i < dims; i++ {
		mean[i] /= n
	}

	var cov [4][4]float32
	for _, p := range points {
		d := p.sub(mean)
		for i := 0; i < dims; i++ {
			for j := 0; j < dims; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}

	// Start from the bounding box diagonal, it is never orthogonal to the
	// main axis for real images.
	var lo, hi vec4
	for i := 0; i < dims; i++ {
		lo[i], hi[i] = math32.MaxFloat32, -math32.MaxFloat32
	}
	for _, p := range points {
		for i := 0; i < dims; i++ {
			lo[i] = min(lo[i], p[i])
			hi[i] = max(hi[i], p[i])
		}
	}
	axis := hi.sub(lo)
	if axis.dot(axis, dims) == 0 {
		return mean, mean
	}
	for iter := 0; iter < 8; iter++ {
		var next vec4
		for i := 0; i < dims; i++ {
			for j := 0; j < dims; j++ {
				next[i] += cov[i][j] * axis[j]
			}
		}
		l := math32.Sqrt(next.dot(next, dims))
		if l < 1e-12 {
			break
		}
		for i := 0; i < dims; i++ {
			axis[i] = next[i] / l
		}
	}
	l := math32.Sqrt(axis.dot(axis, dims))
	for i := 0; i < dims; i++ {
		axis[i] /= l
	}

	var tMin, tMax float32 = math32.MaxFloat32, -math32.MaxFloat32
	for _, p := range points {
		t := p.sub(mean).dot(axis, dims)
		tMin = min(tMin, t)
		tMax = max(tMax, t)
	}
	var e0, e1 vec4
	for i := 0; i < dims; i++ {
		e0[i] = mean[i] + axis[i]*tMax
		e1[i] = mean[i] + axis[i]*tMin
	}
	return e0, e1
}

func clampVec(v vec4, lo, hi float32) vec4 {
	for i := range v {
		v[i] = min(max(v[i], lo), hi)
	}
	return v
}
