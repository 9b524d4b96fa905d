package sampling

// windowWelford keeps a running mean and sum of squared deviations for a sliding window.
// Values leave the window in the same order they entered it.
type windowWelford struct {
	count int
	mean  float64
	m2    float64
}

func (w *windowWelford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *windowWelford) remove(x float64) {
	if w.count <= 1 {
		*w = windowWelford{}
		return
	}
	w.count--
	delta := x - w.mean
	w.mean -= delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 -= delta * delta2
	if w.m2 < 0 {
		w.m2 = 0
	}
}

// reset rebuilds the accumulator from values, discarding drift from earlier removals.
func (w *windowWelford) reset(values []float64) {
	*w = windowWelford{}
	for _, v := range values {
		w.add(v)
	}
}

// sampleVariance returns the ddof=1 variance, 0 when fewer than two values are held.
func (w *windowWelford) sampleVariance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}
