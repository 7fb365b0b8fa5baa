package roi

import "math"

// otsuBins is the histogram resolution for threshold selection.
const otsuBins = 256

// Otsu computes the between-class-variance-maximizing threshold over the
// finite values. The second return is false when no threshold separates
// the data (fewer than two distinct values).
func Otsu(values []float64) (float64, bool) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if !(hi > lo) {
		return 0, false
	}

	var hist [otsuBins]int
	total := 0
	scale := float64(otsuBins-1) / (hi - lo)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		hist[int((v-lo)*scale)]++
		total++
	}

	sumAll := 0.0
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var (
		sumB, wB float64
		bestVar  = -1.0
		bestBin  = 0
		totalF   = float64(total)
	)
	for i := 0; i < otsuBins; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := totalF - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		meanB := sumB / wB
		meanF := (sumAll - sumB) / wF
		between := wB * wF * (meanB - meanF) * (meanB - meanF)
		if between > bestVar {
			bestVar = between
			bestBin = i
		}
	}

	return lo + (float64(bestBin)+0.5)/scale, true
}

// Label assigns 8-connected component labels to a binary mask. Labels
// start at 1; background stays 0. Returns the label image and the number
// of components.
func Label(mask []bool, width, height int) ([]int, int) {
	labels := make([]int, len(mask))
	next := 0
	queue := make([]int, 0, 64)

	for start := range mask {
		if !mask[start] || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%width, idx/width

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					nidx := ny*width + nx
					if mask[nidx] && labels[nidx] == 0 {
						labels[nidx] = next
						queue = append(queue, nidx)
					}
				}
			}
		}
	}
	return labels, next
}

// RemoveSmallObjects clears mask components with fewer than minSize pixels.
// The mask is modified in place and returned.
func RemoveSmallObjects(mask []bool, width, height, minSize int) []bool {
	labels, n := Label(mask, width, height)
	if n == 0 {
		return mask
	}
	areas := make([]int, n+1)
	for _, l := range labels {
		if l > 0 {
			areas[l]++
		}
	}
	for i, l := range labels {
		if l > 0 && areas[l] < minSize {
			mask[i] = false
		}
	}
	return mask
}
