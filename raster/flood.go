package raster

// transparentAlpha is the threshold below which a pixel counts as already
// removed. Such pixels never match a fill seed, which keeps a fill from
// running away across empty regions.
const transparentAlpha = 8

// floodFill grows a 4-connected region from the seed pixel, matching
// neighbors whose R/G/B/A deltas from the seed are all within the configured
// tolerance, and zeroes their alpha. Returns the number of pixels cleared.
func (b *Buffer) floodFill(sx, sy int) int {
	if sx < 0 || sx >= b.width || sy < 0 || sy >= b.height {
		return 0
	}
	pix := b.working.Pix
	seed := b.working.PixOffset(sx, sy)
	if pix[seed+3] <= transparentAlpha {
		return 0
	}
	sr, sg, sb, sa := pix[seed], pix[seed+1], pix[seed+2], pix[seed+3]
	tol := b.tolerance

	within := func(i int) bool {
		if pix[i+3] <= transparentAlpha {
			return false
		}
		return absDelta(pix[i], sr) <= tol &&
			absDelta(pix[i+1], sg) <= tol &&
			absDelta(pix[i+2], sb) <= tol &&
			absDelta(pix[i+3], sa) <= tol
	}

	visited := make([]bool, b.width*b.height)
	queue := []int{sy*b.width + sx}
	visited[queue[0]] = true
	cleared := 0

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		x, y := p%b.width, p/b.width
		i := b.working.PixOffset(x, y)
		if !within(i) {
			continue
		}
		pix[i+3] = 0
		cleared++

		if x > 0 && !visited[p-1] {
			visited[p-1] = true
			queue = append(queue, p-1)
		}
		if x < b.width-1 && !visited[p+1] {
			visited[p+1] = true
			queue = append(queue, p+1)
		}
		if y > 0 && !visited[p-b.width] {
			visited[p-b.width] = true
			queue = append(queue, p-b.width)
		}
		if y < b.height-1 && !visited[p+b.width] {
			visited[p+b.width] = true
			queue = append(queue, p+b.width)
		}
	}
	return cleared
}

func absDelta(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
