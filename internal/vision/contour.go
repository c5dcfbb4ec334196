package vision

import (
	"image"
	"math"
)

// Contour is a closed boundary, one point per vertex, in tracing order.
type Contour []image.Point

// Area is the enclosed area from the shoelace formula.
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += float64(c[i].X)*float64(c[j].Y) - float64(c[j].X)*float64(c[i].Y)
	}
	return math.Abs(sum) / 2
}

// Perimeter is the closed arc length.
func (c Contour) Perimeter() float64 {
	if len(c) < 2 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += math.Hypot(float64(c[j].X-c[i].X), float64(c[j].Y-c[i].Y))
	}
	return sum
}

// BoundingRect is the smallest upright rectangle containing every point.
// A single point has a 1x1 rectangle.
func (c Contour) BoundingRect() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// ApproxPoly simplifies the closed contour with Douglas-Peucker at the
// given tolerance.
func (c Contour) ApproxPoly(epsilon float64) Contour {
	n := len(c)
	if n <= 2 {
		return append(Contour(nil), c...)
	}

	// Split the ring at the point farthest from the first one.
	far, best := 0, -1.0
	for i := 1; i < n; i++ {
		d := sqDist(c[0], c[i])
		if d > best {
			far, best = i, d
		}
	}
	if best == 0 {
		return Contour{c[0]}
	}

	ring := append(append(Contour(nil), c...), c[0])
	out := douglasPeucker(ring[:far+1], epsilon)
	out = out[:len(out)-1]
	tail := douglasPeucker(ring[far:], epsilon)
	out = append(out, tail[:len(tail)-1]...)
	return out
}

// douglasPeucker keeps both endpoints of an open path.
func douglasPeucker(path Contour, epsilon float64) Contour {
	if len(path) <= 2 {
		return append(Contour(nil), path...)
	}
	first, last := path[0], path[len(path)-1]

	idx, maxD := 0, -1.0
	for i := 1; i < len(path)-1; i++ {
		d := segmentDist(path[i], first, last)
		if d > maxD {
			idx, maxD = i, d
		}
	}
	if maxD <= epsilon {
		return Contour{first, last}
	}

	left := douglasPeucker(path[:idx+1], epsilon)
	right := douglasPeucker(path[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

func sqDist(a, b image.Point) float64 {
	dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
	return dx*dx + dy*dy
}

// segmentDist is the distance from p to the line through a and b, or to a
// when the two coincide.
func segmentDist(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return math.Sqrt(sqDist(p, a))
	}
	return math.Abs(dy*float64(p.X-a.X)-dx*float64(p.Y-a.Y)) / norm
}

// Neighbour offsets, counter-clockwise on screen (y grows downwards),
// starting east.
var ring8 = [8]image.Point{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

const dirWest = 4

// traceExternal returns the outer boundary of every 8-connected foreground
// region that is not enclosed by another region. Pixels outside the plane
// count as background.
func traceExternal(binary *Plane) []Contour {
	w, h := binary.Width+2, binary.Height+2
	fg := make([]bool, w*h)
	for y := 0; y < binary.Height; y++ {
		for x := 0; x < binary.Width; x++ {
			fg[(y+1)*w+x+1] = binary.At(x, y) != 0
		}
	}

	// Background reachable from the padding through 4-connected steps.
	outside := make([]bool, w*h)
	queue := []int{0}
	outside[0] = true
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if !fg[j] && !outside[j] {
				outside[j] = true
				queue = append(queue, j)
			}
		}
	}

	visited := make([]bool, w*h)
	var contours []Contour
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			if !fg[i] || visited[i] {
				continue
			}
			// Raster order makes (x, y) the top-left pixel of its region,
			// so its west neighbour is background.
			external := markRegion(fg, outside, visited, w, h, i)
			if !external {
				continue
			}
			c := followBorder(fg, w, image.Pt(x, y))
			for k := range c {
				c[k] = c[k].Sub(image.Pt(1, 1))
			}
			contours = append(contours, compressChain(c))
		}
	}
	return contours
}

// markRegion flood-fills the 8-connected region containing start and
// reports whether it touches outside background.
func markRegion(fg, outside, visited []bool, w, h, start int) bool {
	external := false
	stack := []int{start}
	visited[start] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for k, d := range ring8 {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if fg[j] {
				if !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			} else if k%2 == 0 && outside[j] {
				external = true
			}
		}
	}
	return external
}

// followBorder traces an outer border starting at a pixel whose west
// neighbour is background. Points come out in the same order OpenCV emits
// them: down the left side first.
func followBorder(fg []bool, w int, start image.Point) Contour {
	isFG := func(p image.Point) bool { return fg[p.Y*w+p.X] }

	// First foreground neighbour clockwise from west.
	first := -1
	for k := 0; k < 8; k++ {
		d := (dirWest - k + 8) % 8
		if isFG(start.Add(ring8[d])) {
			first = d
			break
		}
	}
	if first < 0 {
		return Contour{start}
	}

	p1 := start.Add(ring8[first])
	prev, cur := p1, start
	var out Contour
	for {
		// Search counter-clockwise around cur, starting after prev.
		back := direction(cur, prev)
		var next image.Point
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if q := cur.Add(ring8[d]); isFG(q) {
				next = q
				break
			}
		}
		out = append(out, cur)
		if next == start && cur == p1 {
			break
		}
		prev, cur = cur, next
	}
	return out
}

func direction(from, to image.Point) int {
	d := to.Sub(from)
	for k, r := range ring8 {
		if r == d {
			return k
		}
	}
	return 0
}

// compressChain drops points in the middle of straight horizontal,
// vertical or diagonal runs. The polygon is unchanged.
func compressChain(c Contour) Contour {
	n := len(c)
	if n < 3 {
		return c
	}
	out := make(Contour, 0, n)
	for i := range c {
		prev := c[(i-1+n)%n]
		next := c[(i+1)%n]
		if c[i].Sub(prev) != next.Sub(c[i]) {
			out = append(out, c[i])
		}
	}
	if len(out) == 0 {
		return Contour{c[0]}
	}
	return out
}
