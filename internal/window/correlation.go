package window

import "math"

// Correlation maintains the rolling Pearson correlation of two series from
// five rolling sums (x, y, x², y², xy).
type Correlation struct {
	sx, sy, sxx, syy, sxy *Sum
}

// NewCorrelation creates a rolling correlation. window is clamped to a minimum of 1.
func NewCorrelation(window int) *Correlation {
	return &Correlation{
		sx:  NewSum(window),
		sy:  NewSum(window),
		sxx: NewSum(window),
		syy: NewSum(window),
		sxy: NewSum(window),
	}
}

// Preview returns the correlation and sample count as if (x, y) were committed.
func (c *Correlation) Preview(x, y float64) (float64, int) {
	sx, n := c.sx.Preview(x)
	sy, _ := c.sy.Preview(y)
	sxx, _ := c.sxx.Preview(x * x)
	syy, _ := c.syy.Preview(y * y)
	sxy, _ := c.sxy.Preview(x * y)
	return pearson(float64(n), sx, sy, sxx, syy, sxy), n
}

// Add commits (x, y) and returns the new correlation and sample count.
func (c *Correlation) Add(x, y float64) (float64, int) {
	sx, n := c.sx.Add(x)
	sy, _ := c.sy.Add(y)
	sxx, _ := c.sxx.Add(x * x)
	syy, _ := c.syy.Add(y * y)
	sxy, _ := c.sxy.Add(x * y)
	return pearson(float64(n), sx, sy, sxx, syy, sxy), n
}

// Value returns the committed correlation.
func (c *Correlation) Value() float64 {
	return pearson(float64(c.sx.Count()), c.sx.Value(), c.sy.Value(), c.sxx.Value(), c.syy.Value(), c.sxy.Value())
}

func (c *Correlation) Count() int  { return c.sx.Count() }
func (c *Correlation) Window() int { return c.sx.Window() }

// Reset clears all five sums.
func (c *Correlation) Reset() {
	c.sx.Reset()
	c.sy.Reset()
	c.sxx.Reset()
	c.syy.Reset()
	c.sxy.Reset()
}

// pearson returns 0 for fewer than two samples, a zero-variance series or
// any non-finite result.
func pearson(n, sx, sy, sxx, syy, sxy float64) float64 {
	if n < 2 {
		return 0
	}
	cov := n*sxy - sx*sy
	vx := n*sxx - sx*sx
	vy := n*syy - sy*sy
	if vx <= 0 || vy <= 0 {
		return 0
	}
	r := cov / math.Sqrt(vx*vy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	// Rounding in the running sums can push |r| marginally past 1.
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
