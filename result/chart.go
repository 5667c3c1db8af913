package result

import "sort"

// Chart is a named collection of series.
type Chart struct {
	Name      string             `json:"Name"`
	ChartType ChartType          `json:"ChartType"`
	Series    map[string]*Series `json:"Series"`
}

// NewChart returns an empty chart.
func NewChart(name string) *Chart {
	return &Chart{Name: name, Series: make(map[string]*Series)}
}

// Clone returns a deep copy of c.
func (c *Chart) Clone() *Chart {
	if c == nil {
		return nil
	}
	out := &Chart{Name: c.Name, ChartType: c.ChartType, Series: make(map[string]*Series, len(c.Series))}
	for name, s := range c.Series {
		if s != nil {
			out.Series[name] = s.Clone()
		}
	}
	return out
}

// Series is a named, ordered list of points.
//
// Merging keeps an index of the point keys already present. The index
// covers Values[:indexed] and is extended lazily, so callers may append
// to Values directly between merges.
type Series struct {
	Name         string       `json:"Name"`
	Unit         string       `json:"Unit,omitempty"`
	Index        int          `json:"Index"`
	SeriesType   SeriesType   `json:"SeriesType"`
	Color        Color        `json:"Color"`
	MarkerSymbol MarkerSymbol `json:"ScatterMarkerSymbol"`
	Values       []Point      `json:"Values"`

	index   map[pointKey]struct{}
	indexed int
}

// NewSeries returns an empty series.
func NewSeries(name string, seriesType SeriesType) *Series {
	return &Series{Name: name, SeriesType: seriesType}
}

// Clone returns a deep copy of s without its merge index.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	out := s.cloneMeta()
	out.Values = make([]Point, len(s.Values))
	for i, p := range s.Values {
		out.Values[i] = p.clone()
	}
	return out
}

func (s *Series) cloneMeta() *Series {
	return &Series{
		Name:         s.Name,
		Unit:         s.Unit,
		Index:        s.Index,
		SeriesType:   s.SeriesType,
		Color:        s.Color,
		MarkerSymbol: s.MarkerSymbol,
	}
}

// syncIndex brings the point index up to date with Values.
func (s *Series) syncIndex() {
	if s.index == nil || s.indexed > len(s.Values) {
		s.index = make(map[pointKey]struct{}, len(s.Values))
		s.indexed = 0
	}
	for _, p := range s.Values[s.indexed:] {
		s.index[p.key()] = struct{}{}
	}
	s.indexed = len(s.Values)
}

// appendMissing appends every point of points not already in s, in the
// order given. If any appended point precedes the previous last point the
// series is stable-sorted by X afterwards. Returns the number appended.
func (s *Series) appendMissing(points []Point) int {
	s.syncIndex()
	added := 0
	unordered := false
	for _, p := range points {
		k := p.key()
		if _, seen := s.index[k]; seen {
			continue
		}
		if n := len(s.Values); n > 0 && p.X < s.Values[n-1].X {
			unordered = true
		}
		s.index[k] = struct{}{}
		s.Values = append(s.Values, p.clone())
		added++
	}
	s.indexed = len(s.Values)
	if unordered {
		sort.SliceStable(s.Values, func(i, j int) bool { return s.Values[i].X < s.Values[j].X })
	}
	return added
}
