package result

// Merge folds incoming into r.
//
// Charts and series r has not seen are adopted. For a series present in
// both, points of incoming that r lacks are appended in incoming's order
// and the series is re-sorted by X only if an appended point arrived out of
// order. Orders, profit/loss, statistics and rolling-window entries are
// replaced key by key. A Live incoming result promotes r to Live; the
// reverse never happens.
//
// Merge validates before mutating, so a failed merge leaves r unchanged.
// incoming is not retained.
func (r *Result) Merge(incoming *Result) error {
	if r == nil || incoming == nil {
		return ErrNilResult
	}
	r.ensure()

	r.mergeCharts(incoming.Charts)

	for id, o := range incoming.Orders {
		if o != nil {
			r.Orders[id] = o.Clone()
		}
	}
	for t, v := range incoming.ProfitLoss {
		r.ProfitLoss[t] = v
	}
	for k, v := range incoming.Statistics {
		r.Statistics[k] = v
	}
	for k, v := range incoming.RuntimeStatistics {
		r.RuntimeStatistics[k] = v
	}
	for k, v := range incoming.ServerStatistics {
		r.ServerStatistics[k] = v
	}
	for k, p := range incoming.RollingWindow {
		r.RollingWindow[k] = p.clone()
	}

	if incoming.ResultType == ResultLive {
		r.ResultType = ResultLive
	}
	return nil
}

func (r *Result) mergeCharts(charts map[string]*Chart) {
	for name, in := range charts {
		if in == nil {
			continue
		}
		target, ok := r.Charts[name]
		if !ok || target == nil {
			target = &Chart{Name: in.Name, ChartType: in.ChartType, Series: make(map[string]*Series, len(in.Series))}
			r.Charts[name] = target
		}
		if target.Series == nil {
			target.Series = make(map[string]*Series, len(in.Series))
		}
		for seriesName, s := range in.Series {
			if s == nil {
				continue
			}
			existing, ok := target.Series[seriesName]
			if !ok || existing == nil {
				existing = s.cloneMeta()
				target.Series[seriesName] = existing
			}
			existing.appendMissing(s.Values)
		}
	}
}
