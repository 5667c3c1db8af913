package result

// Context is a snapshot handed to consumers after each merge.
type Context struct {
	// Name of the session that produced the result.
	Name string
	// Result is the aggregate. Consumers must not retain it past the callback
	// unless they Clone it.
	Result *Result
	// Progress is in [0, 1]; 1 means the run is complete. Live results report 0.
	Progress float64
}

// NewContext builds a Context, clamping progress to [0, 1].
func NewContext(name string, r *Result, progress float64) Context {
	switch {
	case progress < 0 || progress != progress:
		progress = 0
	case progress > 1:
		progress = 1
	}
	return Context{Name: name, Result: r, Progress: progress}
}

// Completed reports whether the run has finished.
func (c Context) Completed() bool { return c.Progress >= 1 }
