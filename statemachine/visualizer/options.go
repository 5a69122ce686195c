package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowDescriptions labels edges with custom rule descriptions.
	ShowDescriptions bool

	// ShowActions adds a note to every state that runs a state action.
	ShowActions bool

	// Direction controls diagram flow: "TB" (or "TD"), "BT", "LR" or "RL".
	Direction string

	// HighlightPath highlights a specific state path through the diagram.
	HighlightPath []string

	// Theme selects the Mermaid theme: "default", "dark", "forest" or "neutral".
	Theme string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowDescriptions: true,
		ShowActions:      true,
		Direction:        "TB",
		Theme:            "default",
	}
}

// WithShowDescriptions enables/disables edge descriptions.
func (o Options) WithShowDescriptions(show bool) Options {
	o.ShowDescriptions = show

	return o
}

// WithShowActions enables/disables state action notes.
func (o Options) WithShowActions(show bool) Options {
	o.ShowActions = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithTheme sets the color theme.
func (o Options) WithTheme(theme string) Options {
	o.Theme = theme

	return o
}
