package metadata

// Handle indexes a slot in the renderer resource table. Handle 0 is null.
type Handle uint32

const (
	NullHandle Handle = 0
	// InvalidHandle is accepted wherever a target can be unbound and is treated as null.
	InvalidHandle Handle = ^Handle(0)

	/** @brief Permanently reserved handle of the presentation colour surface. */
	BackbufferColour Handle = 1
	/** @brief Permanently reserved handle of the presentation depth surface. */
	BackbufferDepth Handle = 2

	// FirstUserHandle is the lowest handle callers should hand out themselves.
	FirstUserHandle Handle = 3

	MaxMRT = 8
)

// Valid reports whether h refers to a resource rather than null/invalid.
func (h Handle) Valid() bool {
	return h != NullHandle && h != InvalidHandle
}
