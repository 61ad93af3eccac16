package metadata

type ResourceType int

/** @brief Asset types the asset manager knows how to load. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Compiled SPIR-V shader stage. */
	ResourceTypeShader
	/** @brief Decoded image, converted to tightly packed RGBA8. */
	ResourceTypeImage
	/** @brief BMFont descriptor and its page sheets. */
	ResourceTypeBitmapFont
	ResourceTypeBinary
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBitmapFont:
		return "bitmap font"
	case ResourceTypeBinary:
		return "binary"
	}
	return "none"
}

type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

type ImageResourceData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []uint8
}

type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}
