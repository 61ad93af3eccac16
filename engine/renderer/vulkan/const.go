package vulkan

/** @brief Frames recorded ahead of the GPU. */
const MaxFramesInFlight = 2

/**
 * @brief Bindings per descriptor set. Units above this are dropped with an error.
 */
const maxBindings uint32 = 16

/** @brief Vertex buffer slots a pipeline can read. */
const maxVertexBuffers uint32 = 16

/** @brief Colour attachments per render pass. */
const maxColourAttachments = 8

/** @brief Timestamp slots in the device query pool. */
const maxQueries uint32 = 1024

/**
 * @brief Descriptor sets each frame can allocate before its pool is exhausted.
 * @todo TODO: grow with a second pool instead of failing the draw
 */
const maxSetsPerFrame uint32 = 4096
