package domain

const (
	// DefaultServiceURL is the loopback address of the decision service.
	DefaultServiceURL = "http://127.0.0.1:28173"

	DefaultServiceListenAddress = "127.0.0.1:28173"

	// DefaultVerifyTimeoutSeconds bounds a single verification round trip.
	// Expiry is treated as service failure and fails open.
	DefaultVerifyTimeoutSeconds = 15

	// DefaultMaxFrameSize bounds a single wire frame. Larger frames are
	// framing errors and are dropped without desynchronizing the stream.
	DefaultMaxFrameSize = 8 * 1024 * 1024

	DefaultRegistrationQueueSize = 64

	// DefaultAppName identifies the calling application when the
	// environment does not say otherwise.
	DefaultAppName = "unknown"
)

// Signature policy defaults. These are detection policy, not protocol
// requirements, and are tunable through the policy file.
const (
	DefaultMaxInputChars         = 10_000
	DefaultMaxFileReadMentions   = 5
	DefaultMaxTraversalDepth     = 3
	DefaultLargeNumericThreshold = 10_000
)

const (
	// IntentArgument is the argument injected into every tool schema by the
	// augmenter. It exists for client-supplied audit context and is stripped
	// before a call reaches the target server.
	IntentArgument = "user_intent"

	// SecuredDescriptionPrefix marks a tool description as augmented.
	// Applying the augmenter twice must not duplicate it.
	SecuredDescriptionPrefix = "[mcp-defender] "
)

const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)
