package errors

// Registered error codes.
const (
	CodeFetchFailed    = "E001"
	CodeFetchPanic     = "E002"
	CodeNodeQuery      = "E010"
	CodeIndexerRequest = "E020"
	CodeIndexerStatus  = "E021"
	CodeBlobNotFound   = "E030"
	CodeBlobDigest     = "E031"

	CodeTransformFailed = "E100"
	CodeTransformPanic  = "E101"
	CodeRenderFailed    = "E102"

	CodeSourceShape    = "E200"
	CodeInvalidPoolID  = "E201"
	CodeSourceNotReady = "E202"

	CodeConfigNotFound = "E300"
	CodeConfigInvalid  = "E301"

	CodeInvalidArgument = "E400"
)

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Fetch errors (E001-E099)

	CodeFetchFailed: {
		Category: CategoryFetch,
		Message:  "Fetch failed",
	},
	CodeFetchPanic: {
		Category: CategoryFetch,
		Message:  "Fetch panicked",
		Detail:   "The fetch function panicked; the panic was recovered into the resource error.",
	},
	CodeNodeQuery: {
		Category: CategoryFetch,
		Message:  "Node query failed",
	},
	CodeIndexerRequest: {
		Category: CategoryFetch,
		Message:  "Indexer request failed",
	},
	CodeIndexerStatus: {
		Category: CategoryFetch,
		Message:  "Indexer returned an error status",
	},
	CodeBlobNotFound: {
		Category: CategoryFetch,
		Message:  "Blob not found",
	},
	CodeBlobDigest: {
		Category: CategoryFetch,
		Message:  "Blob digest mismatch",
		Detail:   "The stored content does not hash to the requested digest.",
	},

	// Transform errors (E100-E199)

	CodeTransformFailed: {
		Category: CategoryTransform,
		Message:  "Transform failed",
	},
	CodeTransformPanic: {
		Category: CategoryTransform,
		Message:  "Transform panicked",
	},
	CodeRenderFailed: {
		Category: CategoryTransform,
		Message:  "Render failed",
	},

	// Source errors (E200-E299)

	CodeSourceShape: {
		Category: CategorySource,
		Message:  "Unexpected payload shape",
	},
	CodeInvalidPoolID: {
		Category: CategorySource,
		Message:  "Invalid pool ID",
	},
	CodeSourceNotReady: {
		Category: CategorySource,
		Message:  "Source not connected",
	},

	// Config errors (E300-E399)

	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// CLI errors (E400-E499)

	CodeInvalidArgument: {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
