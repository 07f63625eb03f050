// Package gemini talks to the Gemini generative language API on behalf of the
// chunk analysis stage.
//
// # Entry Points
//
// NewClient: construct the HTTP client from Config.
// Client.GenerateJSON: one generateContent call with a media part and prompt.
// Client.UploadFile / GetFile / WaitForActive / DeleteFile: the files API.
// Client.HealthCheck: verify the API key and model.
// Analyzer.Analyze: turn one extracted chunk into transcript entries.
//
// # Media Transport
//
// Chunks up to the inline limit travel base64-encoded inside the request.
// Larger chunks use the resumable files API and are polled until ACTIVE. The
// resulting handle is remembered in an UploadCache keyed by the chunk's
// content hash so identical bytes are never uploaded twice while the remote
// file is alive.
//
// # Failure Classification
//
// HTTP 408, 429 and 5xx responses and network errors are tagged
// services.ErrTransientService and retried by the analyzer with exponential
// backoff (honouring Retry-After). 401 and 403 are configuration errors.
// Other 4xx responses are terminal for the chunk. A response that cannot be
// parsed into entries is services.ErrMalformedResponse and gets exactly one
// immediate retry. Exhausted retries are demoted to
// services.ErrChunkAnalysisFailed.
package gemini
