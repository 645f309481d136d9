// Package backend provides the Reelhub API server.
//
// The binaries live under cmd/:
//
//   - cmd/server: the HTTP and websocket API
//   - cmd/reelctl: operator CLI (migrate, seed, publish-scheduled, reindex, remote calls)
//   - cmd/publish-lambda: scheduled-video publishing on an EventBridge tick
//
// The domain packages are organized under internal/:
//
//   - internal/handlers: HTTP request handlers for all API endpoints
//   - internal/models: Data models and database schemas
//   - internal/auth: Native and Google login, JWTs
//   - internal/videos: Feed, video lifecycle, likes and views
//   - internal/playback: Adaptive quality selection and gesture detection
//   - internal/realtime: Websocket hub and playback sessions
//   - internal/store, internal/wallet, internal/affiliate: Commerce and coins
//   - internal/scheduler: Scheduled publishing
//   - internal/search: Elasticsearch indexing and queries
//   - internal/stream: Stream.io chat for live streams
//
// See the individual package documentation for detailed API reference.
package backend
