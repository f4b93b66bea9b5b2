// Package config loads the server configuration from config.yaml.
//
// Config sections:
//   - server.http_port       port for the REST API, WebSocket hub and /metrics (default 8080)
//   - server.auth            "apikey" or "none", key_env and header (default "x-api-key")
//   - server.stream_interval how often the hub pushes snapshots (default 5s)
//   - log                    level (debug|info|warn|error) and format (json|text)
//   - analysis.thresholds    sweep thresholds in minutes (default 30,60,120,240,600,720)
//   - datasets               id, path, format (inferred from extension) and sheet
//   - reload                 file watch, cron schedule and load concurrency
//   - alerts                 rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file when it changes on disk.
package config
