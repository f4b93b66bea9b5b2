// Package reload runs the dataset pipeline: load a spreadsheet, build its
// report, store it, update metrics and evaluate alerts.
//
// Reloader.LoadAll loads every configured dataset with bounded parallelism.
// Reloader.Watch reloads a dataset when its file changes on disk, and
// Reloader.Schedule reloads all datasets on a cron schedule.
package reload
